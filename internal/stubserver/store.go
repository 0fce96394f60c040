// Package stubserver is a development backend implementing the session,
// opnote, thumbnail, and realtime websocket endpoints the client
// consumes. Classification and transcription are deterministic so the
// client and its end-to-end tests run without the real model service.
package stubserver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scopenote/scopenote/internal/shared"
)

const transcriptLimit = 15

type Message struct {
	Role    string
	Content string
}

type SessionImage struct {
	ID          int64
	Label       string
	Reasoning   string
	Description string
}

type SessionState struct {
	SessionID    string
	AutoGenerate bool
	Closed       bool
	Messages     []Message
	Images       []SessionImage
}

// SessionStore keeps realtime sessions in memory. Sessions survive
// close (their contents feed note generation) and are dropped only
// with the process.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*SessionState)}
}

func (s *SessionStore) Create(autoGenerate bool) SessionState {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	state := &SessionState{SessionID: id, AutoGenerate: autoGenerate}

	s.mu.Lock()
	s.sessions[id] = state
	s.mu.Unlock()
	return *state
}

// Counts reports how many sessions exist and how many are still open.
func (s *SessionStore) Counts() (total, open int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total = len(s.sessions)
	for _, state := range s.sessions {
		if !state.Closed {
			open++
		}
	}
	return total, open
}

func (s *SessionStore) Get(sessionID string) (SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return SessionState{}, fmt.Errorf("session %s %w", sessionID, shared.ErrNotFound)
	}
	return s.copyLocked(state), nil
}

// copyLocked snapshots a session so callers never share the live
// slices.
func (s *SessionStore) copyLocked(state *SessionState) SessionState {
	out := *state
	out.Messages = append([]Message(nil), state.Messages...)
	out.Images = append([]SessionImage(nil), state.Images...)
	return out
}

// AddMessage appends a trimmed message and returns the new count.
func (s *SessionStore) AddMessage(sessionID, role, content string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return 0, fmt.Errorf("session %s %w", sessionID, shared.ErrNotFound)
	}
	state.Messages = append(state.Messages, Message{Role: role, Content: strings.TrimSpace(content)})
	return len(state.Messages), nil
}

func (s *SessionStore) AddImage(sessionID string, img SessionImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s %w", sessionID, shared.ErrNotFound)
	}
	state.Images = append(state.Images, img)
	return nil
}

// Close marks the session closed, keeping its contents for note
// generation. autoGenerate overrides the session's flag when non-nil.
func (s *SessionStore) Close(sessionID string, autoGenerate *bool) (SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return SessionState{}, fmt.Errorf("session %s %w", sessionID, shared.ErrNotFound)
	}
	state.Closed = true
	if autoGenerate != nil {
		state.AutoGenerate = *autoGenerate
	}
	return s.copyLocked(state), nil
}

// MessagesAsText renders the most recent messages as "ROLE: content"
// transcript lines.
func (s *SessionStore) MessagesAsText(sessionID string, limit int) (string, error) {
	state, err := s.Get(sessionID)
	if err != nil {
		return "", err
	}
	return renderTranscript(state.Messages, limit), nil
}

// ContextSummary is the transcript plus a short summary of every
// labeled image, the grounding context for classification and notes.
func (s *SessionStore) ContextSummary(sessionID string, limit int) (string, error) {
	state, err := s.Get(sessionID)
	if err != nil {
		return "", err
	}

	lines := transcriptLines(state.Messages, limit)
	if len(state.Images) > 0 {
		lines = append(lines, "IMAGES SEEN:")
		for _, img := range state.Images {
			lines = append(lines, imageSummaryLine(img))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (s *SessionStore) ImagesSummary(sessionID string) (string, error) {
	state, err := s.Get(sessionID)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(state.Images))
	for _, img := range state.Images {
		lines = append(lines, imageSummaryLine(img))
	}
	return strings.Join(lines, "\n"), nil
}

func renderTranscript(messages []Message, limit int) string {
	return strings.Join(transcriptLines(messages, limit), "\n")
}

func transcriptLines(messages []Message, limit int) []string {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, strings.ToUpper(msg.Role)+": "+msg.Content)
	}
	return lines
}

func imageSummaryLine(img SessionImage) string {
	label := img.Label
	if label == "" {
		label = "Unlabeled site"
	}
	description := img.Description
	if description == "" {
		description = "No description."
	}
	return fmt.Sprintf("%d: %s - %s", img.ID, label, description)
}
