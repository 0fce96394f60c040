package stubserver

import (
	"errors"
	"strings"
	"testing"

	"github.com/scopenote/scopenote/internal/shared"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	store := NewSessionStore()

	state := store.Create(true)
	if state.SessionID == "" {
		t.Fatal("empty session id")
	}
	if !state.AutoGenerate {
		t.Fatal("auto_generate flag not kept")
	}

	if _, err := store.AddMessage(state.SessionID, "user", "  scope advanced  "); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	count, err := store.AddMessage(state.SessionID, "assistant", "noted")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if count != 2 {
		t.Fatalf("message count = %d, want 2", count)
	}

	closed, err := store.Close(state.SessionID, nil)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed.Closed {
		t.Fatal("session not marked closed")
	}
	// Contents survive close for note generation.
	if len(closed.Messages) != 2 {
		t.Fatalf("closed session has %d messages, want 2", len(closed.Messages))
	}
}

func TestSessionStore_UnknownSession(t *testing.T) {
	store := NewSessionStore()

	if _, err := store.Get("missing"); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("Get err = %v, want not found", err)
	}
	if _, err := store.AddMessage("missing", "user", "x"); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("AddMessage err = %v, want not found", err)
	}
}

func TestSessionStore_ContextSummary(t *testing.T) {
	store := NewSessionStore()
	state := store.Create(false)

	store.AddMessage(state.SessionID, "user", "starting antrum inspection")
	store.AddImage(state.SessionID, SessionImage{
		ID: 7, Label: "antrum", Description: "clean mucosa",
	})

	summary, err := store.ContextSummary(state.SessionID, transcriptLimit)
	if err != nil {
		t.Fatalf("ContextSummary: %v", err)
	}
	if !strings.Contains(summary, "USER: starting antrum inspection") {
		t.Errorf("transcript line missing:\n%s", summary)
	}
	if !strings.Contains(summary, "IMAGES SEEN:") || !strings.Contains(summary, "7: antrum - clean mucosa") {
		t.Errorf("image summary missing:\n%s", summary)
	}
}

func TestSessionStore_TranscriptLimit(t *testing.T) {
	store := NewSessionStore()
	state := store.Create(false)

	for i := 0; i < 20; i++ {
		store.AddMessage(state.SessionID, "user", "line")
	}
	text, err := store.MessagesAsText(state.SessionID, 15)
	if err != nil {
		t.Fatalf("MessagesAsText: %v", err)
	}
	if got := strings.Count(text, "\n") + 1; got != 15 {
		t.Fatalf("transcript has %d lines, want 15", got)
	}
}
