// Package transport defines the JSON frames exchanged with the backend
// over the realtime websocket. Every request frame carries a request_id;
// the backend echoes it on the matching response so unrelated exchanges
// can multiplex on one connection.
package transport

import (
	"encoding/json"
	"strings"
)

type MessageType string

const (
	MessageTypeConversationAppend MessageType = "conversation.append"
	MessageTypeConversationAck    MessageType = "conversation.ack"
	MessageTypeImageClassify      MessageType = "image.classify"
	MessageTypeImageClassified    MessageType = "image.classified"
	MessageTypeDictationAudio     MessageType = "dictation.audio"
	MessageTypeDictationText      MessageType = "dictation.transcript"
	MessageTypeError              MessageType = "error"
)

// Frame is the envelope every websocket message decodes into first.
// Payload keeps the raw bytes so typed frames can be decoded once the
// type and request id have been inspected.
type Frame struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"-"`
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	f.Payload = json.RawMessage(data)
	return f, nil
}

// Request is implemented by the outbound frames that expect a
// correlated response.
type Request interface {
	CorrelationID() string
	SetCorrelationID(id string)
}

type ConversationAppend struct {
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Role      string      `json:"role,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type ConversationAck struct {
	Type         MessageType `json:"type"`
	RequestID    string      `json:"request_id"`
	MessageCount int         `json:"message_count"`
}

type ImageClassify struct {
	Type          MessageType `json:"type"`
	ClientImageID string      `json:"client_image_id"`
	Filename      string      `json:"filename"`
	ImageB64      string      `json:"image_b64"`
	TextHint      string      `json:"text_hint,omitempty"`
	RequestID     string      `json:"request_id,omitempty"`
}

type ImageClassified struct {
	Type             MessageType `json:"type"`
	RequestID        string      `json:"request_id"`
	ClientImageID    string      `json:"client_image_id"`
	ImageID          int64       `json:"image_id"`
	Label            string      `json:"label"`
	Reasoning        string      `json:"reasoning"`
	ImageDescription string      `json:"image_description"`
	Latency          float64     `json:"latency"`
	InputTokens      int         `json:"input_tokens"`
	OutputTokens     int         `json:"output_tokens"`
}

type DictationAudio struct {
	Type      MessageType `json:"type"`
	AudioB64  string      `json:"audio_b64"`
	MimeType  string      `json:"mime_type"`
	RequestID string      `json:"request_id,omitempty"`
}

type DictationTranscript struct {
	Type         MessageType `json:"type"`
	RequestID    string      `json:"request_id"`
	Text         string      `json:"text"`
	MessageCount int         `json:"message_count"`
}

func (m *ConversationAppend) CorrelationID() string      { return m.RequestID }
func (m *ConversationAppend) SetCorrelationID(id string) { m.RequestID = id }
func (m *ImageClassify) CorrelationID() string           { return m.RequestID }
func (m *ImageClassify) SetCorrelationID(id string)      { m.RequestID = id }
func (m *DictationAudio) CorrelationID() string          { return m.RequestID }
func (m *DictationAudio) SetCorrelationID(id string)     { m.RequestID = id }

type ErrorFrame struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Detail    string      `json:"detail"`
}

// allowedAudioMIMEs matches the dictation formats the backend accepts.
var allowedAudioMIMEs = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/aac":   true,
	"audio/ogg":   true,
	"audio/opus":  true,
	"audio/flac":  true,
}

// NormalizeAudioMIME strips parameters ("audio/webm;codecs=opus") and
// lowercases the type. ok reports whether the backend accepts it.
func NormalizeAudioMIME(mimeType string) (mime string, ok bool) {
	mime, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	mime = strings.TrimSpace(mime)
	return mime, allowedAudioMIMEs[mime]
}
