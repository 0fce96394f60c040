package transport

import (
	"encoding/json"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	raw := []byte(`{"type":"image.classified","request_id":"req_1","image_id":7,"label":"Z-line"}`)
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.Type != MessageTypeImageClassified {
		t.Errorf("type = %q", f.Type)
	}
	if f.RequestID != "req_1" {
		t.Errorf("request_id = %q", f.RequestID)
	}

	var resp ImageClassified
	if err := json.Unmarshal(f.Payload, &resp); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if resp.ImageID != 7 || resp.Label != "Z-line" {
		t.Errorf("payload = %+v", resp)
	}
}

func TestDecodeFrame_Invalid(t *testing.T) {
	if _, err := DecodeFrame([]byte("not json")); err == nil {
		t.Fatal("expected error for non-JSON frame")
	}
}

func TestNormalizeAudioMIME(t *testing.T) {
	cases := []struct {
		in   string
		mime string
		ok   bool
	}{
		{"audio/webm;codecs=opus", "audio/webm", true},
		{"AUDIO/WAV", "audio/wav", true},
		{" audio/x-wav ", "audio/x-wav", true},
		{"audio/flac", "audio/flac", true},
		{"text/plain", "text/plain", false},
		{"", "", false},
	}
	for _, tc := range cases {
		mime, ok := NormalizeAudioMIME(tc.in)
		if mime != tc.mime || ok != tc.ok {
			t.Errorf("NormalizeAudioMIME(%q) = %q,%v want %q,%v", tc.in, mime, ok, tc.mime, tc.ok)
		}
	}
}
