package stubserver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/scopenote/scopenote/internal/transport"
)

func newTestServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()

	images, err := OpenImageStore(":memory:")
	if err != nil {
		t.Fatalf("OpenImageStore: %v", err)
	}
	t.Cleanup(func() { images.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(NewSessionStore(), images, logger)

	e := echo.New()
	h.RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, h
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()

	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST %s: status %d: %s", url, resp.StatusCode, raw)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func dialWS(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestHandler_SessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	started := postJSON(t, srv.URL+"/sessions", map[string]any{"auto_generate": true})
	sessionID, _ := started["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("no session id in %v", started)
	}

	postJSON(t, srv.URL+"/sessions/"+sessionID+"/messages", map[string]any{
		"text": "procedure started",
	})

	closed := postJSON(t, srv.URL+"/sessions/"+sessionID+"/close", map[string]any{
		"base_note": "Uneventful EGD.",
	})
	note, _ := closed["operative_note"].(string)
	if !strings.Contains(note, "Uneventful EGD.") {
		t.Fatalf("auto-generated note missing base note: %q", note)
	}
	if closed["usage"] == nil {
		t.Error("usage telemetry missing from close response")
	}
}

func TestHandler_RealtimeClassifyAndThumbnail(t *testing.T) {
	srv, _ := newTestServer(t)

	started := postJSON(t, srv.URL+"/sessions", map[string]any{"auto_generate": false})
	sessionID := started["session_id"].(string)

	ws := dialWS(t, srv, sessionID)
	imageBytes := []byte("fake image payload")
	err := ws.WriteJSON(transport.ImageClassify{
		Type:          transport.MessageTypeImageClassify,
		ClientImageID: "img-local-1",
		Filename:      "antrum_view.png",
		ImageB64:      base64.StdEncoding.EncodeToString(imageBytes),
		TextHint:      "inspecting the antrum",
		RequestID:     "req-1",
	})
	if err != nil {
		t.Fatalf("write classify: %v", err)
	}

	var resp transport.ImageClassified
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Type != transport.MessageTypeImageClassified || resp.RequestID != "req-1" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Label != "antrum" {
		t.Errorf("label = %q, want antrum", resp.Label)
	}
	if resp.ImageID == 0 {
		t.Fatal("no image id assigned")
	}

	// Thumbnail is fetchable over REST afterwards.
	thumbResp, err := http.Get(srv.URL + "/images/" + itoa(resp.ImageID) + "/thumbnail")
	if err != nil {
		t.Fatalf("GET thumbnail: %v", err)
	}
	defer thumbResp.Body.Close()
	if thumbResp.StatusCode != http.StatusOK {
		t.Fatalf("thumbnail status = %d", thumbResp.StatusCode)
	}
	thumb, _ := io.ReadAll(thumbResp.Body)
	if !bytes.Equal(thumb, imageBytes) {
		t.Error("thumbnail bytes do not round-trip")
	}
}

func TestHandler_ClosedSessionGuard(t *testing.T) {
	srv, _ := newTestServer(t)

	started := postJSON(t, srv.URL+"/sessions", map[string]any{"auto_generate": false})
	sessionID := started["session_id"].(string)
	ws := dialWS(t, srv, sessionID)

	postJSON(t, srv.URL+"/sessions/"+sessionID+"/close", map[string]any{})

	err := ws.WriteJSON(transport.DictationAudio{
		Type:      transport.MessageTypeDictationAudio,
		AudioB64:  base64.StdEncoding.EncodeToString([]byte("audio")),
		MimeType:  "audio/wav",
		RequestID: "req-2",
	})
	if err != nil {
		t.Fatalf("write dictation: %v", err)
	}

	var errFrame transport.ErrorFrame
	if err := ws.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errFrame.Type != transport.MessageTypeError || errFrame.RequestID != "req-2" {
		t.Fatalf("frame = %+v", errFrame)
	}
	if errFrame.Detail != "Session is closed; start a new session." {
		t.Fatalf("detail = %q", errFrame.Detail)
	}
}

func TestHandler_UnknownSessionOnSocket(t *testing.T) {
	srv, _ := newTestServer(t)

	ws := dialWS(t, srv, "does-not-exist")

	var errFrame transport.ErrorFrame
	if err := ws.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errFrame.Detail != "Session not found" {
		t.Fatalf("detail = %q", errFrame.Detail)
	}
}

func TestHandler_UnsupportedMessageType(t *testing.T) {
	srv, _ := newTestServer(t)

	started := postJSON(t, srv.URL+"/sessions", map[string]any{"auto_generate": false})
	ws := dialWS(t, srv, started["session_id"].(string))

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus","request_id":"req-9"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var errFrame transport.ErrorFrame
	if err := ws.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errFrame.RequestID != "req-9" || !strings.Contains(errFrame.Detail, "Unsupported message type") {
		t.Fatalf("frame = %+v", errFrame)
	}
}

func TestHandler_ThumbnailNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/images/9999/thumbnail")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Detail != "Image not found" {
		t.Fatalf("detail = %q", payload.Detail)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
