package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scopenote/scopenote/internal/shared"
	"github.com/scopenote/scopenote/internal/transport"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestConn starts a websocket server driven by handler and dials it.
func newTestConn(t *testing.T, handler func(ws *websocket.Conn)) *Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handler(ws)
	}))
	t.Cleanup(srv.Close)

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(context.Background(), endpoint, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRequest(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Logf("server read: %v", err)
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("server got non-JSON frame: %v", err)
		return nil
	}
	return m
}

func writeFrame(ws *websocket.Conn, frame map[string]any) {
	data, _ := json.Marshal(frame)
	_ = ws.WriteMessage(websocket.TextMessage, data)
}

func TestRequest_AssignsRequestID(t *testing.T) {
	conn := newTestConn(t, func(ws *websocket.Conn) {
		req := readRequest(t, ws)
		writeFrame(ws, map[string]any{
			"type":          "conversation.ack",
			"request_id":    req["request_id"],
			"message_count": 1,
		})
	})

	req := &transport.ConversationAppend{Type: transport.MessageTypeConversationAppend, Text: "hello"}
	frame, err := conn.Request(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.RequestID == "" {
		t.Error("request id should have been assigned")
	}
	if frame.RequestID != req.RequestID {
		t.Errorf("response correlated to %q, sent %q", frame.RequestID, req.RequestID)
	}
}

func TestRequest_OutOfOrderDelivery(t *testing.T) {
	const n = 3
	conn := newTestConn(t, func(ws *websocket.Conn) {
		var ids []string
		for i := 0; i < n; i++ {
			req := readRequest(t, ws)
			ids = append(ids, req["request_id"].(string))
		}
		// Answer in reverse order.
		for i := n - 1; i >= 0; i-- {
			writeFrame(ws, map[string]any{
				"type":          "conversation.ack",
				"request_id":    ids[i],
				"message_count": i,
			})
		}
	})

	var wg sync.WaitGroup
	errs := make([]error, n)
	frames := make([]transport.Frame, n)
	reqs := make([]*transport.ConversationAppend, n)
	for i := 0; i < n; i++ {
		reqs[i] = &transport.ConversationAppend{Type: transport.MessageTypeConversationAppend, Text: "x"}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			frames[i], errs[i] = conn.Request(context.Background(), reqs[i], 2*time.Second)
		}(i)
		time.Sleep(10 * time.Millisecond) // keep server-side read order deterministic
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if frames[i].RequestID != reqs[i].RequestID {
			t.Errorf("request %d got response for %q", i, frames[i].RequestID)
		}
	}
}

func TestRequest_Timeout(t *testing.T) {
	release := make(chan struct{})
	conn := newTestConn(t, func(ws *websocket.Conn) {
		req := readRequest(t, ws)
		<-release
		// Late response after the caller already timed out; must be
		// logged and ignored, never delivered.
		writeFrame(ws, map[string]any{
			"type":       "conversation.ack",
			"request_id": req["request_id"],
		})
		// Hold the socket open until the client closes; hanging up
		// here would race the IsOpen check below.
		_, _, _ = ws.ReadMessage()
	})

	req := &transport.ConversationAppend{Type: transport.MessageTypeConversationAppend, Text: "x"}
	_, err := conn.Request(context.Background(), req, 10*time.Millisecond)
	if !errors.Is(err, shared.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	conn.mu.Lock()
	n := len(conn.pending)
	conn.mu.Unlock()
	if n != 0 {
		t.Errorf("pending set should be empty after timeout, has %d", n)
	}

	close(release)
	time.Sleep(100 * time.Millisecond) // let the late response flow through dispatch
	if !conn.IsOpen() {
		t.Error("late response must not kill the connection")
	}
}

func TestRequest_ErrorFrameRejects(t *testing.T) {
	conn := newTestConn(t, func(ws *websocket.Conn) {
		req := readRequest(t, ws)
		writeFrame(ws, map[string]any{
			"type":       "error",
			"request_id": req["request_id"],
			"detail":     "Session is closed; start a new session.",
		})
	})

	req := &transport.ImageClassify{Type: transport.MessageTypeImageClassify, ImageB64: "aGk="}
	_, err := conn.Request(context.Background(), req, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Session is closed") {
		t.Errorf("server detail lost: %v", err)
	}
	if shared.KindOf(err) != shared.KindProtocol {
		t.Errorf("kind = %s", shared.KindOf(err))
	}
}

func TestClose_RejectsAllPending(t *testing.T) {
	const n = 4
	got := make(chan struct{})
	conn := newTestConn(t, func(ws *websocket.Conn) {
		for i := 0; i < n; i++ {
			readRequest(t, ws)
		}
		close(got)
		// Never respond; hold the socket open until the client closes.
		_, _, _ = ws.ReadMessage()
	})

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &transport.ConversationAppend{Type: transport.MessageTypeConversationAppend, Text: "x"}
			_, errs[i] = conn.Request(context.Background(), req, time.Minute)
		}(i)
	}

	<-got
	conn.Close()
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, shared.ErrConnectionClosed) {
			t.Errorf("request %d: expected connection-closed, got %v", i, err)
		}
	}
	if conn.IsOpen() {
		t.Error("connection should report closed")
	}
}

func TestRequest_AfterClose(t *testing.T) {
	conn := newTestConn(t, func(ws *websocket.Conn) {
		_, _, _ = ws.ReadMessage()
	})
	conn.Close()

	req := &transport.ConversationAppend{Type: transport.MessageTypeConversationAppend, Text: "x"}
	_, err := conn.Request(context.Background(), req, time.Second)
	if !errors.Is(err, shared.ErrConnectionClosed) {
		t.Fatalf("expected connection-closed, got %v", err)
	}
}

func TestRequest_ContextCancel(t *testing.T) {
	conn := newTestConn(t, func(ws *websocket.Conn) {
		readRequest(t, ws)
		_, _, _ = ws.ReadMessage() // never respond
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	req := &transport.ConversationAppend{Type: transport.MessageTypeConversationAppend, Text: "x"}
	_, err := conn.Request(ctx, req, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDial_Refused(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws/nope", nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
