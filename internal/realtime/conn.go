// Package realtime wraps the persistent websocket to the backend and
// correlates asynchronous responses to in-flight requests by request
// id. The connection multiplexes unrelated exchanges; ordering between
// them is not guaranteed and not needed.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scopenote/scopenote/internal/shared"
	"github.com/scopenote/scopenote/internal/transport"
)

const (
	DefaultRequestTimeout = 20 * time.Second

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024 * 1024 // classify frames carry base64 images
)

type result struct {
	frame transport.Frame
	err   error
}

type pendingRequest struct {
	ch    chan result
	timer *time.Timer
}

type Conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending map[string]*pendingRequest
	open    bool
}

// Dial opens the realtime connection for one session. A failed dial is
// returned to the caller; retrying is caller policy, not ours.
func Dial(ctx context.Context, endpoint string, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s (status %d): %w", endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &Conn{
		ws:      ws,
		log:     log.With("component", "realtime"),
		send:    make(chan []byte, 64),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingRequest),
		open:    true,
	}

	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Request sends req and blocks until the matching response, the
// timeout, ctx cancellation, or connection close. A zero timeout means
// DefaultRequestTimeout. The request id is assigned when the caller
// left it empty.
func (c *Conn) Request(ctx context.Context, req transport.Request, timeout time.Duration) (transport.Frame, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	id := req.CorrelationID()
	if id == "" {
		id = NewRequestID()
		req.SetCorrelationID(id)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return transport.Frame{}, fmt.Errorf("marshal request: %w", err)
	}

	p := &pendingRequest{ch: make(chan result, 1)}

	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return transport.Frame{}, shared.ErrConnectionClosed
	}
	c.pending[id] = p
	c.mu.Unlock()

	p.timer = time.AfterFunc(timeout, func() {
		c.reject(id, fmt.Errorf("%w after %s", shared.ErrTimeout, timeout))
	})

	select {
	case c.send <- data:
	case <-c.done:
		c.reject(id, shared.ErrConnectionClosed)
	}

	select {
	case res := <-p.ch:
		return res.frame, res.err
	case <-ctx.Done():
		c.remove(id)
		return transport.Frame{}, ctx.Err()
	}
}

// remove drops a pending entry without delivering anything.
func (c *Conn) remove(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok && p.timer != nil {
		p.timer.Stop()
	}
}

// reject delivers err to the waiter for id, if it is still pending.
func (c *Conn) reject(id string, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.ch <- result{err: err}
}

func (c *Conn) resolve(id string, frame transport.Frame) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		// Late or unsolicited; the request may have timed out already.
		c.log.Warn("unmatched response frame", "type", string(frame.Type), "request_id", id)
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.ch <- result{frame: frame}
}

func (c *Conn) dispatch(data []byte) {
	frame, err := transport.DecodeFrame(data)
	if err != nil {
		c.log.Warn("malformed frame dropped", "error", err)
		return
	}

	if frame.Type == transport.MessageTypeError {
		var ef transport.ErrorFrame
		if err := json.Unmarshal(frame.Payload, &ef); err != nil {
			c.log.Warn("malformed error frame dropped", "error", err)
			return
		}
		if ef.RequestID == "" {
			c.log.Warn("server error without request id", "detail", ef.Detail)
			return
		}
		detail := ef.Detail
		if detail == "" {
			detail = "backend rejected the request"
		}
		c.reject(ef.RequestID, shared.WithKind(shared.KindProtocol, fmt.Errorf("%s", detail)))
		return
	}

	if frame.RequestID == "" {
		c.log.Warn("frame without request id dropped", "type", string(frame.Type))
		return
	}
	c.resolve(frame.RequestID, frame)
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error("websocket read error", "error", err)
			}
			return
		}
		c.dispatch(message)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close tears the connection down and rejects every outstanding
// request. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		rejected := c.pending
		c.pending = make(map[string]*pendingRequest)
		c.mu.Unlock()

		close(c.done)

		for _, p := range rejected {
			if p.timer != nil {
				p.timer.Stop()
			}
			p.ch <- result{err: shared.ErrConnectionClosed}
		}
		if n := len(rejected); n > 0 {
			c.log.Info("rejected pending requests on close", "count", n)
		}

		err = c.ws.Close()
	})
	return err
}
