// Package api is the HTTP client for the backend's session endpoints.
// The realtime websocket handles classification and dictation; this
// client covers session lifecycle, note generation, and thumbnails.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scopenote/scopenote/internal/shared"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type StartSessionResponse struct {
	SessionID    string `json:"session_id"`
	AutoGenerate bool   `json:"auto_generate"`
}

type CloseSessionResponse struct {
	SessionID     string        `json:"session_id"`
	AutoGenerate  bool          `json:"auto_generate"`
	Closed        bool          `json:"closed"`
	OperativeNote string        `json:"operative_note,omitempty"`
	Usage         *shared.Usage `json:"usage,omitempty"`
}

type OpnoteResponse struct {
	OperativeNote string        `json:"operative_note"`
	Usage         *shared.Usage `json:"usage,omitempty"`
}

type AppendMessageResponse struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}

func (c *Client) StartSession(ctx context.Context, autoGenerate bool) (*StartSessionResponse, error) {
	var out StartSessionResponse
	err := c.postJSON(ctx, "/sessions", map[string]any{"auto_generate": autoGenerate}, &out)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return &out, nil
}

// CloseSession closes the session carrying the current draft note.
// autoGenerate overrides the session's flag when non-nil.
func (c *Client) CloseSession(ctx context.Context, sessionID, baseNote string, autoGenerate *bool) (*CloseSessionResponse, error) {
	body := map[string]any{}
	if baseNote != "" {
		body["base_note"] = baseNote
	}
	if autoGenerate != nil {
		body["auto_generate"] = *autoGenerate
	}

	var out CloseSessionResponse
	err := c.postJSON(ctx, "/sessions/"+url.PathEscape(sessionID)+"/close", body, &out)
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	return &out, nil
}

func (c *Client) GenerateOpnote(ctx context.Context, sessionID, baseNote string) (*OpnoteResponse, error) {
	body := map[string]any{}
	if baseNote != "" {
		body["base_note"] = baseNote
	}

	var out OpnoteResponse
	err := c.postJSON(ctx, "/sessions/"+url.PathEscape(sessionID)+"/opnote", body, &out)
	if err != nil {
		return nil, fmt.Errorf("generate opnote: %w", err)
	}
	return &out, nil
}

// AppendMessage is the REST fallback for conversation sync when the
// realtime connection is unavailable.
func (c *Client) AppendMessage(ctx context.Context, sessionID, text, role string) (*AppendMessageResponse, error) {
	if role == "" {
		role = "user"
	}
	var out AppendMessageResponse
	err := c.postJSON(ctx, "/sessions/"+url.PathEscape(sessionID)+"/messages", map[string]any{
		"text": text,
		"role": role,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &out, nil
}

// Thumbnail fetches the rendered thumbnail bytes for a classified image.
func (c *Client) Thumbnail(ctx context.Context, imageID int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/images/%d/thumbnail", c.baseURL, imageID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shared.WithKind(shared.KindTransport, fmt.Errorf("fetch thumbnail: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, shared.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail %d: %s", imageID, httpErrorDetail(resp))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.WithKind(shared.KindTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return shared.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", httpErrorDetail(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shared.WithKind(shared.KindProtocol, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// httpErrorDetail prefers the backend's detail string over a bare
// status code.
func httpErrorDetail(resp *http.Response) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if err == nil && json.Unmarshal(data, &payload) == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("backend returned status %d", resp.StatusCode)
}
