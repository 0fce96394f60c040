package stubserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/scopenote/scopenote/internal/shared"
	"github.com/scopenote/scopenote/internal/transport"
)

const wsWriteWait = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	store      *SessionStore
	images     *ImageStore
	classifier *Classifier
	log        *slog.Logger
}

func NewHandler(store *SessionStore, images *ImageStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:      store,
		images:     images,
		classifier: NewClassifier(),
		log:        log.With("component", "stubserver"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/sessions", h.StartSession)
	e.POST("/sessions/:id/messages", h.AppendMessage)
	e.POST("/sessions/:id/close", h.CloseSession)
	e.POST("/sessions/:id/opnote", h.GenerateOpnote)
	e.GET("/images/:id/thumbnail", h.Thumbnail)
	e.GET("/ws/:id", h.Realtime)
}

type startPayload struct {
	AutoGenerate *bool `json:"auto_generate"`
}

func (h *Handler) StartSession(c echo.Context) error {
	var payload startPayload
	if err := c.Bind(&payload); err != nil {
		return detailError(c, http.StatusBadRequest, "Payload must be JSON")
	}

	autoGenerate := true
	if payload.AutoGenerate != nil {
		autoGenerate = *payload.AutoGenerate
	}

	state := h.store.Create(autoGenerate)
	h.log.Info("session created", "session_id", state.SessionID, "auto_generate", state.AutoGenerate)
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":    state.SessionID,
		"auto_generate": state.AutoGenerate,
	})
}

type messagePayload struct {
	Text string `json:"text"`
	Role string `json:"role"`
}

func (h *Handler) AppendMessage(c echo.Context) error {
	sessionID := c.Param("id")
	var payload messagePayload
	if err := c.Bind(&payload); err != nil {
		return detailError(c, http.StatusBadRequest, "Payload must be JSON")
	}
	role := payload.Role
	if role == "" {
		role = "user"
	}

	count, err := h.store.AddMessage(sessionID, role, payload.Text)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"message_count": count,
	})
}

type closePayload struct {
	BaseNote     string `json:"base_note"`
	AutoGenerate *bool  `json:"auto_generate"`
}

func (h *Handler) CloseSession(c echo.Context) error {
	sessionID := c.Param("id")
	var payload closePayload
	if err := c.Bind(&payload); err != nil {
		return detailError(c, http.StatusBadRequest, "Payload must be JSON")
	}

	state, err := h.store.Close(sessionID, payload.AutoGenerate)
	if err != nil {
		return sessionError(c, err)
	}

	result := map[string]any{
		"session_id":    sessionID,
		"auto_generate": state.AutoGenerate,
		"closed":        true,
	}
	if state.AutoGenerate {
		result["operative_note"] = BuildOperativeNote(state.Messages, state.Images, payload.BaseNote)
		result["usage"] = noteUsage(state.Messages, state.Images)
	}

	h.log.Info("session closed", "session_id", sessionID, "auto_generate", state.AutoGenerate)
	return c.JSON(http.StatusOK, result)
}

type opnotePayload struct {
	BaseNote string `json:"base_note"`
}

func (h *Handler) GenerateOpnote(c echo.Context) error {
	sessionID := c.Param("id")
	var payload opnotePayload
	if err := c.Bind(&payload); err != nil {
		return detailError(c, http.StatusBadRequest, "Payload must be JSON")
	}

	state, err := h.store.Get(sessionID)
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"operative_note": BuildOperativeNote(state.Messages, state.Images, payload.BaseNote),
		"usage":          noteUsage(state.Messages, state.Images),
	})
}

func (h *Handler) Thumbnail(c echo.Context) error {
	imageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return detailError(c, http.StatusBadRequest, "Image id must be an integer")
	}

	rec, err := h.images.GetByID(c.Request().Context(), imageID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return detailError(c, http.StatusNotFound, "Image not found")
		}
		return detailError(c, http.StatusInternalServerError, err.Error())
	}
	if len(rec.Thumbnail) == 0 {
		return detailError(c, http.StatusNotFound, "Thumbnail not available for this image")
	}
	return c.Blob(http.StatusOK, "image/png", rec.Thumbnail)
}

// Realtime multiplexes classify, dictation, and conversation requests
// for one session over a single websocket, one inbound frame at a time.
func (h *Handler) Realtime(c echo.Context) error {
	sessionID := c.Param("id")

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := h.store.Get(sessionID); err != nil {
		h.sendError(ws, "", "Session not found")
		return nil
	}

	log := h.log.With("session_id", sessionID)
	log.Info("realtime connection opened")
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Info("realtime connection closed", "error", err)
			return nil
		}

		frame, err := transport.DecodeFrame(data)
		if err != nil {
			h.sendError(ws, "", "Payload must be JSON")
			continue
		}
		h.dispatch(ws, sessionID, frame)
	}
}

func (h *Handler) dispatch(ws *websocket.Conn, sessionID string, frame transport.Frame) {
	var result any
	var err error

	switch frame.Type {
	case transport.MessageTypeConversationAppend:
		result, err = h.handleAppend(sessionID, frame)
	case transport.MessageTypeImageClassify:
		result, err = h.handleClassify(sessionID, frame)
	case transport.MessageTypeDictationAudio:
		result, err = h.handleDictation(sessionID, frame)
	default:
		err = errors.New("Unsupported message type.")
	}

	if err != nil {
		h.sendError(ws, frame.RequestID, err.Error())
		return
	}
	h.send(ws, result)
}

func (h *Handler) requireOpen(sessionID string) (SessionState, error) {
	state, err := h.store.Get(sessionID)
	if err != nil {
		return SessionState{}, err
	}
	if state.Closed {
		return SessionState{}, errors.New("Session is closed; start a new session.")
	}
	return state, nil
}

func (h *Handler) handleAppend(sessionID string, frame transport.Frame) (any, error) {
	var req transport.ConversationAppend
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		return nil, errors.New("Payload must be JSON")
	}
	if _, err := h.requireOpen(sessionID); err != nil {
		return nil, err
	}
	if req.Text == "" {
		return nil, errors.New("Conversation text is required.")
	}
	role := req.Role
	if role == "" {
		role = "user"
	}

	count, err := h.store.AddMessage(sessionID, role, req.Text)
	if err != nil {
		return nil, err
	}
	return transport.ConversationAck{
		Type:         transport.MessageTypeConversationAck,
		RequestID:    frame.RequestID,
		MessageCount: count,
	}, nil
}

func (h *Handler) handleClassify(sessionID string, frame transport.Frame) (any, error) {
	var req transport.ImageClassify
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		return nil, errors.New("Payload must be JSON")
	}
	if _, err := h.requireOpen(sessionID); err != nil {
		return nil, err
	}
	if req.ImageB64 == "" {
		return nil, errors.New("Image payload is required.")
	}
	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageB64)
	if err != nil {
		return nil, errors.New("Image payload must be base64.")
	}

	if req.TextHint != "" {
		if _, err := h.store.AddMessage(sessionID, "user", req.TextHint); err != nil {
			return nil, err
		}
	}

	conversation, err := h.store.MessagesAsText(sessionID, transcriptLimit)
	if err != nil {
		return nil, err
	}

	filename := req.Filename
	if filename == "" {
		filename = "upload"
	}
	classification := h.classifier.Classify(filename, req.TextHint, conversation)

	// The stub skips real thumbnail rendering and stores the original
	// bytes, which is enough for the client's preview path.
	imageID, err := h.images.Create(context.Background(), ImageRecord{
		Filename:    filename,
		Description: classification.Description,
		Label:       classification.Label,
		Thumbnail:   imageBytes,
	})
	if err != nil {
		return nil, err
	}

	if err := h.store.AddImage(sessionID, SessionImage{
		ID:          imageID,
		Label:       classification.Label,
		Reasoning:   classification.Reasoning,
		Description: classification.Description,
	}); err != nil {
		return nil, err
	}
	assistantLine := fmt.Sprintf("Image %d labeled %s: %s", imageID, classification.Label, classification.Description)
	if _, err := h.store.AddMessage(sessionID, "assistant", assistantLine); err != nil {
		return nil, err
	}

	return transport.ImageClassified{
		Type:             transport.MessageTypeImageClassified,
		RequestID:        frame.RequestID,
		ClientImageID:    req.ClientImageID,
		ImageID:          imageID,
		Label:            classification.Label,
		Reasoning:        classification.Reasoning,
		ImageDescription: classification.Description,
		Latency:          classification.Usage.Latency,
		InputTokens:      classification.Usage.InputTokens,
		OutputTokens:     classification.Usage.OutputTokens,
	}, nil
}

func (h *Handler) handleDictation(sessionID string, frame transport.Frame) (any, error) {
	var req transport.DictationAudio
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		return nil, errors.New("Payload must be JSON")
	}
	state, err := h.requireOpen(sessionID)
	if err != nil {
		return nil, err
	}
	if req.AudioB64 == "" {
		return nil, errors.New("Audio payload is required for dictation.")
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioB64)
	if err != nil {
		return nil, errors.New("Audio payload must be base64.")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	transcript := TranscribeAudio(audio, mimeType)
	count := len(state.Messages)
	if transcript != "" {
		count, err = h.store.AddMessage(sessionID, "dictation", transcript)
		if err != nil {
			return nil, err
		}
	}

	return transport.DictationTranscript{
		Type:         transport.MessageTypeDictationText,
		RequestID:    frame.RequestID,
		Text:         transcript,
		MessageCount: count,
	}, nil
}

func (h *Handler) send(ws *websocket.Conn, payload any) {
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(payload); err != nil {
		h.log.Warn("write realtime frame", "error", err)
	}
}

func (h *Handler) sendError(ws *websocket.Conn, requestID, detail string) {
	h.send(ws, transport.ErrorFrame{
		Type:      transport.MessageTypeError,
		RequestID: requestID,
		Detail:    detail,
	})
}

func detailError(c echo.Context, status int, detail string) error {
	return c.JSON(status, map[string]string{"detail": detail})
}

func sessionError(c echo.Context, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return detailError(c, http.StatusNotFound, err.Error())
	}
	return detailError(c, http.StatusInternalServerError, err.Error())
}
