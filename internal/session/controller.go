package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scopenote/scopenote/internal/api"
	"github.com/scopenote/scopenote/internal/audio"
	"github.com/scopenote/scopenote/internal/capture"
	"github.com/scopenote/scopenote/internal/diagram"
	"github.com/scopenote/scopenote/internal/shared"
	"github.com/scopenote/scopenote/internal/transport"
)

// ErrBusy is returned when a classification batch is requested while
// another batch is still running.
var ErrBusy = errors.New("classification batch already running")

const (
	// DefaultSyncDebounce delays conversation sync after a draft edit
	// so keystrokes coalesce into one append.
	DefaultSyncDebounce = 600 * time.Millisecond

	DefaultRequestTimeout = 20 * time.Second
)

// Realtime is the correlated request surface of the websocket
// connection. Satisfied by *realtime.Conn.
type Realtime interface {
	Request(ctx context.Context, req transport.Request, timeout time.Duration) (transport.Frame, error)
	IsOpen() bool
	Close() error
}

// Dialer opens the realtime connection for a session id.
type Dialer func(ctx context.Context, sessionID string) (Realtime, error)

// Backend is the REST surface the controller needs. Satisfied by
// *api.Client.
type Backend interface {
	StartSession(ctx context.Context, autoGenerate bool) (*api.StartSessionResponse, error)
	CloseSession(ctx context.Context, sessionID, baseNote string, autoGenerate *bool) (*api.CloseSessionResponse, error)
	GenerateOpnote(ctx context.Context, sessionID, baseNote string) (*api.OpnoteResponse, error)
	Thumbnail(ctx context.Context, imageID int64) ([]byte, error)
}

// Feed receives human-readable progress and failure lines.
type Feed interface {
	Info(msg string)
	Error(msg string)
}

// DiagramSink receives the classified image set after each batch.
// Satisfied by *diagram.Engine.
type DiagramSink interface {
	SetImages(items []diagram.Image)
}

type Config struct {
	Backend Backend
	Dial    Dialer
	Capture capture.Source
	Feed    Feed
	Diagram DiagramSink
	Blobs   *BlobStore

	RequestTimeout time.Duration
	SyncDebounce   time.Duration
}

// Controller drives one procedure at a time: idle until the first
// start (explicit or auto), live while the realtime connection is up,
// closed after the close call. Starting again replaces the session.
type Controller struct {
	backend Backend
	dial    Dialer
	capture capture.Source
	feed    Feed
	diagram DiagramSink
	blobs   *BlobStore
	log     *slog.Logger

	requestTimeout time.Duration
	syncDebounce   time.Duration

	mu          sync.Mutex
	session     *Session
	conn        Realtime
	items       []*UploadItem
	busy        bool
	draft       string
	lastSynced  string
	note        string
	debounce    *time.Timer
	stopCapture func()
}

func New(cfg Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Feed == nil {
		cfg.Feed = noopFeed{}
	}
	if cfg.Diagram == nil {
		cfg.Diagram = noopDiagram{}
	}
	if cfg.Blobs == nil {
		cfg.Blobs = NewBlobStore()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.SyncDebounce == 0 {
		cfg.SyncDebounce = DefaultSyncDebounce
	}

	return &Controller{
		backend:        cfg.Backend,
		dial:           cfg.Dial,
		capture:        cfg.Capture,
		feed:           cfg.Feed,
		diagram:        cfg.Diagram,
		blobs:          cfg.Blobs,
		log:            log.With("component", "session"),
		requestTimeout: cfg.RequestTimeout,
		syncDebounce:   cfg.SyncDebounce,
	}
}

// Start opens a new session, replacing any prior one. The upload queue
// and diagram are reset; live microphone capture begins best-effort.
func (c *Controller) Start(ctx context.Context, autoGenerate bool) error {
	return c.start(ctx, autoGenerate, false)
}

func (c *Controller) start(ctx context.Context, autoGenerate, keepQueue bool) error {
	c.teardownRealtime()

	resp, err := c.backend.StartSession(ctx, autoGenerate)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	conn, err := c.dial(ctx, resp.SessionID)
	if err != nil {
		return fmt.Errorf("connect realtime: %w", err)
	}

	c.mu.Lock()
	if !keepQueue {
		c.resetQueueLocked()
	}
	c.session = &Session{ID: resp.SessionID, AutoGenerate: resp.AutoGenerate}
	c.conn = conn
	c.note = ""
	c.lastSynced = ""
	c.mu.Unlock()

	if !keepQueue {
		c.diagram.SetImages(nil)
	}

	c.startCapture()

	c.log.Info("session started", "session_id", resp.SessionID, "auto_generate", resp.AutoGenerate)
	c.feed.Info("session started: " + resp.SessionID)
	return nil
}

// teardownRealtime stops capture and closes the connection, rejecting
// any requests still pending on it.
func (c *Controller) teardownRealtime() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	stop := c.stopCapture
	c.stopCapture = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Warn("close realtime connection", "error", err)
		}
	}
}

// resetQueueLocked drops all items and revokes every handle they own.
func (c *Controller) resetQueueLocked() {
	for _, item := range c.items {
		c.revokeItemHandles(item)
	}
	c.items = nil
}

func (c *Controller) revokeItemHandles(item *UploadItem) {
	c.blobs.Revoke(item.OriginalHandle)
	c.blobs.Revoke(item.ThumbnailHandle)
	if item.Dictation != nil {
		c.blobs.Revoke(item.Dictation.Handle)
	}
}

func (c *Controller) startCapture() {
	if c.capture == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := c.capture.Start(ctx)
	if err != nil {
		cancel()
		c.log.Warn("microphone capture unavailable", "error", err)
		c.feed.Info("microphone unavailable; dictation limited to file upload")
		return
	}

	done := make(chan struct{})
	src := c.capture
	c.mu.Lock()
	c.stopCapture = func() {
		cancel()
		if err := src.Stop(); err != nil {
			c.log.Warn("stop capture", "error", err)
		}
		<-done
	}
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.dictationLoop(chunks)
	}()
}

// dictationLoop transcodes each captured chunk to canonical WAV and
// ships it as its own correlated request. Responses are handled off
// the loop so a slow transcription never delays the next chunk.
func (c *Controller) dictationLoop(chunks <-chan capture.Chunk) {
	for chunk := range chunks {
		wav, err := audio.ConvertPCMToWAV(chunk.PCM, chunk.SampleRate, audio.ConvertOptions{})
		if err != nil {
			c.log.Warn("transcode dictation chunk", "error", err)
			continue
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		go func(conn Realtime, wav []byte) {
			text, err := c.sendDictation(context.Background(), conn, wav, "audio/wav")
			if err != nil {
				c.log.Debug("dictation chunk failed", "error", err)
				return
			}
			if text != "" {
				c.feed.Info("dictation: " + text)
			}
		}(conn, wav)
	}
}

func (c *Controller) sendDictation(ctx context.Context, conn Realtime, payload []byte, mimeType string) (string, error) {
	req := &transport.DictationAudio{
		Type:     transport.MessageTypeDictationAudio,
		AudioB64: base64.StdEncoding.EncodeToString(payload),
		MimeType: mimeType,
	}

	frame, err := conn.Request(ctx, req, c.requestTimeout)
	if err != nil {
		return "", err
	}

	var resp transport.DictationTranscript
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return "", shared.WithKind(shared.KindProtocol, fmt.Errorf("decode transcript: %w", err))
	}
	return resp.Text, nil
}

// UploadDictation validates and transmits an uploaded audio file as
// dictation. WAV input is re-encoded to the canonical container; other
// accepted types pass through unchanged.
func (c *Controller) UploadDictation(ctx context.Context, fileName, mimeType string, data []byte) error {
	if len(data) == 0 {
		return shared.Validationf("audio file %q is empty", fileName)
	}
	mime, ok := transport.NormalizeAudioMIME(mimeType)
	if !ok {
		return shared.Validationf("unsupported audio type %q; upload WAV, MP3, WebM, OGG, or FLAC", mimeType)
	}

	payload := data
	if mime == "audio/wav" || mime == "audio/x-wav" {
		wav, err := audio.ConvertToWAV(data, audio.ConvertOptions{})
		if err != nil {
			return err
		}
		payload = wav
		mime = "audio/wav"
	}

	c.mu.Lock()
	conn := c.conn
	sess := c.session
	c.mu.Unlock()
	if conn == nil || !conn.IsOpen() {
		if sess != nil && sess.Closed {
			return fmt.Errorf("%w; start a new session before uploading dictation", shared.ErrSessionClosed)
		}
		return fmt.Errorf("%w: start a session before uploading dictation", shared.ErrNoSession)
	}

	text, err := c.sendDictation(ctx, conn, payload, mime)
	if err != nil {
		c.feed.Error("dictation upload failed: " + shared.Detail(err))
		return err
	}
	if text != "" {
		c.feed.Info("dictation: " + text)
	}
	return nil
}

// Enqueue adds an image to the upload queue without classifying it.
func (c *Controller) Enqueue(filename string, data []byte) *UploadItem {
	handle := c.blobs.Create(data)
	item := newUploadItem(filename, data, handle)

	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()

	c.log.Debug("image enqueued", "local_id", item.LocalID, "filename", filename, "bytes", len(data))
	return item
}

// AttachDocumentation attaches text context to a queued item. The text
// is merged into the item's classification request.
func (c *Controller) AttachDocumentation(localID, text, fileName, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.findLocked(localID)
	if item == nil {
		return shared.ErrNotFound
	}
	item.Documentation = &Documentation{Text: text, FileName: fileName, Source: source}
	return nil
}

// AttachDictation attaches an audio annotation to a queued item,
// replacing (and revoking) any previous one.
func (c *Controller) AttachDictation(localID, fileName, mimeType, source string, data []byte) error {
	mime, ok := transport.NormalizeAudioMIME(mimeType)
	if !ok {
		return shared.Validationf("unsupported audio type %q", mimeType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.findLocked(localID)
	if item == nil {
		return shared.ErrNotFound
	}
	if item.Dictation != nil {
		c.blobs.Revoke(item.Dictation.Handle)
	}
	item.Dictation = &Dictation{
		Handle:   c.blobs.Create(data),
		FileName: fileName,
		MimeType: mime,
		Source:   source,
	}
	return nil
}

// Remove drops matching items that have not been classified. Classified
// items are kept: the diagram renders from them.
func (c *Controller) Remove(localID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	for _, item := range c.items {
		if item.LocalID == localID && item.Status != StatusClassified {
			c.revokeItemHandles(item)
			continue
		}
		kept = append(kept, item)
	}
	c.items = kept
}

func (c *Controller) findLocked(localID string) *UploadItem {
	for _, item := range c.items {
		if item.LocalID == localID {
			return item
		}
	}
	return nil
}

// ClassifyQueued runs one classification batch: every queued item, in
// enqueue order, one request in flight at a time. A failed item is
// marked and skipped; the batch continues. If no live session exists
// one is started first; a failed auto-start aborts the batch but keeps
// the queued items.
func (c *Controller) ClassifyQueued(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	if err := c.ensureSession(ctx); err != nil {
		c.feed.Error("could not start a session: " + shared.Detail(err))
		return err
	}

	for {
		item, conn := c.nextQueued()
		if item == nil {
			break
		}
		c.classifyItem(ctx, conn, item)
	}

	c.publishDiagram()
	return nil
}

func (c *Controller) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess != nil && !sess.Closed {
		return nil
	}
	c.log.Info("no live session, starting one")
	return c.start(ctx, false, true)
}

// nextQueued claims the first queued item, marking it classifying.
func (c *Controller) nextQueued() (*UploadItem, Realtime) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if item.Status == StatusQueued {
			item.Status = StatusClassifying
			return item, c.conn
		}
	}
	return nil, nil
}

func (c *Controller) classifyItem(ctx context.Context, conn Realtime, item *UploadItem) {
	req := &transport.ImageClassify{
		Type:          transport.MessageTypeImageClassify,
		ClientImageID: item.LocalID,
		Filename:      item.Filename,
		ImageB64:      base64.StdEncoding.EncodeToString(item.Data),
		TextHint:      c.contextHint(item),
	}

	frame, err := conn.Request(ctx, req, c.requestTimeout)
	if err != nil {
		c.failItem(item, err)
		return
	}

	var resp transport.ImageClassified
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		c.failItem(item, shared.WithKind(shared.KindProtocol, fmt.Errorf("decode classification: %w", err)))
		return
	}

	var thumbHandle string
	if thumb, err := c.backend.Thumbnail(ctx, resp.ImageID); err != nil {
		c.log.Warn("fetch thumbnail", "image_id", resp.ImageID, "error", err)
	} else {
		thumbHandle = c.blobs.Create(thumb)
	}

	c.mu.Lock()
	item.Status = StatusClassified
	item.RemoteID = resp.ImageID
	item.Label = resp.Label
	item.Reasoning = resp.Reasoning
	item.ImageDescription = resp.ImageDescription
	item.Usage = &shared.Usage{
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Latency:      resp.Latency,
	}
	if item.ThumbnailHandle != "" {
		c.blobs.Revoke(item.ThumbnailHandle)
	}
	item.ThumbnailHandle = thumbHandle
	c.mu.Unlock()

	c.log.Info("image classified",
		"local_id", item.LocalID,
		"image_id", resp.ImageID,
		"label", resp.Label,
		"latency", resp.Latency)
	c.feed.Info(fmt.Sprintf("%s classified as %s", item.Filename, resp.Label))
}

func (c *Controller) failItem(item *UploadItem, err error) {
	detail := shared.Detail(err)

	c.mu.Lock()
	item.Status = StatusError
	item.Err = detail
	c.mu.Unlock()

	c.log.Error("classification failed", "local_id", item.LocalID, "error", err)
	c.feed.Error(fmt.Sprintf("%s failed: %s", item.Filename, detail))
}

// contextHint joins the pending conversation draft and the item's
// documentation text with a blank line.
func (c *Controller) contextHint(item *UploadItem) string {
	c.mu.Lock()
	draft := c.draft
	var doc string
	if item.Documentation != nil {
		doc = item.Documentation.Text
	}
	c.mu.Unlock()

	switch {
	case draft != "" && doc != "":
		return draft + "\n\n" + doc
	case doc != "":
		return doc
	default:
		return draft
	}
}

// publishDiagram pushes the classified set, in completion order, to
// the diagram engine.
func (c *Controller) publishDiagram() {
	c.mu.Lock()
	var images []diagram.Image
	for _, item := range c.items {
		if item.Status != StatusClassified {
			continue
		}
		img := diagram.Image{
			RemoteID:    item.RemoteID,
			Label:       item.Label,
			Reasoning:   item.Reasoning,
			Description: item.ImageDescription,
		}
		if thumb, ok := c.blobs.Get(item.ThumbnailHandle); ok {
			img.Thumbnail = thumb
		}
		images = append(images, img)
	}
	c.mu.Unlock()

	c.diagram.SetImages(images)
}

// SetDraft records the conversation draft and schedules a debounced
// sync so backend appends coalesce across keystrokes.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.syncDebounce, func() {
		if err := c.syncConversation(context.Background()); err != nil {
			c.log.Warn("conversation sync", "error", err)
		}
	})
	c.mu.Unlock()
}

// SyncNow pushes the draft immediately, bypassing the debounce.
func (c *Controller) SyncNow(ctx context.Context) error {
	c.mu.Lock()
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.mu.Unlock()
	return c.syncConversation(ctx)
}

func (c *Controller) syncConversation(ctx context.Context) error {
	c.mu.Lock()
	draft := c.draft
	conn := c.conn
	synced := c.lastSynced
	c.mu.Unlock()

	if draft == "" || draft == synced {
		return nil
	}
	if conn == nil || !conn.IsOpen() {
		return shared.ErrNoSession
	}

	req := &transport.ConversationAppend{
		Type: transport.MessageTypeConversationAppend,
		Text: draft,
	}
	frame, err := conn.Request(ctx, req, c.requestTimeout)
	if err != nil {
		return fmt.Errorf("sync conversation: %w", err)
	}

	var ack transport.ConversationAck
	if err := json.Unmarshal(frame.Payload, &ack); err == nil && ack.MessageCount > 0 {
		c.log.Debug("conversation synced", "message_count", ack.MessageCount)
	}

	c.mu.Lock()
	c.lastSynced = draft
	c.mu.Unlock()
	return nil
}

// Close ends the session, carrying the current draft as the base note.
// When the backend generated a note (auto-generate), it is surfaced
// immediately. Closing a closed or never-started session is a no-op.
func (c *Controller) Close(ctx context.Context, autoGenerate *bool) error {
	c.mu.Lock()
	sess := c.session
	draft := c.draft
	c.mu.Unlock()

	if sess == nil || sess.Closed {
		c.feed.Info("no open session to close")
		return nil
	}

	resp, err := c.backend.CloseSession(ctx, sess.ID, draft, autoGenerate)
	if err != nil {
		c.feed.Error("close failed: " + shared.Detail(err))
		return err
	}

	c.teardownRealtime()

	c.mu.Lock()
	sess.Closed = true
	if resp.OperativeNote != "" {
		c.note = resp.OperativeNote
	}
	c.mu.Unlock()

	c.log.Info("session closed", "session_id", sess.ID, "note_generated", resp.OperativeNote != "")
	if resp.OperativeNote != "" {
		c.feed.Info("operative note generated")
	} else {
		c.feed.Info("session closed; generate the operative note when ready")
	}
	return nil
}

// GenerateNote requests the operative note. The session must be closed
// first so the backend has the full transcript; before that this is
// rejected locally without a request.
func (c *Controller) GenerateNote(ctx context.Context) (string, error) {
	c.mu.Lock()
	sess := c.session
	draft := c.draft
	c.mu.Unlock()

	if sess == nil {
		return "", shared.Validationf("no session; upload and classify images first")
	}
	if !sess.Closed {
		return "", shared.Validationf("close the session before generating the operative note")
	}

	resp, err := c.backend.GenerateOpnote(ctx, sess.ID, draft)
	if err != nil {
		c.feed.Error("note generation failed: " + shared.Detail(err))
		return "", err
	}

	c.mu.Lock()
	c.note = resp.OperativeNote
	c.mu.Unlock()

	c.feed.Info("operative note generated")
	return resp.OperativeNote, nil
}

// Items returns a snapshot of the upload queue.
func (c *Controller) Items() []UploadItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]UploadItem, len(c.items))
	for i, item := range c.items {
		out[i] = *item
	}
	return out
}

// Current returns the active session, or nil when idle.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Note returns the generated operative note, empty until generated.
func (c *Controller) Note() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.note
}

type noopFeed struct{}

func (noopFeed) Info(string)  {}
func (noopFeed) Error(string) {}

type noopDiagram struct{}

func (noopDiagram) SetImages([]diagram.Image) {}
