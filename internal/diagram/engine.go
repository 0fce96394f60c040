package diagram

import (
	"log/slog"
	"sync"
)

// Image is one classified upload as the engine sees it. The session
// controller owns the collection; the engine treats every SetImages
// snapshot as read-only input.
type Image struct {
	RemoteID    int64
	Label       string
	Reasoning   string
	Description string
	Thumbnail   []byte
}

type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Marker is a positioned dot on the diagram. FracX/FracY are the
// cached fractional coordinates; PX/PY are recomputed on every resize
// without rebuilding the marker itself.
type Marker struct {
	Key     string
	Display string
	FracX   float64
	FracY   float64
	PX      float64
	PY      float64
	Count   int
}

// Callout is the rail card summarizing one bucket. Images keep
// classification completion order.
type Callout struct {
	Key     string
	Display string
	Side    Side
	Mapped  bool
	Images  []Image
}

// RenderTarget receives one frame's worth of draw calls. The DOM was
// the original target; the terminal adapter and the test fakes are
// equally valid ones.
type RenderTarget interface {
	ShowLoading(message string)
	BeginFrame(stage Rect)
	DrawMarker(m Marker)
	DrawCallout(c Callout)
	EndFrame()
	ShowLightbox(img Image, index, total int)
}

// renderState makes the layout-ready x mapping-ready x pending-render
// combinations explicit so they cannot drift apart.
type renderState int

const (
	stateWaitingMapping renderState = iota
	stateWaitingLayout
	stateReady
)

type Engine struct {
	mu sync.Mutex

	mapping Mapping
	aspect  float64
	target  RenderTarget
	log     *slog.Logger

	images  []Image
	markers []Marker

	stageW, stageH float64
	pendingRender  bool

	lightboxIdx int
	lightboxOn  bool
}

func NewEngine(target RenderTarget, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		aspect: DefaultAspect,
		target: target,
		log:    log.With("component", "diagram"),
	}
}

func (e *Engine) state() renderState {
	if e.mapping == nil {
		return stateWaitingMapping
	}
	if e.stageW <= 0 || e.stageH <= 0 {
		return stateWaitingLayout
	}
	return stateReady
}

func (e *Engine) SetMapping(m Mapping) {
	e.mu.Lock()
	e.mapping = m
	e.mu.Unlock()
	e.Render()
}

// SetImages replaces the classified-image snapshot. Buckets are
// derived state and recomputed on the next render pass.
func (e *Engine) SetImages(images []Image) {
	e.mu.Lock()
	e.images = append(e.images[:0:0], images...)
	e.mu.Unlock()
	e.Render()
}

// SetStageSize feeds the engine a new layout measurement. Existing
// markers are repositioned from their cached fractional coordinates;
// a render deferred for want of layout runs now, exactly once.
func (e *Engine) SetStageSize(w, h float64) {
	e.mu.Lock()
	e.stageW, e.stageH = w, h
	runDeferred := e.pendingRender && e.state() == stateReady
	if runDeferred {
		e.pendingRender = false
	}
	e.mu.Unlock()

	if runDeferred {
		e.Render()
		return
	}
	e.reflow()
}

// Render is idempotent and safe to call before layout has stabilized.
func (e *Engine) Render() {
	e.mu.Lock()
	switch e.state() {
	case stateWaitingMapping:
		e.mu.Unlock()
		e.target.ShowLoading("loading anatomical mapping")
		return
	case stateWaitingLayout:
		e.pendingRender = true
		e.mu.Unlock()
		return
	}

	stage := Letterbox(e.stageW, e.stageH, e.aspect)
	callouts := e.bucketLocked()
	markers := make([]Marker, 0, len(callouts))
	for _, c := range callouts {
		if !c.Mapped {
			continue
		}
		loc := e.mapping[c.Key]
		px, py := stage.Project(loc.X, loc.Y)
		markers = append(markers, Marker{
			Key:     c.Key,
			Display: c.Display,
			FracX:   loc.X,
			FracY:   loc.Y,
			PX:      px,
			PY:      py,
			Count:   len(c.Images),
		})
	}
	e.markers = markers
	e.mu.Unlock()

	e.target.BeginFrame(stage)
	for _, m := range markers {
		e.target.DrawMarker(m)
	}
	for _, c := range callouts {
		e.target.DrawCallout(c)
	}
	e.target.EndFrame()
}

// reflow repositions cached markers without re-bucketing.
func (e *Engine) reflow() {
	e.mu.Lock()
	if e.state() != stateReady || len(e.markers) == 0 {
		e.mu.Unlock()
		return
	}
	stage := Letterbox(e.stageW, e.stageH, e.aspect)
	for i := range e.markers {
		e.markers[i].PX, e.markers[i].PY = stage.Project(e.markers[i].FracX, e.markers[i].FracY)
	}
	markers := append([]Marker(nil), e.markers...)
	callouts := e.bucketLocked()
	e.mu.Unlock()

	e.target.BeginFrame(stage)
	for _, m := range markers {
		e.target.DrawMarker(m)
	}
	for _, c := range callouts {
		e.target.DrawCallout(c)
	}
	e.target.EndFrame()
}

// bucketLocked groups images by normalized location key. The grouping
// key is the normalized id, never the raw label, so "Z-line" and
// "z line" land in one bucket.
func (e *Engine) bucketLocked() []Callout {
	var order []string
	byKey := make(map[string]*Callout)

	for _, img := range e.images {
		n := e.mapping.Normalize(img.Label)
		c, ok := byKey[n.Key]
		if !ok {
			side := SideRight
			if n.Mapped() && n.Location.X <= 0.5 {
				side = SideLeft
			} else if !n.Mapped() {
				side = SideLeft
			}
			c = &Callout{
				Key:     n.Key,
				Display: n.Display,
				Side:    side,
				Mapped:  n.Mapped(),
			}
			byKey[n.Key] = c
			order = append(order, n.Key)
		}
		c.Images = append(c.Images, img)
	}

	callouts := make([]Callout, 0, len(order))
	for _, key := range order {
		callouts = append(callouts, *byKey[key])
	}
	return callouts
}

// Callouts returns the current buckets, recomputed from the image
// snapshot.
func (e *Engine) Callouts() []Callout {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mapping == nil {
		return nil
	}
	return e.bucketLocked()
}

// OpenLightbox shows the classified image with the given remote id,
// silently doing nothing when the id is unknown.
func (e *Engine) OpenLightbox(remoteID int64) {
	e.mu.Lock()
	idx := -1
	for i, img := range e.images {
		if img.RemoteID == remoteID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return
	}
	e.lightboxIdx = idx
	e.lightboxOn = true
	img := e.images[idx]
	total := len(e.images)
	e.mu.Unlock()

	e.target.ShowLightbox(img, idx, total)
}

// StepLightbox moves the lightbox circularly over the classified list.
func (e *Engine) StepLightbox(delta int) {
	e.mu.Lock()
	if !e.lightboxOn || len(e.images) == 0 {
		e.mu.Unlock()
		return
	}
	n := len(e.images)
	e.lightboxIdx = ((e.lightboxIdx+delta)%n + n) % n
	img := e.images[e.lightboxIdx]
	idx := e.lightboxIdx
	e.mu.Unlock()

	e.target.ShowLightbox(img, idx, n)
}

func (e *Engine) CloseLightbox() {
	e.mu.Lock()
	e.lightboxOn = false
	e.mu.Unlock()
}
