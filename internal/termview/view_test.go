package termview

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/scopenote/scopenote/internal/diagram"
)

func renderOneFrame(t *testing.T, buf *bytes.Buffer) *View {
	t.Helper()

	view := NewView(buf)
	w, h := view.StageSize()
	stage := diagram.Letterbox(w, h, diagram.DefaultAspect)

	view.BeginFrame(stage)
	px, py := stage.Project(0.38, 0.40)
	view.DrawMarker(diagram.Marker{Key: "fundus", Display: "Fundus", FracX: 0.38, FracY: 0.40, PX: px, PY: py, Count: 2})
	view.DrawCallout(diagram.Callout{
		Key: "fundus", Display: "Fundus", Side: diagram.SideLeft, Mapped: true,
		Images: []diagram.Image{{RemoteID: 1}, {RemoteID: 2}},
	})
	view.DrawCallout(diagram.Callout{
		Key: "pylorus", Display: "Pylorus", Side: diagram.SideRight, Mapped: true,
		Images: []diagram.Image{{RemoteID: 3}},
	})
	view.EndFrame()
	return view
}

func TestView_FrameShowsMarkersAndRails(t *testing.T) {
	var buf bytes.Buffer
	renderOneFrame(t, &buf)
	out := buf.String()

	if !strings.Contains(out, "2") {
		t.Error("marker count missing from grid")
	}
	if !strings.Contains(out, "◀") || !strings.Contains(out, "Fundus (2)") {
		t.Errorf("left rail missing:\n%s", out)
	}
	if !strings.Contains(out, "▶") || !strings.Contains(out, "Pylorus (1)") {
		t.Errorf("right rail missing:\n%s", out)
	}
}

func TestView_Loading(t *testing.T) {
	var buf bytes.Buffer
	view := NewView(&buf)

	view.ShowLoading("loading anatomical mapping")
	if !strings.Contains(buf.String(), "loading anatomical mapping") {
		t.Errorf("loading line missing: %q", buf.String())
	}
}

func TestView_Lightbox(t *testing.T) {
	var buf bytes.Buffer
	view := NewView(&buf)

	view.ShowLightbox(diagram.Image{RemoteID: 7, Label: "antrum", Description: "mucosal view"}, 0, 3)
	out := buf.String()
	if !strings.Contains(out, "1/3") || !strings.Contains(out, "antrum") {
		t.Errorf("lightbox output = %q", out)
	}
	if !strings.Contains(out, "mucosal view") {
		t.Errorf("description missing: %q", out)
	}
}

func TestFeed_Lines(t *testing.T) {
	var buf bytes.Buffer
	feed := NewFeed(&buf)
	feed.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	feed.Info("session started")
	feed.Error("classification failed")

	out := buf.String()
	if !strings.Contains(out, "09:30:00") {
		t.Errorf("timestamp missing: %q", out)
	}
	if !strings.Contains(out, "session started") || !strings.Contains(out, "classification failed") {
		t.Errorf("feed lines missing: %q", out)
	}
}
