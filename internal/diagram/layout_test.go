package diagram

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestLetterbox_WideStage(t *testing.T) {
	// Stage wider than the 3:4 artwork: pillarboxed, full height.
	r := Letterbox(1000, 400, DefaultAspect)
	if !almostEqual(r.H, 400) {
		t.Errorf("height = %g", r.H)
	}
	if !almostEqual(r.W, 300) {
		t.Errorf("width = %g", r.W)
	}
	if !almostEqual(r.X, 350) || !almostEqual(r.Y, 0) {
		t.Errorf("origin = (%g,%g)", r.X, r.Y)
	}
}

func TestLetterbox_TallStage(t *testing.T) {
	r := Letterbox(300, 1000, DefaultAspect)
	if !almostEqual(r.W, 300) {
		t.Errorf("width = %g", r.W)
	}
	if !almostEqual(r.H, 400) {
		t.Errorf("height = %g", r.H)
	}
	if !almostEqual(r.Y, 300) || !almostEqual(r.X, 0) {
		t.Errorf("origin = (%g,%g)", r.X, r.Y)
	}
}

func TestLetterbox_Degenerate(t *testing.T) {
	if !Letterbox(0, 100, DefaultAspect).Empty() {
		t.Error("zero width should give empty rect")
	}
	if !Letterbox(100, -1, DefaultAspect).Empty() {
		t.Error("negative height should give empty rect")
	}
}

func TestProject(t *testing.T) {
	r := Rect{X: 100, Y: 50, W: 300, H: 400}
	px, py := r.Project(0.5, 0.25)
	if !almostEqual(px, 250) || !almostEqual(py, 150) {
		t.Errorf("projected to (%g,%g)", px, py)
	}
	px, py = r.Project(0, 0)
	if !almostEqual(px, 100) || !almostEqual(py, 50) {
		t.Errorf("origin projected to (%g,%g)", px, py)
	}
	px, py = r.Project(1, 1)
	if !almostEqual(px, 400) || !almostEqual(py, 450) {
		t.Errorf("corner projected to (%g,%g)", px, py)
	}
}

func TestProject_ScalesAgainstLetterboxNotStage(t *testing.T) {
	// The same fractional coordinate must land on the same artwork
	// point regardless of how much letterbox padding surrounds it.
	wide := Letterbox(1000, 400, DefaultAspect)
	px, _ := wide.Project(0.5, 0.5)
	if !almostEqual(px, 500) {
		t.Errorf("center x = %g, want stage center 500", px)
	}

	taller := Letterbox(1000, 800, DefaultAspect)
	px2, _ := taller.Project(0.5, 0.5)
	if !almostEqual(px2, 500) {
		t.Errorf("center x = %g after resize, want 500", px2)
	}
}
