package diagram

// DefaultAspect is the width/height ratio of the diagram artwork.
const DefaultAspect = 3.0 / 4.0

// Rect is a pixel-space rectangle inside the stage.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Letterbox computes the centered sub-rectangle of stageW x stageH
// that preserves aspect. Marker positions always scale against this
// rectangle, never against the raw stage, so resizing the window
// cannot shear the diagram.
func Letterbox(stageW, stageH, aspect float64) Rect {
	if stageW <= 0 || stageH <= 0 || aspect <= 0 {
		return Rect{}
	}

	w := stageW
	h := w / aspect
	if h > stageH {
		h = stageH
		w = h * aspect
	}
	return Rect{
		X: (stageW - w) / 2,
		Y: (stageH - h) / 2,
		W: w,
		H: h,
	}
}

// Project scales fractional diagram coordinates into pixel offsets
// within the letterboxed rectangle.
func (r Rect) Project(fx, fy float64) (px, py float64) {
	return r.X + fx*r.W, r.Y + fy*r.H
}
