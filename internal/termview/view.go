package termview

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/scopenote/scopenote/internal/diagram"
)

const (
	defaultCols = 48
	defaultRows = 18
)

// View draws the diagram as a character grid with the call-out rails
// listed beneath it. It implements diagram.RenderTarget.
type View struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	cols   int
	rows   int

	stage    diagram.Rect
	markers  []diagram.Marker
	callouts []diagram.Callout
}

func NewView(out io.Writer) *View {
	return &View{
		out:    out,
		styles: NewStyles(DefaultTheme),
		cols:   defaultCols,
		rows:   defaultRows,
	}
}

// StageSize reports the pixel dimensions the engine should lay out
// against. One terminal cell is treated as a 10x20 pixel block so the
// letterbox math sees a realistically proportioned stage.
func (v *View) StageSize() (w, h float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return float64(v.cols) * 10, float64(v.rows) * 20
}

func (v *View) ShowLoading(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, v.styles.Help.Render(message+"..."))
}

func (v *View) BeginFrame(stage diagram.Rect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stage = stage
	v.markers = v.markers[:0]
	v.callouts = v.callouts[:0]
}

func (v *View) DrawMarker(m diagram.Marker) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markers = append(v.markers, m)
}

func (v *View) DrawCallout(c diagram.Callout) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callouts = append(v.callouts, c)
}

func (v *View) EndFrame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, v.compose())
}

func (v *View) ShowLightbox(img diagram.Image, index, total int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var b strings.Builder
	b.WriteString(v.styles.Title.Render(fmt.Sprintf("image %d/%d — %s", index+1, total, img.Label)))
	b.WriteString("\n")
	if img.Description != "" {
		b.WriteString(img.Description)
		b.WriteString("\n")
	}
	if img.Reasoning != "" {
		b.WriteString(v.styles.Help.Render(img.Reasoning))
		b.WriteString("\n")
	}
	fmt.Fprint(v.out, b.String())
}

// compose builds the grid and rails. Marker cells show the bucket's
// image count; the rails keep the engine's left/right assignment.
func (v *View) compose() string {
	grid := make([][]rune, v.rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", v.cols))
	}

	for _, m := range v.markers {
		if v.stage.Empty() {
			continue
		}
		col := int((m.PX - v.stage.X) / v.stage.W * float64(v.cols-1))
		row := int((m.PY - v.stage.Y) / v.stage.H * float64(v.rows-1))
		col = clampInt(col, 0, v.cols-1)
		row = clampInt(row, 0, v.rows-1)
		grid[row][col] = markerRune(m.Count)
	}

	bc := v.styles.Border
	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", v.cols)+"╮"))
	for _, row := range grid {
		lines = append(lines, bc.Render("│")+v.styles.Marker.Render(string(row))+bc.Render("│"))
	}
	lines = append(lines, bc.Render("╰"+strings.Repeat("─", v.cols)+"╯"))

	var left, right []string
	for _, c := range v.callouts {
		line := fmt.Sprintf("%s (%d)", c.Display, len(c.Images))
		if !c.Mapped {
			line += " " + v.styles.Help.Render("[unmapped]")
		}
		if c.Side == diagram.SideLeft {
			left = append(left, line)
		} else {
			right = append(right, line)
		}
	}
	if len(left) > 0 {
		lines = append(lines, v.styles.Callout.Render("◀ "+strings.Join(left, " · ")))
	}
	if len(right) > 0 {
		lines = append(lines, v.styles.Callout.Render("▶ "+strings.Join(right, " · ")))
	}

	return strings.Join(lines, "\n")
}

func markerRune(count int) rune {
	if count > 1 && count < 10 {
		return rune('0' + count)
	}
	return '●'
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
