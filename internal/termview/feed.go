package termview

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Feed prints session progress lines with timestamps. It satisfies the
// session controller's feed interface.
type Feed struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	now    func() time.Time
}

func NewFeed(out io.Writer) *Feed {
	return &Feed{
		out:    out,
		styles: NewStyles(DefaultTheme),
		now:    time.Now,
	}
}

func (f *Feed) Info(msg string) {
	f.write(f.styles.Help.Render(f.stamp()) + " " + msg)
}

func (f *Feed) Error(msg string) {
	f.write(f.styles.Help.Render(f.stamp()) + " " + f.styles.Error.Render(msg))
}

func (f *Feed) stamp() string {
	return f.now().Format("15:04:05")
}

func (f *Feed) write(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(f.out, line)
}
