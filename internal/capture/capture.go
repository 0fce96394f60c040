// Package capture abstracts live dictation input. A workstation feeds
// raw PCM through a pipe or capture device file; when none is
// available the session degrades to upload-only dictation.
package capture

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/scopenote/scopenote/internal/shared"
)

// ErrUnavailable means no capture input exists. Callers treat it as a
// permission-class failure and continue without live dictation.
var ErrUnavailable = shared.Permissionf("microphone capture unavailable")

// Chunk is roughly one flush interval of raw 16-bit mono PCM.
type Chunk struct {
	PCM        []byte
	SampleRate int
}

// Source delivers dictation audio until stopped.
type Source interface {
	Start(ctx context.Context) (<-chan Chunk, error)
	Stop() error
}

const (
	// FlushInterval is how often buffered samples are emitted.
	FlushInterval = time.Second

	DefaultSampleRate = 16000
)

// StreamSource slices an io.Reader of raw PCM into fixed-interval
// chunks. It backs both pipe capture (arecord and friends) and tests.
type StreamSource struct {
	r          io.ReadCloser
	sampleRate int

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func NewStreamSource(r io.ReadCloser, sampleRate int) *StreamSource {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &StreamSource{r: r, sampleRate: sampleRate, done: make(chan struct{})}
}

// OpenDevice opens a capture device file or named pipe. An empty path
// or a missing file degrades to ErrUnavailable rather than failing the
// session.
func OpenDevice(path string, sampleRate int) (*StreamSource, error) {
	if path == "" {
		return nil, ErrUnavailable
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrUnavailable
	}
	return NewStreamSource(f, sampleRate), nil
}

func (s *StreamSource) Start(ctx context.Context) (<-chan Chunk, error) {
	chunkBytes := s.sampleRate * 2 // one second of 16-bit mono
	out := make(chan Chunk, 4)

	reads := make(chan []byte, 8)
	go func() {
		defer close(reads)
		for {
			buf := make([]byte, 4096)
			n, err := s.r.Read(buf)
			if n > 0 {
				select {
				case reads <- buf[:n]:
				case <-s.done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		defer close(out)
		var pending []byte
		ticker := time.NewTicker(FlushInterval)
		defer ticker.Stop()

		flush := func(final bool) {
			if len(pending) == 0 {
				return
			}
			chunk := Chunk{PCM: pending, SampleRate: s.sampleRate}
			pending = nil
			if final {
				// Shutting down: deliver into the channel buffer if
				// there is room, otherwise drop rather than block.
				select {
				case out <- chunk:
				default:
				}
				return
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
			case <-s.done:
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				flush(true)
				return
			case data, ok := <-reads:
				if !ok {
					flush(true)
					return
				}
				pending = append(pending, data...)
				for len(pending) >= chunkBytes {
					chunk := Chunk{PCM: pending[:chunkBytes:chunkBytes], SampleRate: s.sampleRate}
					pending = pending[chunkBytes:]
					select {
					case out <- chunk:
					case <-ctx.Done():
						return
					case <-s.done:
						return
					}
				}
			case <-ticker.C:
				flush(false)
			}
		}
	}()

	return out, nil
}

func (s *StreamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	return s.r.Close()
}
