package capture

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/scopenote/scopenote/internal/shared"
)

func TestOpenDevice_MissingDegrades(t *testing.T) {
	_, err := OpenDevice("/nonexistent/capture-device", 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if shared.KindOf(err) != shared.KindPermission {
		t.Errorf("kind = %s", shared.KindOf(err))
	}

	_, err = OpenDevice("", 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty path: expected ErrUnavailable, got %v", err)
	}
}

func TestStreamSource_ChunksFullSeconds(t *testing.T) {
	// 2.5 seconds of 16kHz mono PCM arriving at once.
	rate := 16000
	pr, pw := io.Pipe()
	src := NewStreamSource(pr, rate)
	defer src.Stop()

	chunks, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		data := make([]byte, rate*2*5/2)
		_, _ = pw.Write(data)
		pw.Close()
	}()

	var got []Chunk
	for c := range chunks {
		got = append(got, c)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks (2 full + remainder), got %d", len(got))
	}
	if len(got[0].PCM) != rate*2 || len(got[1].PCM) != rate*2 {
		t.Errorf("full chunks sized %d/%d", len(got[0].PCM), len(got[1].PCM))
	}
	if len(got[2].PCM) != rate {
		t.Errorf("remainder chunk sized %d, want %d", len(got[2].PCM), rate)
	}
	if got[0].SampleRate != rate {
		t.Errorf("sample rate = %d", got[0].SampleRate)
	}
}

func TestStreamSource_StopFlushesAndCloses(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewStreamSource(pr, 8000)

	chunks, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		_, _ = pw.Write(make([]byte, 1000))
	}()
	time.Sleep(50 * time.Millisecond)

	if err := src.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}

	deadline := time.After(2 * time.Second)
	var total int
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				if total != 1000 {
					t.Errorf("flushed %d bytes, want 1000", total)
				}
				return
			}
			total += len(c.PCM)
		case <-deadline:
			t.Fatal("chunk channel never closed after Stop")
		}
	}
}
