package shared

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns a prefixed random identifier.
func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand should never fail; fall back to a
		// timestamp-seeded token rather than panicking mid-session.
		return fmt.Sprintf("%s%x%04x", prefix, time.Now().UnixNano(), fallbackCounter())
	}
	return prefix + hex.EncodeToString(b)
}

var fallbackSeq = make(chan uint16, 1)

func init() { fallbackSeq <- 0 }

func fallbackCounter() uint16 {
	n := <-fallbackSeq
	fallbackSeq <- n + 1
	return n
}

// Usage is the token/latency telemetry the backend attaches to a
// classification response.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Latency      float64 `json:"latency"`
}
