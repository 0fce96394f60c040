package realtime

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// NewRequestID returns a fresh correlation token. Collisions only have
// to be negligible within one connection's pending set.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("req-%d-%06d", time.Now().UnixNano(), rand.Intn(1000000))
	}
	return id.String()
}
