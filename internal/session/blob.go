package session

import (
	"fmt"
	"sync"
)

// BlobStore hands out opaque handles for transient binary data
// (image previews, dictation audio). Handles are scarce: whoever
// creates one must revoke it when the owning item is replaced or
// removed. Revoking twice is a no-op.
type BlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	next  int
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

func (s *BlobStore) Create(data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	handle := fmt.Sprintf("blob:scopenote/%d", s.next)
	s.blobs[handle] = data
	return handle
}

func (s *BlobStore) Get(handle string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[handle]
	return data, ok
}

func (s *BlobStore) Revoke(handle string) {
	if handle == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, handle)
}

// Len reports the number of live handles. Used to verify nothing leaks.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
