package session

import (
	"bytes"
	"testing"
)

func TestBlobStore_CreateGet(t *testing.T) {
	store := NewBlobStore()

	h1 := store.Create([]byte("one"))
	h2 := store.Create([]byte("two"))

	if h1 == h2 {
		t.Fatalf("handles collide: %s", h1)
	}

	data, ok := store.Get(h1)
	if !ok || !bytes.Equal(data, []byte("one")) {
		t.Fatalf("Get(%s) = %q, %v", h1, data, ok)
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
}

func TestBlobStore_RevokeIdempotent(t *testing.T) {
	store := NewBlobStore()
	h := store.Create([]byte("data"))

	store.Revoke(h)
	if _, ok := store.Get(h); ok {
		t.Fatal("handle still live after revoke")
	}

	// Same handle again and an empty handle are both no-ops.
	store.Revoke(h)
	store.Revoke("")

	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", store.Len())
	}
}
