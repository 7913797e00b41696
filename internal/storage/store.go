package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("entry not found")
	// ErrCorrupt is returned when an entry exists but fails validation.
	ErrCorrupt = errors.New("entry corrupt")
)

// Store persists opaque payloads by key.
type Store interface {
	// Get returns the payload stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the payload under key. Readers never observe a partial write.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
