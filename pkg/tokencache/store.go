package tokencache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists token entries.
type Store interface {
	// Get returns the entry for key. It returns ErrCacheMiss if there is no
	// entry or the entry is neither valid nor refreshable.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores the entry for key.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
}
