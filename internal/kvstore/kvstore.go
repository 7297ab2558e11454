// Package kvstore provides the keyed store abstraction behind mutable shared
// auth state (lockout counters). Writes go through versioned compare-and-swap
// so that per-key updates are atomic across concurrent request handlers, and
// across processes when the Redis backend is used. An in-process backend
// exists for tests and single-node development; horizontally scaled
// deployments require the shared backend.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict is returned by CompareAndSwap when the stored version
// no longer matches the expected one. Callers retry their read-modify-write.
var ErrVersionConflict = errors.New("kvstore: version conflict")

// Entry is a versioned value. Version increases by one on every successful
// swap; version 0 means the key does not exist yet.
type Entry struct {
	Value   []byte
	Version int64
}

// Store is a durable keyed store with per-key atomic updates.
type Store interface {
	// Get returns the current entry for key. A missing key returns
	// ok=false and a zero Entry, not an error.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// CompareAndSwap writes value iff the stored version equals
	// expectedVersion (0 to create a missing key). On mismatch it returns
	// ErrVersionConflict. A positive ttl bounds the key's lifetime.
	CompareAndSwap(ctx context.Context, key string, expectedVersion int64, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
