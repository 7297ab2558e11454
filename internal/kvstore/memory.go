package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	version   int64
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store for tests and single-node development.
// State does not survive restarts and is invisible to other instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for expiry tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return Entry{}, false, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return Entry{Value: value, Version: entry.version}, true, nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, expectedVersion int64, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.live(key)
	currentVersion := int64(0)
	if ok {
		currentVersion = current.version
	}
	if currentVersion != expectedVersion {
		return ErrVersionConflict
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored, version: currentVersion + 1}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// live returns the entry for key, dropping it if its ttl has elapsed.
// Caller must hold s.mu.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
