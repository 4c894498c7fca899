package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same freshness rule as
// FileStore. Entries are copied on Put and Fetch.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	lifetime time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	value     []byte
	writtenAt time.Time
}

// NewMemoryStore creates an in-memory store. A nil now uses time.Now.
func NewMemoryStore(lifetime time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries:  make(map[string]*memoryEntry),
		lifetime: lifetime,
		now:      now,
	}
}

// Fetch retrieves a value. Returns (nil, false) on miss or when stale.
func (s *MemoryStore) Fetch(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.writtenAt) > s.lifetime {
		return nil, false
	}
	return bytes.Clone(entry.value), true
}

// Put stores a copy of body, resetting its freshness.
func (s *MemoryStore) Put(_ context.Context, key string, body []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = &memoryEntry{
		value:     bytes.Clone(body),
		writtenAt: s.now(),
	}
	s.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, fresh or stale.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
