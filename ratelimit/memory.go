package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/moyoez/scangate/types"
)

// MemoryStore keeps windows in process memory. It is only correct for a
// single instance; use RedisStore when several instances share the limit.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*types.RateLimitEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*types.RateLimitEntry),
	}
}

func (s *MemoryStore) Hit(_ context.Context, identifier string, limit int, window time.Duration, now time.Time) (types.RateLimitEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identifier]
	if !ok || !now.Before(entry.ResetAt) {
		entry = &types.RateLimitEntry{
			Identifier: identifier,
			Count:      0,
			ResetAt:    now.Add(window),
		}
		s.entries[identifier] = entry
	}
	if entry.Count >= limit {
		return *entry, false, nil
	}
	entry.Count++
	return *entry, true, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.ResetAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
