package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps claimed ids in a map.  Expired ids are overwritten on
// the next claim and removed by PruneExpired.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // id -> expiry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.entries[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[id] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// PruneExpired deletes every id whose claim ended before now and returns how
// many were removed.
func (s *MemoryStore) PruneExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many ids are currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
