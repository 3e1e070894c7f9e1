package tokenstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	opts    Options
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]time.Time),
		opts:    opts.withDefaults(),
	}
}

// Revoke implements Store. A repeated revoke keeps the longest retention.
func (s *MemoryStore) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	until := s.opts.retainUntil(expiresAt)
	key := digest(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.revoked[key]
	if ok && (prev.IsZero() || (!until.IsZero() && prev.After(until))) {
		return nil
	}
	s.revoked[key] = until
	return nil
}

// IsRevoked implements Store. Entries are reported until pruned.
func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	_, ok := s.revoked[digest(token)]
	s.mu.RUnlock()
	return ok, nil
}

// Prune drops entries whose retention ended before now.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, until := range s.revoked {
		if !until.IsZero() && until.Before(now) {
			delete(s.revoked, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of retained entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}
