package codestore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

// MemoryStore is an in-process Store. Expiry is evaluated against the
// configured clock on every read.
type MemoryStore struct {
	mu      sync.RWMutex
	pending map[identity.Email]Challenge
	opts    Options
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		pending: make(map[identity.Email]Challenge),
		opts:    opts.withDefaults(),
	}
}

// Issue implements Store.
func (s *MemoryStore) Issue(_ context.Context, email identity.Email, id identity.ChallengeID, code identity.OneTimeCode) error {
	c := newChallenge(s.opts, email, id, code)
	s.mu.Lock()
	s.pending[email] = c
	s.mu.Unlock()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, email identity.Email) (Challenge, error) {
	s.mu.RLock()
	c, ok := s.pending[email]
	s.mu.RUnlock()
	if !ok || c.Expired(s.opts.Now()) {
		return Challenge{}, ErrNotFound
	}
	return c, nil
}

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, email identity.Email, id identity.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.pending[email]
	if !ok {
		return ErrNotFound
	}
	if c.Expired(s.opts.Now()) {
		delete(s.pending, email)
		return ErrNotFound
	}
	if !c.ChallengeID.Equal(id) {
		return ErrNotFound
	}
	delete(s.pending, email)
	return nil
}

// Prune drops challenges that expired at or before now and returns how many
// were removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for email, c := range s.pending {
		if c.Expired(now) {
			delete(s.pending, email)
			removed++
		}
	}
	return removed
}
