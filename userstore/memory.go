package userstore

import (
	"context"
	"sync"

	"github.com/MrEthical07/authcore/identity"
)

// MemoryStore is an in-process Store guarded by a read/write mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[identity.Email]Account
	verifier Verifier
}

// NewMemoryStore returns an empty MemoryStore that validates with verifier.
func NewMemoryStore(verifier Verifier) *MemoryStore {
	return &MemoryStore{
		accounts: make(map[identity.Email]Account),
		verifier: verifier,
	}
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, acct Account) error {
	if err := checkAccount(acct); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.Email]; ok {
		return ErrAlreadyExists
	}
	s.accounts[acct.Email] = acct
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, email identity.Email) (Account, error) {
	s.mu.RLock()
	acct, ok := s.accounts[email]
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

// Validate implements Store. The hash comparison runs outside the lock.
func (s *MemoryStore) Validate(ctx context.Context, email identity.Email, pw identity.Password) error {
	acct, err := s.Get(ctx, email)
	if err != nil {
		return err
	}
	return verifyAccount(ctx, s.verifier, acct, pw)
}

// Len returns the number of registered accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
