package codestore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

// DefaultTTL is how long an issued challenge stays pending.
const DefaultTTL = 10 * time.Minute

var (
	// ErrNotFound is returned when no unexpired challenge is pending.
	ErrNotFound = errors.New("challenge not found")
	// ErrUnexpected wraps backend and decoding failures.
	ErrUnexpected = errors.New("code store unavailable")
)

// Challenge is one pending 2FA challenge.
type Challenge struct {
	Email       identity.Email
	ChallengeID identity.ChallengeID
	Code        identity.OneTimeCode
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether c is no longer usable at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store is the one-time-code store contract.
type Store interface {
	// Issue stores a challenge for email, replacing any pending one and
	// starting a fresh TTL.
	Issue(ctx context.Context, email identity.Email, id identity.ChallengeID, code identity.OneTimeCode) error
	// Get returns the pending challenge for email without removing it.
	Get(ctx context.Context, email identity.Email) (Challenge, error)
	// Consume removes the pending challenge for email if its id equals id.
	// It returns ErrNotFound when nothing matching is pending.
	Consume(ctx context.Context, email identity.Email, id identity.ChallengeID) error
}

// Options tune a backend. Zero values select DefaultTTL and time.Now.
type Options struct {
	TTL time.Duration
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func newChallenge(o Options, email identity.Email, id identity.ChallengeID, code identity.OneTimeCode) Challenge {
	now := o.Now()
	return Challenge{
		Email:       email,
		ChallengeID: id,
		Code:        code,
		IssuedAt:    now,
		ExpiresAt:   now.Add(o.TTL),
	}
}
