package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal"
)

// ErrUnexpected wraps backend failures.
var ErrUnexpected = errors.New("revoked token store unavailable")

// Store is the revoked-token store contract.
type Store interface {
	// Revoke adds token to the revoked set. Revoking twice is not an error.
	// expiresAt is the token's signed expiry; the zero time keeps the entry
	// forever.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked reports whether token was revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Options tune a backend.
type Options struct {
	// RetentionSkew extends retention past the token expiry to cover clock
	// drift between issuers and validators.
	RetentionSkew time.Duration
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RetentionSkew < 0 {
		o.RetentionSkew = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// retainUntil returns the instant after which the entry may be dropped, or
// the zero time to retain forever.
func (o Options) retainUntil(expiresAt time.Time) time.Time {
	if expiresAt.IsZero() {
		return time.Time{}
	}
	return expiresAt.Add(o.RetentionSkew)
}

func digest(token string) string {
	return internal.TokenDigest(token)
}
