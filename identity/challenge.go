package identity

import (
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidChallengeID is returned by ParseChallengeID for values that are
// not a canonical random UUID.
var ErrInvalidChallengeID = errors.New("invalid challenge id")

// ChallengeID identifies one 2FA login attempt. It is a version 4 UUID drawn
// from crypto/rand and is never reused.
type ChallengeID struct {
	value string
}

// NewChallengeID returns a fresh identifier.
func NewChallengeID() (ChallengeID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return ChallengeID{}, err
	}
	return ChallengeID{value: id.String()}, nil
}

// ParseChallengeID accepts the canonical 36 character form of a version 4
// UUID, as produced by NewChallengeID.
func ParseChallengeID(raw string) (ChallengeID, error) {
	if len(raw) != 36 {
		return ChallengeID{}, ErrInvalidChallengeID
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.Version() != 4 || id.String() != raw {
		return ChallengeID{}, ErrInvalidChallengeID
	}
	return ChallengeID{value: raw}, nil
}

func (c ChallengeID) String() string {
	return c.value
}

// Equal compares two identifiers in constant time.
func (c ChallengeID) Equal(other ChallengeID) bool {
	return subtle.ConstantTimeCompare([]byte(c.value), []byte(other.value)) == 1
}

// IsZero reports whether c was never parsed.
func (c ChallengeID) IsZero() bool {
	return c.value == ""
}
