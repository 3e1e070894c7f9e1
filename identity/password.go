package identity

import (
	"errors"
	"fmt"
)

// MinPasswordBytes is the shortest accepted password.
const MinPasswordBytes = 8

const redacted = "[REDACTED]"

// ErrInvalidPassword is returned by ParsePassword for passwords shorter than
// MinPasswordBytes.
var ErrInvalidPassword = errors.New("invalid password")

// Password holds a plaintext password between parsing and hashing.
//
// Its formatting and serialization methods never reveal the value; call
// Expose at the hashing or comparison site.
type Password struct {
	value string
}

// ParsePassword validates raw. Length is measured in bytes, with no
// Unicode normalization.
func ParsePassword(raw string) (Password, error) {
	if len(raw) < MinPasswordBytes {
		return Password{}, ErrInvalidPassword
	}
	return Password{value: raw}, nil
}

// Expose returns the plaintext.
func (p Password) Expose() string {
	return p.value
}

func (p Password) String() string {
	return redacted
}

func (p Password) GoString() string {
	return "identity.Password{" + redacted + "}"
}

func (p Password) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (p Password) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
