package identity

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal"
)

// CodeDigits is the fixed length of a one-time code.
const CodeDigits = 6

// ErrInvalidCode is returned by ParseOneTimeCode for anything other than
// exactly six ASCII digits.
var ErrInvalidCode = errors.New("invalid one-time code")

// OneTimeCode is a six digit 2FA code. Leading zeros are significant.
type OneTimeCode struct {
	value string
}

// ParseOneTimeCode accepts exactly CodeDigits ASCII digits, so "000123" is
// valid while "12345", "1234567" and "12345a" are not.
func ParseOneTimeCode(raw string) (OneTimeCode, error) {
	if len(raw) != CodeDigits {
		return OneTimeCode{}, ErrInvalidCode
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return OneTimeCode{}, ErrInvalidCode
		}
	}
	return OneTimeCode{value: raw}, nil
}

// NewOneTimeCode draws a code uniformly from 000000-999999 using crypto/rand.
func NewOneTimeCode() (OneTimeCode, error) {
	raw, err := internal.NewOTP(CodeDigits)
	if err != nil {
		return OneTimeCode{}, err
	}
	return ParseOneTimeCode(raw)
}

// Expose returns the digits.
func (c OneTimeCode) Expose() string {
	return c.value
}

// Equal compares two codes in constant time.
func (c OneTimeCode) Equal(other OneTimeCode) bool {
	return subtle.ConstantTimeCompare([]byte(c.value), []byte(other.value)) == 1
}

// IsZero reports whether c was never parsed.
func (c OneTimeCode) IsZero() bool {
	return c.value == ""
}

func (c OneTimeCode) String() string {
	return redacted
}

func (c OneTimeCode) GoString() string {
	return "identity.OneTimeCode{" + redacted + "}"
}

func (c OneTimeCode) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (c OneTimeCode) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (c OneTimeCode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
