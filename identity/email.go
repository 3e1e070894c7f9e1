package identity

import (
	"errors"
	"net/mail"
	"strings"
)

const maxEmailBytes = 320

// ErrInvalidEmail is returned by ParseEmail for values that are not a bare
// local@domain address.
var ErrInvalidEmail = errors.New("invalid email")

// Email is a validated email address. Two Email values are equal when their
// validated strings are byte-identical; no case folding is applied.
type Email struct {
	value string
}

// ParseEmail validates raw and returns it as an Email.
func ParseEmail(raw string) (Email, error) {
	if raw == "" || len(raw) > maxEmailBytes {
		return Email{}, ErrInvalidEmail
	}
	if strings.TrimSpace(raw) != raw {
		return Email{}, ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return Email{}, ErrInvalidEmail
	}

	at := strings.LastIndexByte(raw, '@')
	if at <= 0 || at == len(raw)-1 {
		return Email{}, ErrInvalidEmail
	}
	domain := raw[at+1:]
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return Email{}, ErrInvalidEmail
	}

	return Email{value: raw}, nil
}

// MustParseEmail is ParseEmail for constants and tests. It panics on invalid input.
func MustParseEmail(raw string) Email {
	e, err := ParseEmail(raw)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the validated address.
func (e Email) String() string {
	return e.value
}

// IsZero reports whether e was never parsed.
func (e Email) IsZero() bool {
	return e.value == ""
}
