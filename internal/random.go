package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

const decoySecretSize = 32

// ErrOTPDigits is returned by NewOTP for a digit count outside 6..10.
var ErrOTPDigits = errors.New("otp digits must be between 6 and 10")

// NewOTP returns a uniformly random number below 10^digits, zero padded to
// digits characters.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", ErrOTPDigits
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// NewDecoySecret returns a random printable secret used to build a decoy
// password hash at startup.
func NewDecoySecret() (string, error) {
	var raw [decoySecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// TokenDigest maps an opaque token to the fixed-size key used by revocation
// backends. Raw tokens are never stored.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
