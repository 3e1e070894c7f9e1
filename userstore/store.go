package userstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/password"
)

var (
	// ErrAlreadyExists is returned by Add when the email is already registered.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrNotFound is returned when no account is registered for the email.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned by Validate when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnexpected wraps backend and decoding failures.
	ErrUnexpected = errors.New("user store unavailable")
)

// Account is a registered user. PasswordHash is a PHC encoded Argon2id hash;
// the plaintext password is never stored.
type Account struct {
	Email        identity.Email
	PasswordHash string
	Requires2FA  bool
}

// Store is the user store contract.
type Store interface {
	// Add inserts acct. It fails with ErrAlreadyExists when acct.Email is taken.
	Add(ctx context.Context, acct Account) error
	// Get returns the account registered for email.
	Get(ctx context.Context, email identity.Email) (Account, error)
	// Validate checks pw against the stored hash for email.
	Validate(ctx context.Context, email identity.Email, pw identity.Password) error
}

// Verifier checks a plaintext password against a stored hash.
// *password.Pool satisfies it.
type Verifier interface {
	Verify(ctx context.Context, password, encodedHash string) (bool, error)
}

// ArgonVerifier adapts a bare *password.Argon2 to Verifier, running the
// hash on the caller goroutine.
type ArgonVerifier struct {
	Hasher *password.Argon2
}

// Verify implements Verifier.
func (a ArgonVerifier) Verify(ctx context.Context, pw, encodedHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return a.Hasher.Verify(pw, encodedHash)
}

func checkAccount(acct Account) error {
	if acct.Email.IsZero() {
		return fmt.Errorf("%w: empty email", ErrUnexpected)
	}
	if acct.PasswordHash == "" {
		return fmt.Errorf("%w: empty password hash", ErrUnexpected)
	}
	return nil
}

func verifyAccount(ctx context.Context, v Verifier, acct Account, pw identity.Password) error {
	ok, err := v.Verify(ctx, pw.Expose(), acct.PasswordHash)
	if err != nil {
		// An oversized attempt can never match a stored hash.
		if errors.Is(err, password.ErrPasswordTooLong) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}
