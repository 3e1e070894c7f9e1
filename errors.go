package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when an email, password, challenge id or
	// code fails validation. No store is touched in that case.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAccountExists is returned by Signup for an email that is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrUserNotFound is returned by Account lookups. Login never returns it.
	ErrUserNotFound = errors.New("user not found")
	// ErrIncorrectCredentials covers unknown email, wrong password, wrong
	// challenge id, wrong code and expired or consumed challenges alike.
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	// ErrChallengeNotFound is returned by PendingChallenge when no live
	// challenge exists for the email.
	ErrChallengeNotFound = errors.New("no pending challenge")

	// ErrTokenInvalid is the parent of every token rejection.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrTokenMalformed matches both itself and ErrTokenInvalid.
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	// ErrTokenExpired matches both itself and ErrTokenInvalid.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
	// ErrTokenRevoked matches both itself and ErrTokenInvalid.
	ErrTokenRevoked = fmt.Errorf("%w: revoked", ErrTokenInvalid)

	// ErrUnexpected hides backend failures from callers. Details go to the logger.
	ErrUnexpected = errors.New("unexpected error")
	// ErrEngineNotReady is returned by a zero Engine or one whose Build failed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
