package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/userstore"
)

// RunSignup registers a new account. Input is validated before any store is
// touched; the password is hashed on the pool and only the hash is stored.
func RunSignup(ctx context.Context, rawEmail, rawPassword string, requires2FA bool, deps Deps) (userstore.Account, error) {
	deps.fill()
	if !deps.ready() {
		return userstore.Account{}, deps.Errors.EngineNotReady
	}

	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		deps.Hooks.MetricInc(deps.Metrics.SignupInvalid)
		deps.Hooks.EmitAudit(ctx, deps.Events.SignupFailure, false, "", deps.Errors.InvalidInput, reason("invalid_email"))
		return userstore.Account{}, deps.Errors.InvalidInput
	}
	pw, err := identity.ParsePassword(rawPassword)
	if err != nil {
		deps.Hooks.MetricInc(deps.Metrics.SignupInvalid)
		deps.Hooks.EmitAudit(ctx, deps.Events.SignupFailure, false, email.String(), deps.Errors.InvalidInput, reason("invalid_password"))
		return userstore.Account{}, deps.Errors.InvalidInput
	}

	start := deps.Now()
	hash, err := deps.HashPassword(ctx, pw.Expose())
	deps.Hooks.Observe(deps.Metrics.PasswordHashLatency, deps.Now().Sub(start))
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrPasswordTooShort) {
			deps.Hooks.MetricInc(deps.Metrics.SignupInvalid)
			deps.Hooks.EmitAudit(ctx, deps.Events.SignupFailure, false, email.String(), deps.Errors.InvalidInput, reason("password_length"))
			return userstore.Account{}, deps.Errors.InvalidInput
		}
		return userstore.Account{}, deps.unexpected("signup hash", err)
	}

	acct := userstore.Account{
		Email:        email,
		PasswordHash: hash,
		Requires2FA:  requires2FA,
	}
	if err := deps.Users.Add(ctx, acct); err != nil {
		if errors.Is(err, userstore.ErrAlreadyExists) {
			deps.Hooks.MetricInc(deps.Metrics.SignupDuplicate)
			deps.Hooks.EmitAudit(ctx, deps.Events.SignupDuplicate, false, email.String(), deps.Errors.AccountExists, nil)
			return userstore.Account{}, deps.Errors.AccountExists
		}
		deps.Hooks.EmitAudit(ctx, deps.Events.SignupFailure, false, email.String(), deps.Errors.Unexpected, reason("store"))
		return userstore.Account{}, deps.unexpected("signup add", err)
	}

	deps.Hooks.MetricInc(deps.Metrics.SignupSuccess)
	deps.Hooks.EmitAudit(ctx, deps.Events.SignupSuccess, true, email.String(), nil, func() map[string]string {
		if requires2FA {
			return map[string]string{"two_factor": "true"}
		}
		return nil
	})
	return acct, nil
}

// RunGetAccount returns the registered account for rawEmail.
func RunGetAccount(ctx context.Context, rawEmail string, deps Deps) (userstore.Account, error) {
	deps.fill()
	if !deps.ready() {
		return userstore.Account{}, deps.Errors.EngineNotReady
	}
	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		return userstore.Account{}, deps.Errors.InvalidInput
	}
	acct, err := deps.Users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return userstore.Account{}, deps.Errors.UserNotFound
		}
		return userstore.Account{}, deps.unexpected("account lookup", err)
	}
	return acct, nil
}
