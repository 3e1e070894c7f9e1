package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/codestore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/userstore"
)

// LoginResult is the outcome of a successful credential or 2FA step. Exactly
// one of Token and ChallengeID is set.
type LoginResult struct {
	Token             string
	ExpiresAt         time.Time
	TwoFactorRequired bool
	ChallengeID       string
}

// RunLogin checks credentials and either issues a session token or, for
// accounts that require 2FA, stores a fresh challenge and returns its id.
//
// Unknown email and wrong password both yield Errors.IncorrectCredentials.
func RunLogin(ctx context.Context, rawEmail, rawPassword string, deps Deps) (*LoginResult, error) {
	deps.fill()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		deps.Hooks.MetricInc(deps.Metrics.LoginFailure)
		deps.Hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.InvalidInput, reason("invalid_email"))
		return nil, deps.Errors.InvalidInput
	}
	pw, err := identity.ParsePassword(rawPassword)
	if err != nil {
		deps.Hooks.MetricInc(deps.Metrics.LoginFailure)
		deps.Hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, email.String(), deps.Errors.InvalidInput, reason("invalid_password"))
		return nil, deps.Errors.InvalidInput
	}

	start := deps.Now()
	err = deps.Users.Validate(ctx, email, pw)
	if errors.Is(err, userstore.ErrNotFound) {
		deps.VerifyDecoy(ctx, pw.Expose())
	}
	deps.Hooks.Observe(deps.Metrics.PasswordHashLatency, deps.Now().Sub(start))
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrNotFound):
			return nil, loginRejected(ctx, email, "user_not_found", deps)
		case errors.Is(err, userstore.ErrInvalidCredentials):
			return nil, loginRejected(ctx, email, "password_mismatch", deps)
		default:
			deps.Hooks.MetricInc(deps.Metrics.LoginFailure)
			deps.Hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, email.String(), deps.Errors.Unexpected, reason("store"))
			return nil, deps.unexpected("login validate", err)
		}
	}

	acct, err := deps.Users.Get(ctx, email)
	if err != nil {
		// Validate and Get are separate critical sections.
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, loginRejected(ctx, email, "user_not_found", deps)
		}
		deps.Hooks.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.unexpected("login account lookup", err)
	}

	if !acct.Requires2FA {
		res, err := issueSession(ctx, email, deps)
		if err != nil {
			deps.Hooks.MetricInc(deps.Metrics.LoginFailure)
			deps.Hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, email.String(), err, reason("token_issue"))
			return nil, err
		}
		deps.Hooks.MetricInc(deps.Metrics.LoginSuccess)
		deps.Hooks.EmitAudit(ctx, deps.Events.LoginSuccess, true, email.String(), nil, nil)
		return res, nil
	}

	id, err := deps.NewChallengeID()
	if err != nil {
		return nil, deps.unexpected("challenge id", err)
	}
	code, err := deps.NewCode()
	if err != nil {
		return nil, deps.unexpected("one-time code", err)
	}
	if err := deps.Codes.Issue(ctx, email, id, code); err != nil {
		deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, email.String(), deps.Errors.Unexpected, reason("challenge_store"))
		return nil, deps.unexpected("challenge issue", err)
	}
	if deps.DeliverCode != nil {
		if err := deps.DeliverCode(ctx, email, code); err != nil {
			deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, email.String(), deps.Errors.Unexpected, reason("code_delivery"))
			return nil, deps.unexpected("code delivery", err)
		}
	}

	deps.Hooks.MetricInc(deps.Metrics.TwoFactorRequired)
	deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorRequired, true, email.String(), nil, nil)
	return &LoginResult{
		TwoFactorRequired: true,
		ChallengeID:       id.String(),
	}, nil
}

// RunVerify2FA completes a 2FA login. The stored challenge is consumed
// before a token is issued, so each challenge yields at most one session.
// A mismatched id or code leaves the challenge in place.
func RunVerify2FA(ctx context.Context, rawEmail, rawChallengeID, rawCode string, deps Deps) (*LoginResult, error) {
	deps.fill()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		return nil, twoFactorInvalidInput(ctx, "", "invalid_email", deps)
	}
	id, err := identity.ParseChallengeID(rawChallengeID)
	if err != nil {
		return nil, twoFactorInvalidInput(ctx, email.String(), "invalid_challenge_id", deps)
	}
	code, err := identity.ParseOneTimeCode(rawCode)
	if err != nil {
		return nil, twoFactorInvalidInput(ctx, email.String(), "invalid_code", deps)
	}

	pending, err := deps.Codes.Get(ctx, email)
	if err != nil {
		if errors.Is(err, codestore.ErrNotFound) {
			return nil, twoFactorRejected(ctx, email, "no_pending_challenge", deps)
		}
		deps.Hooks.MetricInc(deps.Metrics.TwoFactorFailure)
		return nil, deps.unexpected("challenge lookup", err)
	}

	// Evaluate both comparisons so timing does not reveal which one failed.
	idOK := pending.ChallengeID.Equal(id)
	codeOK := pending.Code.Equal(code)
	if !idOK || !codeOK {
		return nil, twoFactorRejected(ctx, email, "mismatch", deps)
	}

	if err := deps.Codes.Consume(ctx, email, id); err != nil {
		if errors.Is(err, codestore.ErrNotFound) {
			deps.Hooks.MetricInc(deps.Metrics.TwoFactorReplay)
			return nil, twoFactorRejected(ctx, email, "already_consumed", deps)
		}
		deps.Hooks.MetricInc(deps.Metrics.TwoFactorFailure)
		return nil, deps.unexpected("challenge consume", err)
	}

	res, err := issueSession(ctx, email, deps)
	if err != nil {
		deps.Hooks.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, email.String(), err, reason("token_issue"))
		return nil, err
	}
	deps.Hooks.MetricInc(deps.Metrics.TwoFactorSuccess)
	deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorSuccess, true, email.String(), nil, nil)
	return res, nil
}

// RunPendingChallenge returns the challenge currently pending for rawEmail
// without consuming it.
func RunPendingChallenge(ctx context.Context, rawEmail string, deps Deps) (codestore.Challenge, error) {
	deps.fill()
	if !deps.ready() {
		return codestore.Challenge{}, deps.Errors.EngineNotReady
	}
	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		return codestore.Challenge{}, deps.Errors.InvalidInput
	}
	c, err := deps.Codes.Get(ctx, email)
	if err != nil {
		if errors.Is(err, codestore.ErrNotFound) {
			return codestore.Challenge{}, deps.Errors.ChallengeNotFound
		}
		return codestore.Challenge{}, deps.unexpected("challenge lookup", err)
	}
	return c, nil
}

func issueSession(ctx context.Context, email identity.Email, deps Deps) (*LoginResult, error) {
	token, expiresAt, err := deps.Tokens.Issue(email.String())
	if err != nil {
		return nil, deps.unexpected("token issue", err)
	}
	deps.Hooks.MetricInc(deps.Metrics.TokenIssued)
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func loginRejected(ctx context.Context, email identity.Email, why string, deps Deps) error {
	deps.Hooks.MetricInc(deps.Metrics.LoginFailure)
	deps.Hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, email.String(), deps.Errors.IncorrectCredentials, reason(why))
	return deps.Errors.IncorrectCredentials
}

func twoFactorRejected(ctx context.Context, email identity.Email, why string, deps Deps) error {
	deps.Hooks.MetricInc(deps.Metrics.TwoFactorFailure)
	deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, email.String(), deps.Errors.IncorrectCredentials, reason(why))
	return deps.Errors.IncorrectCredentials
}

func twoFactorInvalidInput(ctx context.Context, email, why string, deps Deps) error {
	deps.Hooks.MetricInc(deps.Metrics.TwoFactorFailure)
	deps.Hooks.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, email, deps.Errors.InvalidInput, reason(why))
	return deps.Errors.InvalidInput
}
