package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/jwt"
)

// ValidateFailureKind classifies validation failures for metrics and audit.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureExpired
	ValidateFailureRevoked
	ValidateFailureBackend
)

// ValidateResult returns either the token's email and claims or a
// classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Email   identity.Email
	Claims  *jwt.SessionClaims
}

// RunValidate checks signature and expiry first and consults the revoked
// token store only for tokens that pass.
func RunValidate(ctx context.Context, token string, deps Deps) ValidateResult {
	deps.fill()
	if !deps.ready() {
		return ValidateResult{Failure: ValidateFailureBackend, Err: deps.Errors.EngineNotReady}
	}

	start := deps.Now()
	res := runValidate(ctx, token, deps)
	deps.Hooks.Observe(deps.Metrics.ValidateLatency, deps.Now().Sub(start))

	if res.Failure == ValidateFailureNone {
		deps.Hooks.MetricInc(deps.Metrics.TokenAccepted)
		return res
	}
	deps.Hooks.MetricInc(deps.Metrics.TokenRejected)
	if res.Failure == ValidateFailureRevoked {
		deps.Hooks.EmitAudit(ctx, deps.Events.TokenRejected, false, res.Email.String(), res.Err, reason("revoked"))
	}
	return res
}

func runValidate(ctx context.Context, token string, deps Deps) ValidateResult {
	claims, err := deps.Tokens.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: deps.Errors.TokenExpired}
		}
		return ValidateResult{Failure: ValidateFailureMalformed, Err: deps.Errors.TokenMalformed}
	}

	email, err := identity.ParseEmail(claims.Subject)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureMalformed, Err: deps.Errors.TokenMalformed}
	}

	revoked, err := deps.Revoked.IsRevoked(ctx, token)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureBackend, Err: deps.unexpected("revocation lookup", err)}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, Err: deps.Errors.TokenRevoked, Email: email}
	}

	return ValidateResult{Email: email, Claims: claims}
}
