package flows

import (
	"context"
	"time"
)

// RunLogout validates token and adds it to the revoked set, retained until
// the token's own expiry. A token that is already revoked fails validation,
// so a second logout reports Errors.TokenRevoked.
func RunLogout(ctx context.Context, token string, deps Deps) error {
	res := RunValidate(ctx, token, deps)
	if res.Err != nil {
		return res.Err
	}
	deps.fill()

	var expiresAt time.Time
	if res.Claims.ExpiresAt != nil {
		expiresAt = res.Claims.ExpiresAt.Time
	}
	if err := deps.Revoked.Revoke(ctx, token, expiresAt); err != nil {
		return deps.unexpected("revoke", err)
	}

	deps.Hooks.MetricInc(deps.Metrics.Logout)
	deps.Hooks.EmitAudit(ctx, deps.Events.Logout, true, res.Email.String(), nil, nil)
	return nil
}
