package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/codestore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/tokenstore"
	"github.com/MrEthical07/authcore/userstore"
)

// TokenManager issues and parses session tokens. *jwt.Manager satisfies it.
type TokenManager interface {
	Issue(email string) (string, time.Time, error)
	Parse(token string) (*jwt.SessionClaims, error)
}

// Hooks are the engine callbacks every flow reports through.
type Hooks struct {
	MetricInc func(int)
	Observe   func(int, time.Duration)
	EmitAudit func(ctx context.Context, event string, success bool, email string, err error, metadata func() map[string]string)
	Warn      func(string, ...any)
}

// Metrics carries the host metric ids flows increment.
type Metrics struct {
	SignupSuccess       int
	SignupDuplicate     int
	SignupInvalid       int
	LoginSuccess        int
	LoginFailure        int
	TwoFactorRequired   int
	TwoFactorSuccess    int
	TwoFactorFailure    int
	TwoFactorReplay     int
	TokenIssued         int
	TokenAccepted       int
	TokenRejected       int
	Logout              int
	BackendFailure      int
	PasswordHashLatency int
	ValidateLatency     int
}

// Events carries the audit event names flows emit.
type Events struct {
	SignupSuccess     string
	SignupFailure     string
	SignupDuplicate   string
	LoginSuccess      string
	LoginFailure      string
	TwoFactorRequired string
	TwoFactorSuccess  string
	TwoFactorFailure  string
	TokenRejected     string
	Logout            string
}

// Errors carries the host sentinel errors flows return.
type Errors struct {
	EngineNotReady       error
	InvalidInput         error
	AccountExists        error
	UserNotFound         error
	IncorrectCredentials error
	ChallengeNotFound    error
	TokenMalformed       error
	TokenExpired         error
	TokenRevoked         error
	Unexpected           error
}

// Deps is the full dependency set of the flow package. The root engine
// builds it once.
type Deps struct {
	Users   userstore.Store
	Codes   codestore.Store
	Revoked tokenstore.Store
	Tokens  TokenManager

	// HashPassword runs on the hashing pool.
	HashPassword func(context.Context, string) (string, error)
	// VerifyDecoy spends one verification on a throwaway hash so unknown
	// emails cost the same as wrong passwords.
	VerifyDecoy    func(context.Context, string)
	NewChallengeID func() (identity.ChallengeID, error)
	NewCode        func() (identity.OneTimeCode, error)
	DeliverCode    func(context.Context, identity.Email, identity.OneTimeCode) error
	Now            func() time.Time

	Hooks   Hooks
	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d *Deps) fill() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Hooks.MetricInc == nil {
		d.Hooks.MetricInc = func(int) {}
	}
	if d.Hooks.Observe == nil {
		d.Hooks.Observe = func(int, time.Duration) {}
	}
	if d.Hooks.EmitAudit == nil {
		d.Hooks.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if d.Hooks.Warn == nil {
		d.Hooks.Warn = func(string, ...any) {}
	}
	if d.VerifyDecoy == nil {
		d.VerifyDecoy = func(context.Context, string) {}
	}
	if d.NewChallengeID == nil {
		d.NewChallengeID = identity.NewChallengeID
	}
	if d.NewCode == nil {
		d.NewCode = identity.NewOneTimeCode
	}
}

func (d *Deps) ready() bool {
	return d.Users != nil && d.Codes != nil && d.Revoked != nil && d.Tokens != nil && d.HashPassword != nil
}

// unexpected records a backend failure and returns the host sentinel.
func (d *Deps) unexpected(op string, err error) error {
	d.Hooks.MetricInc(d.Metrics.BackendFailure)
	d.Hooks.Warn("authcore: %s failed: %v", op, err)
	return d.Errors.Unexpected
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
