package authcore

import (
	"context"
	"log"
	"time"

	"github.com/MrEthical07/authcore/codestore"
	"github.com/MrEthical07/authcore/identity"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/tokenstore"
	"github.com/MrEthical07/authcore/userstore"
)

type storeSet struct {
	users   userstore.Store
	codes   codestore.Store
	revoked tokenstore.Store

	usersBackend   string
	codesBackend   string
	revokedBackend string
}

// Engine sequences the user, one-time-code and revoked-token stores for
// signup, login, 2FA, token validation and logout.
//
// Engine methods are safe for concurrent use after Builder.Build.
type Engine struct {
	config     Config
	flows      flows.Service
	pool       *password.Pool
	jwtManager *jwt.Manager
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     *log.Logger
	now        func() time.Time
	stores     storeSet
}

// Close stops the hashing workers and flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped for backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Signup registers email with password. Returns ErrInvalidInput for a
// malformed email or a password shorter than 8 bytes, ErrAccountExists when
// the email is taken and ErrUnexpected on backend failure.
func (e *Engine) Signup(ctx context.Context, email, password string, requires2FA bool) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	acct, err := e.flows.Signup(ctx, email, password, requires2FA)
	if err != nil {
		return Account{}, err
	}
	return Account{Email: acct.Email, Requires2FA: acct.Requires2FA}, nil
}

// Login checks credentials. For accounts without 2FA the result carries a
// session token; otherwise it carries a ChallengeID and the code goes to the
// configured EmailClient.
//
// Unknown email and wrong password both return ErrIncorrectCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// Verify2FA completes a 2FA login with the challenge id from Login and the
// delivered code. A challenge is consumed by its first successful use.
func (e *Engine) Verify2FA(ctx context.Context, email, challengeID, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Verify2FA(ctx, email, challengeID, code)
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// VerifyToken returns the email a session token was issued to. Failures
// match ErrTokenInvalid and one of ErrTokenMalformed, ErrTokenExpired or
// ErrTokenRevoked.
func (e *Engine) VerifyToken(ctx context.Context, token string) (identity.Email, error) {
	if !e.ready() {
		return identity.Email{}, ErrEngineNotReady
	}
	return e.flows.Validate(ctx, token)
}

// Logout revokes a valid token until its own expiry. Invalid tokens are
// rejected with the VerifyToken errors and are never recorded.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.Logout(ctx, token)
}

// PendingChallenge returns the live 2FA challenge for email without
// consuming it, or ErrChallengeNotFound.
func (e *Engine) PendingChallenge(ctx context.Context, email string) (PendingChallenge, error) {
	if !e.ready() {
		return PendingChallenge{}, ErrEngineNotReady
	}
	c, err := e.flows.PendingChallenge(ctx, email)
	if err != nil {
		return PendingChallenge{}, err
	}
	return PendingChallenge{
		Email:       c.Email,
		ChallengeID: c.ChallengeID,
		Code:        c.Code,
		IssuedAt:    c.IssuedAt,
		ExpiresAt:   c.ExpiresAt,
	}, nil
}

// Account looks up a registered account, or ErrUserNotFound.
func (e *Engine) Account(ctx context.Context, email string) (Account, error) {
	if !e.ready() {
		return Account{}, ErrEngineNotReady
	}
	acct, err := e.flows.Account(ctx, email)
	if err != nil {
		return Account{}, err
	}
	return Account{Email: acct.Email, Requires2FA: acct.Requires2FA}, nil
}

func toLoginResult(res *flows.LoginResult) *LoginResult {
	if res == nil {
		return nil
	}
	return &LoginResult{
		Token:             res.Token,
		ExpiresAt:         res.ExpiresAt,
		TwoFactorRequired: res.TwoFactorRequired,
		ChallengeID:       res.ChallengeID,
	}
}
