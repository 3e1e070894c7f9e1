package flows

import (
	"context"

	"github.com/MrEthical07/authcore/codestore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/userstore"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	deps.fill()
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.ready()
}

func (s Service) Signup(ctx context.Context, email, password string, requires2FA bool) (userstore.Account, error) {
	return RunSignup(ctx, email, password, requires2FA, s.deps)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps)
}

func (s Service) Verify2FA(ctx context.Context, email, challengeID, code string) (*LoginResult, error) {
	return RunVerify2FA(ctx, email, challengeID, code, s.deps)
}

func (s Service) Validate(ctx context.Context, token string) (identity.Email, error) {
	res := RunValidate(ctx, token, s.deps)
	return res.Email, res.Err
}

func (s Service) Logout(ctx context.Context, token string) error {
	return RunLogout(ctx, token, s.deps)
}

func (s Service) PendingChallenge(ctx context.Context, email string) (codestore.Challenge, error) {
	return RunPendingChallenge(ctx, email, s.deps)
}

func (s Service) Account(ctx context.Context, email string) (userstore.Account, error) {
	return RunGetAccount(ctx, email, s.deps)
}
