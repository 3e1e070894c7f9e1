package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupCreatesAccount(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	acct, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	assert.Equal(t, testEmail, acct.Email.String())
	assert.False(t, acct.Requires2FA)

	got, err := e.Account(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestSignupRejectsInvalidInput(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", testPassword},
		{"no at sign", "alice.example.com", testPassword},
		{"short password", testEmail, "short"},
		{"empty password", testEmail, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Signup(ctx, tc.email, tc.password, false)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := e.Account(ctx, testEmail)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSignupDuplicateEmail(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	_, err = e.Signup(ctx, testEmail, "another password", true)
	assert.ErrorIs(t, err, ErrAccountExists)

	acct, err := e.Account(ctx, testEmail)
	require.NoError(t, err)
	assert.False(t, acct.Requires2FA, "the original account is untouched")
}

func TestSignupConcurrentSameEmailOneWins(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	const n = 8
	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Signup(ctx, testEmail, testPassword, false)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAccountExists):
				dups.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), dups.Load())
}

func TestLoginWithoutTwoFactorIssuesToken(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	assert.Empty(t, res.ChallengeID)
	require.NotEmpty(t, res.Token)

	email, err := e.VerifyToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, testEmail, email.String())
}

func TestLoginFailureIsUndifferentiated(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	_, wrongPassword := e.Login(ctx, testEmail, "wrong password")
	_, unknownEmail := e.Login(ctx, "bob@example.com", testPassword)

	assert.ErrorIs(t, wrongPassword, ErrIncorrectCredentials)
	assert.ErrorIs(t, unknownEmail, ErrIncorrectCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	e := buildTestEngine(t, nil)

	_, err := e.Login(context.Background(), "not-an-email", testPassword)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTwoFactorLoginFlow(t *testing.T) {
	mail := NewMockEmailClient()
	e := buildTestEngine(t, New().WithConfig(testConfig()).WithEmailClient(mail))
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)

	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	assert.Empty(t, res.Token)
	require.NotEmpty(t, res.ChallengeID)

	pending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, res.ChallengeID, pending.ChallengeID.String())

	msg, ok := mail.Last(testEmail)
	require.True(t, ok)
	assert.Equal(t, twoFactorSubject, msg.Subject)
	assert.Contains(t, msg.Content, pending.Code.Expose())

	verified, err := e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
	require.NoError(t, err)
	require.NotEmpty(t, verified.Token)

	email, err := e.VerifyToken(ctx, verified.Token)
	require.NoError(t, err)
	assert.Equal(t, testEmail, email.String())

	_, err = e.PendingChallenge(ctx, testEmail)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestTwoFactorCodeCannotBeReplayed(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	pending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)

	_, err = e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
	require.NoError(t, err)

	_, err = e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
	assert.ErrorIs(t, err, ErrIncorrectCredentials)
}

func TestTwoFactorConcurrentVerifyOneWins(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	pending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)

	const n = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose()); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestTwoFactorWrongCodeKeepsChallenge(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	pending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)

	wrong := "000000"
	if pending.Code.Expose() == wrong {
		wrong = "111111"
	}
	_, err = e.Verify2FA(ctx, testEmail, res.ChallengeID, wrong)
	assert.ErrorIs(t, err, ErrIncorrectCredentials)

	_, err = e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
	assert.NoError(t, err)
}

func TestSecondLoginSupersedesChallenge(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)

	first, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	firstPending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)

	second, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, first.ChallengeID, second.ChallengeID)

	_, err = e.Verify2FA(ctx, testEmail, first.ChallengeID, firstPending.Code.Expose())
	assert.ErrorIs(t, err, ErrIncorrectCredentials)

	pending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)
	_, err = e.Verify2FA(ctx, testEmail, second.ChallengeID, pending.Code.Expose())
	assert.NoError(t, err)
}

func TestTwoFactorChallengeExpires(t *testing.T) {
	clock := newTestClock()
	e := buildTestEngine(t, New().WithConfig(testConfig()).WithClock(clock.Now))
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	pending, err := e.PendingChallenge(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(10*time.Minute), pending.ExpiresAt)

	clock.Advance(10*time.Minute + time.Second)

	_, err = e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
	assert.ErrorIs(t, err, ErrIncorrectCredentials)
	_, err = e.PendingChallenge(ctx, testEmail)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestTwoFactorDeliveryFailureIsUnexpected(t *testing.T) {
	mail := NewMockEmailClient()
	mail.Err = errors.New("smtp down")
	e := buildTestEngine(t, New().WithConfig(testConfig()).WithEmailClient(mail))
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, true)
	require.NoError(t, err)

	_, err = e.Login(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrUnexpected)
}

func TestVerifyTokenRejectsMalformed(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	for _, tok := range []string{"", "abc", "a.b.c", strings.Repeat("x", 64)} {
		_, err := e.VerifyToken(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, tok)
	}
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	issuer := buildTestEngine(t, nil)
	_, err := issuer.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	res, err := issuer.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("fedcba9876543210fedcba9876543210")
	other := buildTestEngine(t, New().WithConfig(cfg))

	_, err = other.VerifyToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyTokenExpires(t *testing.T) {
	clock := newTestClock()
	e := buildTestEngine(t, New().WithConfig(testConfig()).WithClock(clock.Now))
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(10*time.Minute).Unix(), res.ExpiresAt.Unix())

	clock.Advance(9 * time.Minute)
	_, err = e.VerifyToken(ctx, res.Token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = e.VerifyToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := buildTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	other, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, e.Logout(ctx, res.Token))

	_, err = e.VerifyToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = e.VerifyToken(ctx, other.Token)
	assert.NoError(t, err, "logout revokes one token, not the account")

	err = e.Logout(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLogoutRejectsInvalidToken(t *testing.T) {
	e := buildTestEngine(t, nil)

	err := e.Logout(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestPruneExpiredRemovesStaleState(t *testing.T) {
	clock := newTestClock()
	e := buildTestEngine(t, New().WithConfig(testConfig()).WithClock(clock.Now))
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	_, err = e.Signup(ctx, "bob@example.com", testPassword, true)
	require.NoError(t, err)

	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, e.Logout(ctx, res.Token))
	_, err = e.Login(ctx, "bob@example.com", testPassword)
	require.NoError(t, err)

	pruned, err := e.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{}, pruned)

	clock.Advance(time.Hour)

	pruned, err = e.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned.Challenges)
	assert.Equal(t, int64(1), pruned.RevokedTokens)
}

func TestEngineBackends(t *testing.T) {
	cases := []struct {
		name    string
		builder func(t *testing.T) *Builder
		backend string
	}{
		{"memory", func(t *testing.T) *Builder { return New().WithConfig(testConfig()) }, backendMemory},
		{"redis", func(t *testing.T) *Builder {
			_, rdb := newTestRedis(t)
			return New().WithConfig(testConfig()).WithRedis(rdb)
		}, backendRedis},
		{"sql", func(t *testing.T) *Builder {
			return New().WithConfig(testConfig()).WithDB(newTestDB(t))
		}, backendSQL},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := buildTestEngine(t, tc.builder(t))
			ctx := context.Background()

			report := e.SecurityReport()
			assert.Equal(t, tc.backend, report.UserBackend)
			assert.Equal(t, tc.backend, report.CodeBackend)
			assert.Equal(t, tc.backend, report.RevokedBackend)

			_, err := e.Signup(ctx, testEmail, testPassword, true)
			require.NoError(t, err)
			_, err = e.Signup(ctx, testEmail, testPassword, true)
			require.ErrorIs(t, err, ErrAccountExists)

			res, err := e.Login(ctx, testEmail, testPassword)
			require.NoError(t, err)
			pending, err := e.PendingChallenge(ctx, testEmail)
			require.NoError(t, err)

			verified, err := e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
			require.NoError(t, err)
			_, err = e.Verify2FA(ctx, testEmail, res.ChallengeID, pending.Code.Expose())
			require.ErrorIs(t, err, ErrIncorrectCredentials)

			_, err = e.VerifyToken(ctx, verified.Token)
			require.NoError(t, err)
			require.NoError(t, e.Logout(ctx, verified.Token))
			_, err = e.VerifyToken(ctx, verified.Token)
			require.ErrorIs(t, err, ErrTokenRevoked)
		})
	}
}

func TestRedisBackendSharedAcrossEngines(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	a := buildTestEngine(t, New().WithConfig(testConfig()).WithRedis(rdb))
	b := buildTestEngine(t, New().WithConfig(testConfig()).WithRedis(rdb))

	_, err := a.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	res, err := b.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, b.Logout(ctx, res.Token))

	_, err = a.VerifyToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestEngineNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = e.Login(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = e.VerifyToken(ctx, "x")
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.ErrorIs(t, e.Logout(ctx, "x"), ErrEngineNotReady)
	_, err = e.PruneExpired(ctx)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.NotPanics(t, e.Close)
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig())
	e, err := b.Build()
	require.NoError(t, err)
	defer e.Close()

	_, err = b.Build()
	assert.Error(t, err)
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	_, err := New().Build()
	assert.Error(t, err, "DefaultConfig has no signing key")
}

func TestBuildConfigImmutableAgainstExternalMutation(t *testing.T) {
	cfg := testConfig()
	e := buildTestEngine(t, New().WithConfig(cfg))
	ctx := context.Background()

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	res, err := e.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	for i := range cfg.JWT.PrivateKey {
		cfg.JWT.PrivateKey[i] = 'z'
	}
	cfg.JWT.TokenTTL = time.Nanosecond

	_, err = e.VerifyToken(ctx, res.Token)
	assert.NoError(t, err)
	assert.Equal(t, 10*time.Minute, e.SecurityReport().TokenTTL)
}

func TestVerifyTokenAcceptsRotatedOutKey(t *testing.T) {
	ctx := context.Background()
	oldKey := []byte("0123456789abcdef0123456789abcdef")
	newKey := []byte("fedcba9876543210fedcba9876543210")

	oldCfg := testConfig()
	oldCfg.JWT.PrivateKey = oldKey
	oldCfg.JWT.KeyID = "k1"
	before := buildTestEngine(t, New().WithConfig(oldCfg))
	_, err := before.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	res, err := before.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	newCfg := testConfig()
	newCfg.JWT.PrivateKey = newKey
	newCfg.JWT.KeyID = "k2"
	newCfg.JWT.VerifyKeys = map[string][]byte{"k1": oldKey, "k2": newKey}
	after := buildTestEngine(t, New().WithConfig(newCfg))

	email, err := after.VerifyToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, testEmail, email.String())

	_, err = after.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	fresh, err := after.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	_, err = after.VerifyToken(ctx, fresh.Token)
	require.NoError(t, err)

	retired := testConfig()
	retired.JWT.PrivateKey = newKey
	retired.JWT.KeyID = "k2"
	retired.JWT.VerifyKeys = map[string][]byte{"k2": newKey}
	dropped := buildTestEngine(t, New().WithConfig(retired))
	_, err = dropped.VerifyToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestWithConfigCopiesVerifyKeys(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.KeyID = "k1"
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": cloneBytes(cfg.JWT.PrivateKey)}
	b := New().WithConfig(cfg)
	cfg.JWT.VerifyKeys["k1"][0] = 'X'
	cfg.JWT.VerifyKeys["k9"] = []byte("fedcba9876543210fedcba9876543210")

	assert.NotEqual(t, byte('X'), b.config.JWT.VerifyKeys["k1"][0])
	assert.NotContains(t, b.config.JWT.VerifyKeys, "k9")
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.KeyID = "k1"
	cfg.Revocation.RetentionSkew = 0
	e := buildTestEngine(t, New().WithConfig(cfg).WithAuditSink(NoOpSink{}))

	r := e.SecurityReport()
	assert.False(t, r.ProductionMode)
	assert.Equal(t, "hs256", r.SigningAlgorithm)
	assert.Equal(t, "k1", r.KeyID)
	assert.Equal(t, 10*time.Minute, r.CodeTTL)
	assert.Equal(t, uint32(8*1024), r.Argon2.Memory)
	assert.Equal(t, 2, r.HashWorkers)
	assert.True(t, r.AuditEnabled)
	assert.True(t, r.MetricsEnabled)
	assert.Equal(t, 1, r.LintHighFindings)
}

func TestWithClientIPReachesAudit(t *testing.T) {
	sink := NewChannelSink(16)
	e := buildTestEngine(t, New().WithConfig(testConfig()).WithAuditSink(sink))
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	_, err := e.Signup(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	select {
	case ev := <-sink.Events():
		assert.Equal(t, auditEventSignupSuccess, ev.EventType)
		assert.Equal(t, "203.0.113.7", ev.IP)
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event")
	}
}
