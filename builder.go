package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/authcore/codestore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/tokenstore"
	"github.com/MrEthical07/authcore/userstore"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	backendCustom = "custom"
	backendRedis  = "redis"
	backendSQL    = "sql"
	backendMemory = "memory"
)

// Builder assembles an Engine. Each store is chosen in this order: an
// explicit With*Store value, then Redis (WithRedis), then SQL (WithDB),
// then an in-process map.
//
// A Builder builds at most one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *gorm.DB

	users   userstore.Store
	codes   codestore.Store
	revoked tokenstore.Store

	emailClient EmailClient
	auditSink   AuditSink
	logger      *log.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Key material is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs every store not set explicitly with Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB backs every store not set explicitly, and not covered by
// WithRedis, with SQL tables through gorm.
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	b.db = db
	return b
}

// WithUserStore sets the user store.
func (b *Builder) WithUserStore(s userstore.Store) *Builder {
	b.users = s
	return b
}

// WithCodeStore sets the one-time-code store.
func (b *Builder) WithCodeStore(s codestore.Store) *Builder {
	b.codes = s
	return b
}

// WithRevokedTokenStore sets the revoked-token store.
func (b *Builder) WithRevokedTokenStore(s tokenstore.Store) *Builder {
	b.revoked = s
	return b
}

// WithEmailClient sets the collaborator that delivers 2FA codes. Without
// one, codes are only reachable through PendingChallenge.
func (b *Builder) WithEmailClient(c EmailClient) *Builder {
	b.emailClient = c
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithLogger sets the logger used for backend failures. Defaults to log.Default().
func (b *Builder) WithLogger(logger *log.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source for token, challenge and revocation
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, starts the hashing pool and the audit
// dispatcher and wires the stores.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		TokenTTL:      cfg.JWT.TokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cloneKeyMap(cfg.JWT.VerifyKeys),
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHING --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	pool, err := password.NewPool(ph, cfg.Password.Workers)
	if err != nil {
		return nil, err
	}

	decoySecret, err := internal.NewDecoySecret()
	if err != nil {
		pool.Close()
		return nil, err
	}
	decoyHash, err := pool.Hash(context.Background(), decoySecret)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("decoy hash: %w", err)
	}

	// -------- STORES --------
	sel, err := b.selectStores(cfg, pool, now)
	if err != nil {
		pool.Close()
		return nil, err
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		pool:       pool,
		jwtManager: jm,
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
		now:        now,
		stores:     sel,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	var deliver func(context.Context, identity.Email, identity.OneTimeCode) error
	if b.emailClient != nil {
		client := b.emailClient
		deliver = func(ctx context.Context, email identity.Email, code identity.OneTimeCode) error {
			return client.SendEmail(ctx, email.String(), twoFactorSubject, twoFactorContent(code.Expose()))
		}
	}

	engine.flows = flows.New(flows.Deps{
		Users:        sel.users,
		Codes:        sel.codes,
		Revoked:      sel.revoked,
		Tokens:       jm,
		HashPassword: pool.Hash,
		VerifyDecoy: func(ctx context.Context, pw string) {
			_, _ = pool.Verify(ctx, pw, decoyHash)
		},
		DeliverCode: deliver,
		Now:         now,
		Hooks: flows.Hooks{
			MetricInc: func(id int) { engine.metricInc(MetricID(id)) },
			Observe:   func(id int, d time.Duration) { engine.metricObserve(MetricID(id), d) },
			EmitAudit: engine.emitAudit,
			Warn:      engine.logger.Printf,
		},
		Metrics: flowMetrics(),
		Events:  flowEvents(),
		Errors:  flowErrors(),
	})

	b.built = true

	return engine, nil
}

func (b *Builder) selectStores(cfg Config, verifier userstore.Verifier, now func() time.Time) (storeSet, error) {
	var sel storeSet
	prefix := cfg.Storage.RedisPrefix
	codeOpts := codestore.Options{TTL: cfg.TwoFactor.CodeTTL, Now: now}
	revokeOpts := tokenstore.Options{RetentionSkew: cfg.Revocation.RetentionSkew, Now: now}

	switch {
	case b.users != nil:
		sel.users, sel.usersBackend = b.users, backendCustom
	case b.redis != nil:
		sel.users, sel.usersBackend = userstore.NewRedisStore(b.redis, prefix+":usr", verifier), backendRedis
	case b.db != nil:
		s, err := userstore.NewGormStore(b.db, verifier)
		if err != nil {
			return storeSet{}, fmt.Errorf("user store: %w", err)
		}
		sel.users, sel.usersBackend = s, backendSQL
	default:
		sel.users, sel.usersBackend = userstore.NewMemoryStore(verifier), backendMemory
	}

	switch {
	case b.codes != nil:
		sel.codes, sel.codesBackend = b.codes, backendCustom
	case b.redis != nil:
		sel.codes, sel.codesBackend = codestore.NewRedisStore(b.redis, prefix+":otc", codeOpts), backendRedis
	case b.db != nil:
		s, err := codestore.NewGormStore(b.db, codeOpts)
		if err != nil {
			return storeSet{}, fmt.Errorf("code store: %w", err)
		}
		sel.codes, sel.codesBackend = s, backendSQL
	default:
		sel.codes, sel.codesBackend = codestore.NewMemoryStore(codeOpts), backendMemory
	}

	switch {
	case b.revoked != nil:
		sel.revoked, sel.revokedBackend = b.revoked, backendCustom
	case b.redis != nil:
		sel.revoked, sel.revokedBackend = tokenstore.NewRedisStore(b.redis, prefix+":rvk", revokeOpts), backendRedis
	case b.db != nil:
		s, err := tokenstore.NewGormStore(b.db, revokeOpts)
		if err != nil {
			return storeSet{}, fmt.Errorf("revoked token store: %w", err)
		}
		sel.revoked, sel.revokedBackend = s, backendSQL
	default:
		sel.revoked, sel.revokedBackend = tokenstore.NewMemoryStore(revokeOpts), backendMemory
	}

	return sel, nil
}

func flowMetrics() flows.Metrics {
	return flows.Metrics{
		SignupSuccess:       int(MetricSignupSuccess),
		SignupDuplicate:     int(MetricSignupDuplicate),
		SignupInvalid:       int(MetricSignupInvalid),
		LoginSuccess:        int(MetricLoginSuccess),
		LoginFailure:        int(MetricLoginFailure),
		TwoFactorRequired:   int(MetricTwoFactorRequired),
		TwoFactorSuccess:    int(MetricTwoFactorSuccess),
		TwoFactorFailure:    int(MetricTwoFactorFailure),
		TwoFactorReplay:     int(MetricTwoFactorReplay),
		TokenIssued:         int(MetricTokenIssued),
		TokenAccepted:       int(MetricTokenAccepted),
		TokenRejected:       int(MetricTokenRejected),
		Logout:              int(MetricLogout),
		BackendFailure:      int(MetricBackendFailure),
		PasswordHashLatency: int(MetricPasswordHashLatency),
		ValidateLatency:     int(MetricValidateLatency),
	}
}

func flowEvents() flows.Events {
	return flows.Events{
		SignupSuccess:     auditEventSignupSuccess,
		SignupFailure:     auditEventSignupFailure,
		SignupDuplicate:   auditEventSignupDuplicate,
		LoginSuccess:      auditEventLoginSuccess,
		LoginFailure:      auditEventLoginFailure,
		TwoFactorRequired: auditEventTwoFactorRequired,
		TwoFactorSuccess:  auditEventTwoFactorSuccess,
		TwoFactorFailure:  auditEventTwoFactorFailure,
		TokenRejected:     auditEventTokenRejected,
		Logout:            auditEventLogout,
	}
}

func flowErrors() flows.Errors {
	return flows.Errors{
		EngineNotReady:       ErrEngineNotReady,
		InvalidInput:         ErrInvalidInput,
		AccountExists:        ErrAccountExists,
		UserNotFound:         ErrUserNotFound,
		IncorrectCredentials: ErrIncorrectCredentials,
		ChallengeNotFound:    ErrChallengeNotFound,
		TokenMalformed:       ErrTokenMalformed,
		TokenExpired:         ErrTokenExpired,
		TokenRevoked:         ErrTokenRevoked,
		Unexpected:           ErrUnexpected,
	}
}
