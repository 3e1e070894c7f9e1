package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT        JWTConfig
	Password   PasswordConfig
	TwoFactor  TwoFactorConfig
	Revocation RevocationConfig
	Storage    StorageConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls session token signing and verification.
type JWTConfig struct {
	TokenTTL      time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	// VerifyKeys maps a kid to an extra verification key, so tokens signed
	// before a key rotation stay valid. Ed25519 entries are public keys.
	VerifyKeys map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig fixes the Argon2id cost and the size of the hashing pool.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	Workers          int // 0 means runtime.NumCPU()
}

/*
====================================
TWO FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls one-time-code challenges.
type TwoFactorConfig struct {
	CodeTTL time.Duration
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls how long revoked tokens are remembered past
// their own expiry.
type RevocationConfig struct {
	RetentionSkew time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the backends LoadConfigFile and LoadConfigFromEnv can
// describe. Builder.WithRedis and Builder.WithDB take precedence over the
// addresses here; the addresses are only read by callers that dial for
// themselves (see OpenRedis and OpenMySQL).
type StorageConfig struct {
	RedisPrefix string
	RedisAddr   string
	DatabaseDSN string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig tightens validation for production deployments.
type SecurityConfig struct {
	ProductionMode bool
	MinHS256KeyLen int
}

// DefaultConfig returns the baseline configuration. Signing keys are not
// set, so the result does not pass Validate until JWT keys are supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TokenTTL:      10 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "authcore",
			MaxFutureIAT:  10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
		},
		TwoFactor: TwoFactorConfig{
			CodeTTL: 10 * time.Minute,
		},
		Revocation: RevocationConfig{
			RetentionSkew: time.Minute,
		},
		Storage: StorageConfig{
			RedisPrefix: "ac",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
			MinHS256KeyLen: 64,
		},
	}
}

// HighSecurityConfig returns DefaultConfig with production checks enabled,
// a shorter session and a shorter 2FA window.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.TokenTTL = 5 * time.Minute
	cfg.JWT.Leeway = 10 * time.Second
	cfg.TwoFactor.CodeTTL = 5 * time.Minute
	cfg.Password.Memory = 128 * 1024
	cfg.Security.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.JWT.VerifyKeys = cloneKeyMap(cfg.JWT.VerifyKeys)
	return out
}

func cloneKeyMap(m map[string][]byte) map[string][]byte {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(m))
	for kid, key := range m {
		out[kid] = cloneBytes(key)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// maxArgon2MemoryKB caps Password.Memory at 4 GiB.
const maxArgon2MemoryKB = 4 * 1024 * 1024

// Validate reports the first configuration error found, or nil.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TokenTTL <= 0 {
		return errors.New("JWT TokenTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if len(c.JWT.VerifyKeys) > 0 {
		if _, ok := c.JWT.VerifyKeys[c.JWT.KeyID]; c.JWT.KeyID == "" || !ok {
			return errors.New("JWT VerifyKeys must contain the signing KeyID")
		}
	}
	for kid, key := range c.JWT.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("JWT VerifyKeys must not contain a blank kid")
		}
		if c.JWT.SigningMethod == "hs256" && len(key) < 32 {
			return fmt.Errorf("JWT VerifyKeys[%q] must be at least 32 bytes", kid)
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Memory > maxArgon2MemoryKB {
		return fmt.Errorf("Password Memory must be <= %d KB", maxArgon2MemoryKB)
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MaxPasswordBytes < 8 {
		return errors.New("Password MaxPasswordBytes must allow the 8 byte minimum")
	}
	if c.Password.Workers < 0 {
		return errors.New("Password Workers must be >= 0")
	}

	// Two factor
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("TwoFactor CodeTTL must be > 0")
	}
	if c.TwoFactor.CodeTTL > time.Hour {
		return errors.New("TwoFactor CodeTTL must be <= 1h")
	}

	// Revocation
	if c.Revocation.RetentionSkew < 0 {
		return errors.New("Revocation RetentionSkew must be >= 0")
	}
	if c.Revocation.RetentionSkew < c.JWT.Leeway {
		return errors.New("Revocation RetentionSkew must cover JWT Leeway")
	}

	// Storage
	if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
		return errors.New("Storage RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Storage.RedisPrefix, " \t\r\n") {
		return errors.New("Storage RedisPrefix must not contain whitespace")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Production
	if c.Security.ProductionMode {
		if c.Security.MinHS256KeyLen < 32 {
			return errors.New("Security MinHS256KeyLen must be >= 32")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < c.Security.MinHS256KeyLen {
			return fmt.Errorf("ProductionMode requires an hs256 key of at least %d bytes", c.Security.MinHS256KeyLen)
		}
		if c.Password.Memory < 64*1024 || c.Password.Time < 2 {
			return errors.New("ProductionMode requires Argon2 Memory >= 64MB and Time >= 2")
		}
		if c.JWT.TokenTTL > 24*time.Hour {
			return errors.New("ProductionMode caps JWT TokenTTL at 24h")
		}
	}

	return nil
}
