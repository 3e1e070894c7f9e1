package authcore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of Config. Durations are Go duration
// strings ("10m", "90s"); unset fields keep their DefaultConfig value.
type fileConfig struct {
	JWT struct {
		TokenTTL       string            `yaml:"token_ttl"`
		SigningMethod  string            `yaml:"signing_method"`
		PrivateKey     string            `yaml:"private_key"`
		PrivateKeyFile string            `yaml:"private_key_file"`
		PublicKey      string            `yaml:"public_key"`
		PublicKeyFile  string            `yaml:"public_key_file"`
		Issuer         string            `yaml:"issuer"`
		Audience       string            `yaml:"audience"`
		Leeway         string            `yaml:"leeway"`
		MaxFutureIAT   string            `yaml:"max_future_iat"`
		KeyID          string            `yaml:"key_id"`
		VerifyKeys     map[string]string `yaml:"verify_keys"`
		VerifyKeyFiles map[string]string `yaml:"verify_key_files"`
	} `yaml:"jwt"`
	Password struct {
		Memory           uint32 `yaml:"memory_kb"`
		Time             uint32 `yaml:"time"`
		Parallelism      uint8  `yaml:"parallelism"`
		SaltLength       uint32 `yaml:"salt_length"`
		KeyLength        uint32 `yaml:"key_length"`
		MaxPasswordBytes int    `yaml:"max_password_bytes"`
		Workers          int    `yaml:"workers"`
	} `yaml:"password"`
	TwoFactor struct {
		CodeTTL string `yaml:"code_ttl"`
	} `yaml:"two_factor"`
	Revocation struct {
		RetentionSkew string `yaml:"retention_skew"`
	} `yaml:"revocation"`
	Storage struct {
		RedisPrefix string `yaml:"redis_prefix"`
		RedisAddr   string `yaml:"redis_addr"`
		DatabaseDSN string `yaml:"database_dsn"`
	} `yaml:"storage"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize int   `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled                 *bool `yaml:"enabled"`
		EnableLatencyHistograms *bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`
	Security struct {
		ProductionMode *bool `yaml:"production_mode"`
		MinHS256KeyLen int   `yaml:"min_hs256_key_len"`
	} `yaml:"security"`
}

// LoadConfigFile reads a YAML configuration file on top of DefaultConfig
// and validates the result.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfigYAML(raw)
}

// ParseConfigYAML is LoadConfigFile without the file read.
func ParseConfigYAML(raw []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := defaultConfig()
	if err := fc.apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	var err error
	set := func(dst *time.Duration, raw, name string) {
		if err != nil || raw == "" {
			return
		}
		d, perr := time.ParseDuration(raw)
		if perr != nil {
			err = fmt.Errorf("config %s: %w", name, perr)
			return
		}
		*dst = d
	}

	set(&cfg.JWT.TokenTTL, fc.JWT.TokenTTL, "jwt.token_ttl")
	set(&cfg.JWT.Leeway, fc.JWT.Leeway, "jwt.leeway")
	set(&cfg.JWT.MaxFutureIAT, fc.JWT.MaxFutureIAT, "jwt.max_future_iat")
	set(&cfg.TwoFactor.CodeTTL, fc.TwoFactor.CodeTTL, "two_factor.code_ttl")
	set(&cfg.Revocation.RetentionSkew, fc.Revocation.RetentionSkew, "revocation.retention_skew")
	if err != nil {
		return err
	}

	if fc.JWT.SigningMethod != "" {
		cfg.JWT.SigningMethod = strings.ToLower(fc.JWT.SigningMethod)
	}
	if cfg.JWT.PrivateKey, err = keyMaterial(fc.JWT.PrivateKey, fc.JWT.PrivateKeyFile, cfg.JWT.PrivateKey); err != nil {
		return fmt.Errorf("config jwt.private_key: %w", err)
	}
	if cfg.JWT.PublicKey, err = keyMaterial(fc.JWT.PublicKey, fc.JWT.PublicKeyFile, cfg.JWT.PublicKey); err != nil {
		return fmt.Errorf("config jwt.public_key: %w", err)
	}
	if fc.JWT.Issuer != "" {
		cfg.JWT.Issuer = fc.JWT.Issuer
	}
	if fc.JWT.Audience != "" {
		cfg.JWT.Audience = fc.JWT.Audience
	}
	if fc.JWT.KeyID != "" {
		cfg.JWT.KeyID = fc.JWT.KeyID
	}
	if len(fc.JWT.VerifyKeys)+len(fc.JWT.VerifyKeyFiles) > 0 {
		cfg.JWT.VerifyKeys = make(map[string][]byte, len(fc.JWT.VerifyKeys)+len(fc.JWT.VerifyKeyFiles))
		for kid, key := range fc.JWT.VerifyKeys {
			cfg.JWT.VerifyKeys[kid] = []byte(key)
		}
		for kid, path := range fc.JWT.VerifyKeyFiles {
			if _, dup := cfg.JWT.VerifyKeys[kid]; dup {
				return fmt.Errorf("config jwt.verify_keys: kid %q set inline and as a file", kid)
			}
			key, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("config jwt.verify_key_files[%q]: %w", kid, err)
			}
			cfg.JWT.VerifyKeys[kid] = key
		}
	}

	if fc.Password.Memory != 0 {
		cfg.Password.Memory = fc.Password.Memory
	}
	if fc.Password.Time != 0 {
		cfg.Password.Time = fc.Password.Time
	}
	if fc.Password.Parallelism != 0 {
		cfg.Password.Parallelism = fc.Password.Parallelism
	}
	if fc.Password.SaltLength != 0 {
		cfg.Password.SaltLength = fc.Password.SaltLength
	}
	if fc.Password.KeyLength != 0 {
		cfg.Password.KeyLength = fc.Password.KeyLength
	}
	if fc.Password.MaxPasswordBytes != 0 {
		cfg.Password.MaxPasswordBytes = fc.Password.MaxPasswordBytes
	}
	if fc.Password.Workers != 0 {
		cfg.Password.Workers = fc.Password.Workers
	}

	if fc.Storage.RedisPrefix != "" {
		cfg.Storage.RedisPrefix = fc.Storage.RedisPrefix
	}
	if fc.Storage.RedisAddr != "" {
		cfg.Storage.RedisAddr = fc.Storage.RedisAddr
	}
	if fc.Storage.DatabaseDSN != "" {
		cfg.Storage.DatabaseDSN = fc.Storage.DatabaseDSN
	}

	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize != 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}
	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}
	if fc.Metrics.EnableLatencyHistograms != nil {
		cfg.Metrics.EnableLatencyHistograms = *fc.Metrics.EnableLatencyHistograms
	}
	if fc.Security.ProductionMode != nil {
		cfg.Security.ProductionMode = *fc.Security.ProductionMode
	}
	if fc.Security.MinHS256KeyLen != 0 {
		cfg.Security.MinHS256KeyLen = fc.Security.MinHS256KeyLen
	}
	return nil
}

func keyMaterial(inline, path string, fallback []byte) ([]byte, error) {
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("set either the key or the key file, not both")
	case inline != "":
		return []byte(inline), nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return fallback, nil
	}
}

// LoadConfigFromEnv builds a Config from AUTHCORE_* environment variables on
// top of DefaultConfig. Files named in envFiles are loaded first with
// godotenv; with no arguments a ".env" in the working directory is loaded
// when present. Variables already set in the process win over file values.
func LoadConfigFromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	cfg := defaultConfig()
	var err error
	dur := func(dst *time.Duration, key string) {
		if err != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = d
		}
	}
	num := func(key string, apply func(int)) {
		if err != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			if n < 0 {
				err = fmt.Errorf("%s: must not be negative", key)
				return
			}
			apply(n)
		}
	}
	unsigned := func(key string, bits int, apply func(uint64)) {
		if err != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			n, perr := strconv.ParseUint(v, 10, bits)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			apply(n)
		}
	}
	flag := func(key string, dst *bool) {
		if err != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = b
		}
	}
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	dur(&cfg.JWT.TokenTTL, "AUTHCORE_TOKEN_TTL")
	dur(&cfg.JWT.Leeway, "AUTHCORE_JWT_LEEWAY")
	dur(&cfg.TwoFactor.CodeTTL, "AUTHCORE_CODE_TTL")
	dur(&cfg.Revocation.RetentionSkew, "AUTHCORE_REVOCATION_SKEW")
	str("AUTHCORE_SIGNING_METHOD", &cfg.JWT.SigningMethod)
	str("AUTHCORE_JWT_ISSUER", &cfg.JWT.Issuer)
	str("AUTHCORE_JWT_AUDIENCE", &cfg.JWT.Audience)
	str("AUTHCORE_JWT_KEY_ID", &cfg.JWT.KeyID)
	if v := os.Getenv("AUTHCORE_JWT_SECRET"); v != "" {
		cfg.JWT.PrivateKey = []byte(v)
	}
	if err == nil {
		cfg.JWT.PrivateKey, err = keyMaterial("", os.Getenv("AUTHCORE_JWT_PRIVATE_KEY_FILE"), cfg.JWT.PrivateKey)
	}
	if err == nil {
		cfg.JWT.PublicKey, err = keyMaterial("", os.Getenv("AUTHCORE_JWT_PUBLIC_KEY_FILE"), cfg.JWT.PublicKey)
	}
	unsigned("AUTHCORE_ARGON2_MEMORY_KB", 32, func(n uint64) { cfg.Password.Memory = uint32(n) })
	unsigned("AUTHCORE_ARGON2_TIME", 32, func(n uint64) { cfg.Password.Time = uint32(n) })
	unsigned("AUTHCORE_ARGON2_PARALLELISM", 8, func(n uint64) { cfg.Password.Parallelism = uint8(n) })
	num("AUTHCORE_HASH_WORKERS", func(n int) { cfg.Password.Workers = n })
	str("AUTHCORE_REDIS_PREFIX", &cfg.Storage.RedisPrefix)
	str("AUTHCORE_REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("AUTHCORE_DATABASE_DSN", &cfg.Storage.DatabaseDSN)
	flag("AUTHCORE_AUDIT_ENABLED", &cfg.Audit.Enabled)
	flag("AUTHCORE_METRICS_ENABLED", &cfg.Metrics.Enabled)
	flag("AUTHCORE_PRODUCTION_MODE", &cfg.Security.ProductionMode)
	if err != nil {
		return Config{}, err
	}

	cfg.JWT.SigningMethod = strings.ToLower(cfg.JWT.SigningMethod)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
