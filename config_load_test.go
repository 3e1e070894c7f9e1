package authcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
jwt:
  token_ttl: 15m
  signing_method: HS256
  private_key: 0123456789abcdef0123456789abcdef
  issuer: accounts
  audience: web
  leeway: 30s
password:
  memory_kb: 16384
  time: 2
  workers: 3
two_factor:
  code_ttl: 5m
storage:
  redis_prefix: auth
audit:
  enabled: true
  drop_if_full: false
metrics:
  latency_histograms: true
`

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.TokenTTL)
	assert.Equal(t, "hs256", cfg.JWT.SigningMethod)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), cfg.JWT.PrivateKey)
	assert.Equal(t, "accounts", cfg.JWT.Issuer)
	assert.Equal(t, "web", cfg.JWT.Audience)
	assert.Equal(t, 30*time.Second, cfg.JWT.Leeway)
	assert.Equal(t, uint32(16384), cfg.Password.Memory)
	assert.Equal(t, uint32(2), cfg.Password.Time)
	assert.Equal(t, uint8(2), cfg.Password.Parallelism, "unset fields keep defaults")
	assert.Equal(t, 3, cfg.Password.Workers)
	assert.Equal(t, 5*time.Minute, cfg.TwoFactor.CodeTTL)
	assert.Equal(t, time.Minute, cfg.Revocation.RetentionSkew)
	assert.Equal(t, "auth", cfg.Storage.RedisPrefix)
	assert.True(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Audit.DropIfFull)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Metrics.EnableLatencyHistograms)
}

func TestParseConfigYAMLErrors(t *testing.T) {
	tests := map[string]string{
		"bad duration":   "jwt:\n  token_ttl: ten minutes\n",
		"invalid yaml":   "jwt: [",
		"no key":         "jwt:\n  signing_method: hs256\n",
		"key twice":      "jwt:\n  signing_method: hs256\n  private_key: 0123456789abcdef0123456789abcdef\n  private_key_file: /tmp/x\n",
		"bad validate":   "jwt:\n  signing_method: hs256\n  private_key: 0123456789abcdef0123456789abcdef\ntwo_factor:\n  code_ttl: 3h\n",
		"missing file":   "jwt:\n  signing_method: hs256\n  private_key_file: /nonexistent/key\n",
		"blank audience": "jwt:\n  signing_method: hs256\n  private_key: 0123456789abcdef0123456789abcdef\n  audience: \"  \"\n",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfigYAML([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFileReadsKeyFiles(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "secret.key")
	require.NoError(t, os.WriteFile(keyPath, []byte("fedcba9876543210fedcba9876543210"), 0o600))

	cfgPath := filepath.Join(dir, "authcore.yaml")
	raw := "jwt:\n  signing_method: hs256\n  private_key_file: " + keyPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(raw), 0o600))

	cfg, err := LoadConfigFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("fedcba9876543210fedcba9876543210"), cfg.JWT.PrivateKey)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHCORE_SIGNING_METHOD", "HS256")
	t.Setenv("AUTHCORE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTHCORE_TOKEN_TTL", "20m")
	t.Setenv("AUTHCORE_CODE_TTL", "3m")
	t.Setenv("AUTHCORE_ARGON2_MEMORY_KB", "32768")
	t.Setenv("AUTHCORE_HASH_WORKERS", "4")
	t.Setenv("AUTHCORE_REDIS_PREFIX", "svc")
	t.Setenv("AUTHCORE_AUDIT_ENABLED", "true")

	cfg, err := LoadConfigFromEnv(filepath.Join(t.TempDir(), "absent.env"))
	if err == nil {
		t.Fatalf("expected an error for a missing env file")
	}

	cfg, err = LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "hs256", cfg.JWT.SigningMethod)
	assert.Equal(t, 20*time.Minute, cfg.JWT.TokenTTL)
	assert.Equal(t, 3*time.Minute, cfg.TwoFactor.CodeTTL)
	assert.Equal(t, uint32(32768), cfg.Password.Memory)
	assert.Equal(t, 4, cfg.Password.Workers)
	assert.Equal(t, "svc", cfg.Storage.RedisPrefix)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	env := "AUTHCORE_SIGNING_METHOD=hs256\nAUTHCORE_JWT_SECRET=0123456789abcdef0123456789abcdef\nAUTHCORE_JWT_ISSUER=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(env), 0o600))
	t.Setenv("AUTHCORE_JWT_ISSUER", "from-process")
	t.Cleanup(func() {
		_ = os.Unsetenv("AUTHCORE_SIGNING_METHOD")
		_ = os.Unsetenv("AUTHCORE_JWT_SECRET")
	})

	cfg, err := LoadConfigFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.JWT.Issuer)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), cfg.JWT.PrivateKey)
}

func TestLoadConfigFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("AUTHCORE_SIGNING_METHOD", "hs256")
	t.Setenv("AUTHCORE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTHCORE_TOKEN_TTL", "soon")

	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}

func TestLoadConfigFromEnvRejectsOutOfRangeIntegers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative memory", "AUTHCORE_ARGON2_MEMORY_KB", "-1"},
		{"memory above cap", "AUTHCORE_ARGON2_MEMORY_KB", "4294967295"},
		{"memory overflows uint32", "AUTHCORE_ARGON2_MEMORY_KB", "4294967296"},
		{"negative time", "AUTHCORE_ARGON2_TIME", "-1"},
		{"negative parallelism", "AUTHCORE_ARGON2_PARALLELISM", "-1"},
		{"parallelism 256", "AUTHCORE_ARGON2_PARALLELISM", "256"},
		{"parallelism 257", "AUTHCORE_ARGON2_PARALLELISM", "257"},
		{"negative workers", "AUTHCORE_HASH_WORKERS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTHCORE_SIGNING_METHOD", "hs256")
			t.Setenv("AUTHCORE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfigFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromEnvAcceptsMaxParallelism(t *testing.T) {
	t.Setenv("AUTHCORE_SIGNING_METHOD", "hs256")
	t.Setenv("AUTHCORE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTHCORE_ARGON2_PARALLELISM", "255")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, uint8(255), cfg.Password.Parallelism)
}

func TestParseConfigYAMLVerifyKeys(t *testing.T) {
	dir := t.TempDir()
	oldKey := filepath.Join(dir, "old.key")
	require.NoError(t, os.WriteFile(oldKey, []byte("fedcba9876543210fedcba9876543210"), 0o600))

	raw := "jwt:\n  signing_method: hs256\n  private_key: 0123456789abcdef0123456789abcdef\n  key_id: k2\n" +
		"  verify_keys:\n    k2: 0123456789abcdef0123456789abcdef\n" +
		"  verify_key_files:\n    k1: " + oldKey + "\n"
	cfg, err := ParseConfigYAML([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"k1": []byte("fedcba9876543210fedcba9876543210"),
		"k2": []byte("0123456789abcdef0123456789abcdef"),
	}, cfg.JWT.VerifyKeys)

	_, err = ParseConfigYAML([]byte("jwt:\n  signing_method: hs256\n  private_key: 0123456789abcdef0123456789abcdef\n  key_id: k2\n  verify_keys:\n    k1: fedcba9876543210fedcba9876543210\n"))
	assert.Error(t, err, "the signing kid must be among the verify keys")
}
