package authcore

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidateProductionRejectsWeakHS256Key(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Memory = 64 * 1024
	cfg.Password.Time = 2
	cfg.Security.ProductionMode = true

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least 64 bytes") {
		t.Fatalf("expected weak hs256 key rejection, got %v", err)
	}
}

func TestConfigValidateProductionReportsConfiguredKeyLength(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Memory = 64 * 1024
	cfg.Password.Time = 2
	cfg.Security.ProductionMode = true
	cfg.Security.MinHS256KeyLen = 48

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least 48 bytes") {
		t.Fatalf("expected the configured minimum in the error, got %v", err)
	}
}

func TestConfigValidateProductionRejectsLowKeyFloor(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte(strings.Repeat("0123456789abcdef", 4))
	cfg.Security.MinHS256KeyLen = 16

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a 16 byte production key floor to fail validation")
	}
}

func TestDefaultConfigProductionKeyFloor(t *testing.T) {
	if got := DefaultConfig().Security.MinHS256KeyLen; got != 64 {
		t.Fatalf("expected a 64 byte production hs256 floor, got %d", got)
	}
}

func TestHighSecurityConfigRejects32ByteHS256Key(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a 32 byte hs256 key to fail in production mode")
	}
}

func TestConfigValidateCapsArgon2Memory(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Memory = maxArgon2MemoryKB + 1

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Argon2 memory above the cap to fail validation")
	}

	cfg.Password.Memory = maxArgon2MemoryKB
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Argon2 memory at the cap to validate, got %v", err)
	}
}

func TestConfigValidateProductionRejectsWeakArgon2(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected weak argon2 parameters to fail in production mode")
	}
}

func TestConfigValidateProductionCapsTokenTTL(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Memory = 64 * 1024
	cfg.Password.Time = 2
	cfg.Security.ProductionMode = true
	cfg.JWT.TokenTTL = 48 * time.Hour

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a 48h token ttl to fail in production mode")
	}
}

func TestConfigValidateRejectsShortHS256KeyOutsideProduction(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("short-key")

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a 9 byte hs256 key to fail validation")
	}
}

func TestConfigValidateDevModeAllowsRelaxedCrypto(t *testing.T) {
	cfg := testConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected relaxed settings to pass outside production mode, got %v", err)
	}
}

func TestHighSecurityConfigValidatesWithKey(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte(strings.Repeat("0123456789abcdef", 4))

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected HighSecurityConfig to validate, got %v", err)
	}
	if !cfg.Security.ProductionMode || !cfg.Audit.Enabled {
		t.Fatalf("expected production mode and audit on")
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'

	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatalf("builder config shares key bytes with the caller")
	}
}
