package authcore

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	// LintInfo marks a deliberate but notable choice.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that weakens a guarantee.
	LintWarn
	// LintHigh marks a setting that can silently break a guarantee.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding of Config.Lint.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds every warning at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	selected := r.BySeverity(min)
	if len(selected) == 0 {
		return nil
	}
	parts := make([]string, 0, len(selected))
	for _, w := range selected {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but are worth a second look.
// It never mutates c.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT Leeway above 1m keeps expired tokens usable")
	}
	if c.JWT.TokenTTL > time.Hour {
		add("token_ttl_long", LintWarn, "session tokens live longer than 1h; logout is the only way to end them early")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "hs256 shares the signing secret with every verifier")
	}
	if c.JWT.Audience == "" {
		add("audience_unset", LintInfo, "tokens are not bound to an audience")
	}
	if c.TwoFactor.CodeTTL > 15*time.Minute {
		add("code_ttl_long", LintWarn, "one-time codes stay valid longer than 15m")
	}
	if c.Revocation.RetentionSkew == 0 {
		add("retention_skew_zero", LintHigh, "revoked tokens are forgotten exactly at expiry; skewed verifiers may accept them again")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "Argon2 Memory below 64MB")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication outcomes are not audited")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink blocks authentication calls")
	}
	if !c.Metrics.Enabled {
		add("metrics_disabled", LintInfo, "metrics counters are disabled")
	}
	if !c.Security.ProductionMode {
		add("production_mode_off", LintInfo, "production checks are not enforced")
	}

	return ws
}
