package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one counter for every exporter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for every exporter.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exporters publish for Engine.AuditDropped.
const AuditDroppedName = "authcore_audit_dropped_total"

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricSignupSuccess, Name: "authcore_signup_success_total", Help: "Accounts created."},
	{ID: authcore.MetricSignupDuplicate, Name: "authcore_signup_duplicate_total", Help: "Signups rejected because the email is registered."},
	{ID: authcore.MetricSignupInvalid, Name: "authcore_signup_invalid_total", Help: "Signups rejected at input validation."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Logins that issued a session token directly."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Rejected login attempts."},
	{ID: authcore.MetricTwoFactorRequired, Name: "authcore_two_factor_required_total", Help: "Logins that issued a 2FA challenge."},
	{ID: authcore.MetricTwoFactorSuccess, Name: "authcore_two_factor_success_total", Help: "Verified 2FA challenges."},
	{ID: authcore.MetricTwoFactorFailure, Name: "authcore_two_factor_failure_total", Help: "Rejected 2FA verifications."},
	{ID: authcore.MetricTwoFactorReplay, Name: "authcore_two_factor_replay_total", Help: "2FA verifications of an already consumed challenge."},
	{ID: authcore.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Session tokens issued."},
	{ID: authcore.MetricTokenAccepted, Name: "authcore_token_accepted_total", Help: "Session tokens that passed validation."},
	{ID: authcore.MetricTokenRejected, Name: "authcore_token_rejected_total", Help: "Session tokens that failed validation."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Session tokens revoked by logout."},
	{ID: authcore.MetricBackendFailure, Name: "authcore_backend_failure_total", Help: "Store or hashing failures reported as unexpected errors."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricPasswordHashLatency, Name: "authcore_password_hash_latency_seconds", Help: "Argon2 hash and verify latency."},
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Session token validation latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into "less or equal" counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
