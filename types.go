package authcore

import (
	"io"
	"log"
	"time"

	"github.com/MrEthical07/authcore/identity"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
)

// LoginResult is returned by Login and Verify2FA.
//
// When TwoFactorRequired is true only ChallengeID is set and the caller must
// finish with Verify2FA. Otherwise Token and ExpiresAt describe the issued
// session.
type LoginResult struct {
	Token             string
	ExpiresAt         time.Time
	TwoFactorRequired bool
	ChallengeID       string
}

// Account is the public view of a registered user. The password hash never
// leaves the engine.
type Account struct {
	Email       identity.Email
	Requires2FA bool
}

// PendingChallenge describes the live 2FA challenge for an email. Code
// formats as [REDACTED]; Code.Expose returns the digits.
type PendingChallenge struct {
	Email       identity.Email
	ChallengeID identity.ChallengeID
	Code        identity.OneTimeCode
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// SecurityReport summarizes the active security posture of an engine.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	KeyID            string
	TokenTTL         time.Duration
	Leeway           time.Duration
	CodeTTL          time.Duration
	RetentionSkew    time.Duration
	Argon2           PasswordConfigReport
	HashWorkers      int
	UserBackend      string
	CodeBackend      string
	RevokedBackend   string
	AuditEnabled     bool
	MetricsEnabled   bool
	LintHighFindings int
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink is an [AuditSink] that prints one line per event.
type LoggerSink = internalaudit.LoggerSink

// MultiSink fans every event out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink creates a [LoggerSink]. A nil logger uses log.Default().
func NewLoggerSink(logger *log.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}
