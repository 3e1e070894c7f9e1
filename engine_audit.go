package authcore

import (
	"context"
	"errors"
)

const (
	auditEventSignupSuccess     = "signup_success"
	auditEventSignupFailure     = "signup_failure"
	auditEventSignupDuplicate   = "signup_duplicate"
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventTwoFactorRequired = "two_factor_required"
	auditEventTwoFactorSuccess  = "two_factor_success"
	auditEventTwoFactorFailure  = "two_factor_failure"
	auditEventTokenRejected     = "token_rejected"
	auditEventLogout            = "logout"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput         AuditErrorCode = "invalid_input"
	auditErrDuplicate            AuditErrorCode = "duplicate"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrIncorrectCredentials AuditErrorCode = "incorrect_credentials"
	auditErrChallengeNotFound    AuditErrorCode = "challenge_not_found"
	auditErrTokenMalformed       AuditErrorCode = "token_malformed"
	auditErrTokenExpired         AuditErrorCode = "token_expired"
	auditErrTokenRevoked         AuditErrorCode = "token_revoked"
	auditErrNotReady             AuditErrorCode = "engine_not_ready"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	// specific token causes before their shared parent
	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrIncorrectCredentials):
		return auditErrIncorrectCredentials
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenInvalid):
		return auditErrTokenMalformed
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	default:
		return auditErrInternal
	}
}
