package bankauth

import (
	"context"
	"errors"
	"strconv"
	"time"
)

const (
	auditEventJoin          = "join"
	auditEventLogin         = "login"
	auditEventRefresh       = "refresh"
	auditEventLogout        = "logout"
	auditEventMFAEnroll     = "mfa_enroll"
	auditEventMFAVerify     = "mfa_verify"
	auditEventAccountCreate = "account_create"
	auditEventRateLimited   = "rate_limited"
)

// AuditErrorCode is the coarse failure class recorded on audit events.
type AuditErrorCode string

const (
	auditErrDuplicate       AuditErrorCode = "duplicate"
	auditErrUserNotFound    AuditErrorCode = "user_not_found"
	auditErrInvalidPassword AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrTokenRevoked    AuditErrorCode = "token_revoked"
	auditErrInvalidInput    AuditErrorCode = "invalid_input"
	auditErrMFANotFound     AuditErrorCode = "mfa_not_enrolled"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrLedger          AuditErrorCode = "ledger_exhausted"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
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
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		Email:      email,
		IP:         ClientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, email string, attempts int, err error) {
	e.emitAudit(ctx, auditEventRateLimited, false, "", email, err, func() map[string]string {
		return map[string]string{"scope": scope, "attempts": strconv.Itoa(attempts)}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidPassword):
		return auditErrInvalidPassword
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMissing):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrMFASecretNotFound):
		return auditErrMFANotFound
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrMFARateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrLedgerExhausted):
		return auditErrLedger
	case errors.Is(err, ErrTransientDependency):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
