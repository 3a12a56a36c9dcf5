package bankauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/bankauth/mfa"
	"go.uber.org/zap"
)

// EnrollMFA generates a TOTP secret for the caller, stores it, records which
// backend holds it and returns the otpauth:// enrollment URI. Enrolling again
// replaces the secret and clears the confirmation flag.
func (e *Engine) EnrollMFA(ctx context.Context, accessToken string) (string, error) {
	auth, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return "", err
	}

	ident, err := e.users.IdentityByID(ctx, auth.IdentityID)
	if err != nil {
		return "", e.classify(err)
	}

	key, err := e.mfa.GenerateKey(ident.Email)
	if err != nil {
		return "", err
	}

	kind, err := e.mfa.Persist(ctx, ident.Email, key.Secret())
	if err != nil {
		err = e.classify(err)
		e.emitAudit(ctx, auditEventMFAEnroll, false, ident.ID, ident.Email, err, nil)
		return "", err
	}
	if kind != e.mfa.Primary() {
		e.metricInc(MetricMFAFallback)
	}

	if err := e.users.SetMFASecretRef(ctx, ident.ID, string(kind)); err != nil {
		return "", fmt.Errorf("record mfa backend: %w", err)
	}

	e.metricInc(MetricMFAEnrolled)
	e.emitAudit(ctx, auditEventMFAEnroll, true, ident.ID, ident.Email, nil, func() map[string]string {
		return map[string]string{"backend": string(kind)}
	})
	e.logger.Info("mfa enrolled",
		zap.String("identity_id", ident.ID),
		zap.String("backend", string(kind)),
	)
	return key.URL(), nil
}

// VerifyMFA checks a TOTP code for email. A wrong or malformed code returns
// false without an error. The first successful verification confirms the
// enrollment.
func (e *Engine) VerifyMFA(ctx context.Context, email, code string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return false, ErrInvalidInput
	}
	if err := e.reserveAttempt(ctx, e.mfaLimiter, email, ErrMFARateLimited, MetricMFARateLimited); err != nil {
		return false, err
	}

	ident, err := e.users.IdentityByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, ErrMFASecretNotFound
	}
	if err != nil {
		return false, e.classify(err)
	}
	if !ident.MFARegistered() {
		return false, ErrMFASecretNotFound
	}

	ok, err := e.mfa.Verify(ctx, email, code, mfa.BackendKind(ident.MFASecretRef))
	if errors.Is(err, mfa.ErrSecretNotFound) {
		return false, ErrMFASecretNotFound
	}
	if err != nil {
		return false, e.classify(err)
	}

	if !ok {
		e.metricInc(MetricMFAVerifyFailure)
		e.emitAudit(ctx, auditEventMFAVerify, false, ident.ID, email, nil, nil)
		return false, nil
	}

	e.resetThrottle(ctx, e.mfaLimiter, email)
	if !ident.MFAConfirmed {
		if err := e.users.ConfirmMFA(ctx, ident.ID); err != nil {
			return false, fmt.Errorf("confirm mfa: %w", err)
		}
	}

	e.metricInc(MetricMFAVerifySuccess)
	e.emitAudit(ctx, auditEventMFAVerify, true, ident.ID, email, nil, nil)
	e.logger.Info("mfa verified", zap.String("identity_id", ident.ID))
	return true, nil
}
