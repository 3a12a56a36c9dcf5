package bankauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/session"
	"go.uber.org/zap"
)

// Login checks the password of email and issues an access/refresh pair. The
// new refresh token replaces any previously stored one for the identity.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	email = normalizeEmail(email)
	if email == "" || plaintext == "" {
		return nil, ErrInvalidInput
	}
	if err := e.reserveAttempt(ctx, e.loginLimiter, email, ErrLoginRateLimited, MetricLoginRateLimited); err != nil {
		return nil, err
	}

	ident, err := e.users.IdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.rejectLogin(ctx, email, ErrUserNotFound)
			return nil, ErrUserNotFound
		}
		return nil, e.classify(err)
	}

	ok, err := e.hasher.Verify(plaintext, ident.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordLength) {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		e.rejectLogin(ctx, email, ErrInvalidPassword)
		return nil, ErrInvalidPassword
	}

	e.upgradePassword(ctx, ident, plaintext)

	result, err := e.issueSession(ctx, ident)
	if err != nil {
		return nil, err
	}
	e.resetThrottle(ctx, e.loginLimiter, email)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, ident.ID, email, nil, nil)
	e.logger.Info("login",
		zap.String("identity_id", ident.ID),
		zap.Bool("mfa_registered", result.MFARegistered),
	)
	return result, nil
}

func (e *Engine) rejectLogin(ctx context.Context, email string, err error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLogin, false, "", email, err, nil)
}

func (e *Engine) issueSession(ctx context.Context, ident Identity) (*LoginResult, error) {
	access, err := e.jwt.IssueAccess(ident.ID, false)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := e.jwt.IssueRefresh(ident.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := e.sessions.PutRefreshToken(ctx, ident.ID, refresh, e.jwt.RefreshTTL()); err != nil {
		return nil, e.classify(err)
	}
	return &LoginResult{
		IdentityID:    ident.ID,
		AccessToken:   access,
		RefreshToken:  refresh,
		MFARegistered: ident.MFARegistered(),
	}, nil
}

// upgradePassword rehashes plaintext when the stored hash uses an outdated
// algorithm or weaker parameters. Failures are logged and never fail Login.
func (e *Engine) upgradePassword(ctx context.Context, ident Identity, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	up, ok := e.hasher.(passwordUpgrader)
	if !ok {
		return
	}
	if needs, err := up.NeedsUpgrade(ident.PasswordHash); err != nil || !needs {
		return
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.Warn("rehash password", zap.String("identity_id", ident.ID), zap.Error(err))
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, ident.ID, hash); err != nil {
		e.logger.Warn("store upgraded password hash", zap.String("identity_id", ident.ID), zap.Error(err))
		return
	}
	e.metricInc(MetricPasswordUpgraded)
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the refresh token is replaced atomically and the presented one
// stops working; otherwise it is returned unchanged.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, e.rejectRefresh(ctx, "", ErrInvalidRefreshToken)
	}

	identityID, err := e.jwt.ValidateRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, e.rejectRefresh(ctx, "", ErrTokenExpired)
		}
		return nil, e.rejectRefresh(ctx, "", ErrInvalidRefreshToken)
	}

	ident, err := e.users.IdentityByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.rejectRefresh(ctx, identityID, ErrInvalidRefreshToken)
		}
		return nil, e.classify(err)
	}

	next := refreshToken
	if e.config.Session.RotateRefreshTokens {
		next, err = e.jwt.IssueRefresh(identityID)
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		err = e.sessions.RotateRefreshToken(ctx, identityID, refreshToken, next, e.jwt.RefreshTTL())
		if errors.Is(err, session.ErrRefreshTokenMismatch) {
			return nil, e.rejectRefresh(ctx, identityID, ErrInvalidRefreshToken)
		}
		if err != nil {
			return nil, e.classify(err)
		}
		e.metricInc(MetricRefreshRotated)
	} else {
		stored, found, err := e.sessions.GetRefreshToken(ctx, identityID)
		if err != nil {
			return nil, e.classify(err)
		}
		if !found || subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
			return nil, e.rejectRefresh(ctx, identityID, ErrInvalidRefreshToken)
		}
	}

	access, err := e.jwt.IssueAccess(identityID, false)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, identityID, "", nil, nil)
	e.logger.Info("refresh", zap.String("identity_id", identityID))
	return &LoginResult{
		IdentityID:    identityID,
		AccessToken:   access,
		RefreshToken:  next,
		MFARegistered: ident.MFARegistered(),
	}, nil
}

func (e *Engine) rejectRefresh(ctx context.Context, identityID string, err error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefresh, false, identityID, "", err, nil)
	return err
}

// Logout deletes the stored refresh token of the token's identity and
// blacklists accessToken for the rest of its lifetime.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if accessToken == "" {
		return ErrTokenMissing
	}

	claims, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		err = tokenError(err)
		e.emitAudit(ctx, auditEventLogout, false, "", "", err, nil)
		return err
	}

	if err := e.sessions.DeleteRefreshToken(ctx, claims.UID); err != nil {
		return e.classify(err)
	}
	if err := e.sessions.Blacklist(ctx, accessToken, e.jwt.RemainingLifetime(accessToken)); err != nil {
		return e.classify(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.UID, "", nil, nil)
	e.logger.Info("logout", zap.String("identity_id", claims.UID))
	return nil
}

// Authenticate validates accessToken and checks the blacklist. It is the
// bearer boundary every protected operation goes through.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observe(MetricAuthenticateLatency, start)

	if accessToken == "" {
		return nil, ErrTokenMissing
	}

	claims, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricAuthenticateRejected)
		return nil, tokenError(err)
	}

	revoked, err := e.sessions.IsBlacklisted(ctx, accessToken)
	if err != nil {
		return nil, e.classify(err)
	}
	if revoked {
		e.metricInc(MetricTokenRevoked)
		return nil, ErrTokenRevoked
	}

	out := &AuthResult{
		IdentityID:  claims.UID,
		MFAVerified: claims.MFAVerified,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
