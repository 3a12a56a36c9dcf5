package bankauth

import "errors"

var (
	// ErrDuplicateEmail is returned by Join when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound is returned when no identity matches the given email or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned by Login when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidInput is returned for empty or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidRefreshToken is returned when a refresh token is malformed or
	// no longer the one on record.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrTokenMissing is returned when no bearer token was supplied.
	ErrTokenMissing = errors.New("token missing")
	// ErrInvalidToken is returned for access tokens with a bad signature or shape.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for access tokens on the blacklist.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrMFASecretNotFound is returned when verifying a code for an email
	// without an enrolled secret.
	ErrMFASecretNotFound = errors.New("mfa secret not found")
	// ErrLoginRateLimited is returned once an email has spent its login attempts.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMFARateLimited is returned once an email has spent its code attempts.
	ErrMFARateLimited = errors.New("mfa verification rate limited")
	// ErrLedgerExhausted is returned when the ledger gave up finding a free
	// account number or a conflict-free balance update.
	ErrLedgerExhausted = errors.New("ledger exhausted")
	// ErrTransientDependency is returned when a remote dependency kept
	// failing after its single retry.
	ErrTransientDependency = errors.New("transient dependency failure")
	// ErrEngineNotReady is returned by methods called on a nil or partially
	// built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
