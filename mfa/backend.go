package mfa

import (
	"context"
	"errors"
)

// BackendKind names a SecretBackend. The value is persisted on the identity
// record so a secret is always read back from the backend that holds it.
type BackendKind string

const (
	// BackendDurable stores secrets in the SQL database.
	BackendDurable BackendKind = "durable"
	// BackendCache stores secrets in a Redis hash.
	BackendCache BackendKind = "cache"
)

var (
	// ErrSecretNotFound is returned when no secret is stored for an email.
	ErrSecretNotFound = errors.New("mfa secret not found")
	// ErrBackendUnavailable marks a backend failure that may justify a
	// fallback to the alternate backend.
	ErrBackendUnavailable = errors.New("mfa secret backend unavailable")
)

// SecretBackend is a storage strategy for TOTP secrets keyed by email.
// Delete of an absent secret is not an error.
type SecretBackend interface {
	Kind() BackendKind
	Save(ctx context.Context, email, secret string) error
	Load(ctx context.Context, email string) (string, error)
	Delete(ctx context.Context, email string) error
}
