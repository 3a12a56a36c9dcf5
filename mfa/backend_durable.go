package mfa

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/bankauth/internal/remote"
)

// SecretStore is the persistence capability a DurableBackend writes through.
// MFASecret must return [ErrSecretNotFound] when the email has no secret.
type SecretStore interface {
	SaveMFASecret(ctx context.Context, email, secret string) error
	MFASecret(ctx context.Context, email string) (string, error)
	DeleteMFASecret(ctx context.Context, email string) error
}

// DurableBackend keeps secrets in the SQL database. Every call runs under the
// remote policy; only connection-level failures count as unavailability.
type DurableBackend struct {
	store  SecretStore
	policy remote.Policy
}

// NewDurableBackend returns a DurableBackend over store.
func NewDurableBackend(store SecretStore, policy remote.Policy) *DurableBackend {
	return &DurableBackend{store: store, policy: policy}
}

// Kind returns [BackendDurable].
func (b *DurableBackend) Kind() BackendKind { return BackendDurable }

// Save upserts secret under email.
func (b *DurableBackend) Save(ctx context.Context, email, secret string) error {
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		return b.store.SaveMFASecret(ctx, email, secret)
	})
	return durableError(err)
}

// Load returns the secret stored under email.
func (b *DurableBackend) Load(ctx context.Context, email string) (string, error) {
	var secret string
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		v, err := b.store.MFASecret(ctx, email)
		if err != nil {
			return err
		}
		secret = v
		return nil
	})
	if errors.Is(err, ErrSecretNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", durableError(err)
	}
	return secret, nil
}

// Delete removes the secret of email.
func (b *DurableBackend) Delete(ctx context.Context, email string) error {
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		return b.store.DeleteMFASecret(ctx, email)
	})
	return durableError(err)
}

func durableError(err error) error {
	if err == nil {
		return nil
	}
	if remote.IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return fmt.Errorf("mfa: durable secret store: %w", err)
}
