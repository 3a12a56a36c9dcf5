package mfa

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/bankauth/internal/remote"
	"github.com/redis/go-redis/v9"
)

// SecretsHashKey is the Redis hash holding one field per enrolled email.
const SecretsHashKey = "MFA:SECRETS"

// CacheBackend keeps secrets in the Redis hash [SecretsHashKey].
type CacheBackend struct {
	redis  redis.UniversalClient
	policy remote.Policy
}

// NewCacheBackend returns a CacheBackend over client.
func NewCacheBackend(client redis.UniversalClient, policy remote.Policy) *CacheBackend {
	return &CacheBackend{redis: client, policy: policy}
}

// Kind returns [BackendCache].
func (b *CacheBackend) Kind() BackendKind { return BackendCache }

// Save writes secret under email, replacing any earlier value.
func (b *CacheBackend) Save(ctx context.Context, email, secret string) error {
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		return b.redis.HSet(ctx, SecretsHashKey, email, secret).Err()
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Load returns the secret stored under email.
func (b *CacheBackend) Load(ctx context.Context, email string) (string, error) {
	var secret string
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		v, err := b.redis.HGet(ctx, SecretsHashKey, email).Result()
		if err != nil {
			return err
		}
		secret = v
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", unavailable(err)
	}
	return secret, nil
}

// Delete removes the secret of email.
func (b *CacheBackend) Delete(ctx context.Context, email string) error {
	err := b.policy.Do(ctx, func(ctx context.Context) error {
		return b.redis.HDel(ctx, SecretsHashKey, email).Err()
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// unavailable marks every Redis failure except caller cancellation, server
// replies such as LOADING included.
func unavailable(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
