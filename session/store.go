package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/internal/remote"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when Redis could not serve a call within
// the retry budget.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshTokenMismatch is returned by RotateRefreshToken when the presented
// token is not the one on record for the identity.
var ErrRefreshTokenMismatch = errors.New("refresh token mismatch")

const (
	refreshPrefix   = "refresh:"
	blacklistPrefix = "blacklist:"
)

const (
	rotateStatusMissing  int64 = 0
	rotateStatusRotated  int64 = 1
	rotateStatusMismatch int64 = 2
)

// The second comparison makes a retried rotation idempotent when the first
// attempt was applied but its reply was lost.
const rotateRefreshScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current == ARGV[2] then
  return 1
end
if current ~= ARGV[1] then
  return 2
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed store for the active refresh token of each identity
// and the blacklist of revoked access tokens.
//
// Every method issues a single round trip bounded by the configured
// [remote.Policy].
type Store struct {
	redis  redis.UniversalClient
	policy remote.Policy
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(client redis.UniversalClient, policy remote.Policy) *Store {
	return &Store{redis: client, policy: policy}
}

func refreshKey(identityID string) string {
	return refreshPrefix + identityID
}

func blacklistKey(token string) string {
	return blacklistPrefix + token
}

// PutRefreshToken stores token as the only live refresh token of identityID,
// replacing any previous one.
func (s *Store) PutRefreshToken(ctx context.Context, identityID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid refresh ttl %v", ttl)
	}
	return s.do(ctx, func(ctx context.Context) error {
		return s.redis.Set(ctx, refreshKey(identityID), token, ttl).Err()
	})
}

// GetRefreshToken returns the refresh token on record for identityID. The
// boolean is false when none is stored or it has expired.
func (s *Store) GetRefreshToken(ctx context.Context, identityID string) (string, bool, error) {
	var token string
	err := s.do(ctx, func(ctx context.Context) error {
		v, err := s.redis.Get(ctx, refreshKey(identityID)).Result()
		if err != nil {
			return err
		}
		token = v
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// DeleteRefreshToken removes the refresh token of identityID. Deleting an
// absent key is not an error.
func (s *Store) DeleteRefreshToken(ctx context.Context, identityID string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.redis.Del(ctx, refreshKey(identityID)).Err()
	})
}

// RotateRefreshToken atomically replaces presented with next when presented
// is still the token on record. It returns [ErrRefreshTokenMismatch] when the
// stored token differs or is absent.
func (s *Store) RotateRefreshToken(ctx context.Context, identityID, presented, next string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid refresh ttl %v", ttl)
	}

	var status int64
	err := s.do(ctx, func(ctx context.Context) error {
		res, err := rotateRefreshLua.Run(
			ctx,
			s.redis,
			[]string{refreshKey(identityID)},
			presented,
			next,
			ttl.Milliseconds(),
		).Int64()
		if err != nil {
			return err
		}
		status = res
		return nil
	})
	if err != nil {
		return err
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusMissing, rotateStatusMismatch:
		return ErrRefreshTokenMismatch
	default:
		return fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, status)
	}
}

// Blacklist revokes token for ttl. A non-positive ttl means the token has
// already expired and nothing is written.
func (s *Store) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.do(ctx, func(ctx context.Context) error {
		return s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err()
	})
}

// IsBlacklisted reports whether token has been revoked.
func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	var n int64
	err := s.do(ctx, func(ctx context.Context) error {
		v, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			return err
		}
		n = v
		return nil
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping measures a round trip to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := s.do(ctx, func(ctx context.Context) error {
		return s.redis.Ping(ctx).Err()
	})
	return time.Since(start), err
}

// do runs op under the store policy. redis.Nil passes through untouched so
// callers can treat it as "not found"; every other failure is reported as
// [ErrRedisUnavailable].
func (s *Store) do(ctx context.Context, op func(ctx context.Context) error) error {
	err := s.policy.Do(ctx, op)
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
}
