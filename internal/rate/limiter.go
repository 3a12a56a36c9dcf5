package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/internal/remote"
	"github.com/redis/go-redis/v9"
)

// Config holds the budget of one limiter scope.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Fixed-window semantics: the TTL is set only on the first hit in a window.
const consumeScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var consumeLua = redis.NewScript(consumeScript)

// Limiter reserves attempts per subject in Redis and rejects a subject once
// its budget for the current window is spent.
type Limiter struct {
	redis  redis.UniversalClient
	policy remote.Policy
	prefix string
	config Config
}

// New creates a Limiter whose keys live under prefix.
func New(client redis.UniversalClient, policy remote.Policy, prefix string, cfg Config) *Limiter {
	return &Limiter{redis: client, policy: policy, prefix: prefix, config: cfg}
}

func (l *Limiter) key(subject string) string {
	return l.prefix + subject
}

// Consume reserves one attempt for subject before the caller does any work
// and returns the number of attempts made in the current window. The
// increment and the budget check are a single round trip, so concurrent
// callers can never exceed the budget. It returns [ErrRateLimited] once the
// reservation goes past MaxAttempts.
func (l *Limiter) Consume(ctx context.Context, subject string) (int, error) {
	var count int64
	err := l.policy.Do(ctx, func(ctx context.Context) error {
		v, err := consumeLua.Run(ctx, l.redis, []string{l.key(subject)}, l.config.Window.Milliseconds()).Int64()
		if err != nil {
			return err
		}
		count = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	if count > int64(l.config.MaxAttempts) {
		return int(count), ErrRateLimited
	}
	return int(count), nil
}

// Reset clears the counter of subject, typically after a success.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	err := l.policy.Do(ctx, func(ctx context.Context) error {
		return l.redis.Del(ctx, l.key(subject)).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}
