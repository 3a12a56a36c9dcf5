package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrUnavailable marks a remote dependency that kept failing after the
// retry budget was spent.
var ErrUnavailable = errors.New("transient dependency failure")

const (
	defaultTimeout = 2 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// Policy bounds a single remote round trip: every attempt runs under Timeout
// and a transient failure is retried exactly once after Backoff.
type Policy struct {
	Timeout time.Duration
	Backoff time.Duration
}

// Do runs op under the policy. A transient failure that survives the retry is
// returned wrapped in [ErrUnavailable]; any other error is returned as is.
// Cancellation of ctx by the caller is never retried.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(backoff)), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := op(callCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && IsTransient(err) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// IsTransient reports whether err looks like a network or timeout failure
// that may succeed on a second attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
