package remote

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

var errDomain = errors.New("domain failure")

func testPolicy() Policy {
	return Policy{Timeout: 50 * time.Millisecond, Backoff: time.Millisecond}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestDoRetriesTransientOnce(t *testing.T) {
	var calls atomic.Int32
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		if calls.Add(1) == 1 {
			return io.EOF
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery on retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestDoSurfacesUnavailableAfterSecondFailure(t *testing.T) {
	var calls atomic.Int32
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return io.ErrUnexpectedEOF
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls.Load())
	}
}

func TestDoBoundsSlowCalls(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()
	err := testPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for timed out call, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected timeout to be retried once, got %d attempts", calls.Load())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("call not bounded: %v", elapsed)
	}
}

func TestDoDoesNotRetryDomainErrors(t *testing.T) {
	var calls atomic.Int32
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return errDomain
	})
	if !errors.Is(err, errDomain) {
		t.Fatalf("expected domain error unchanged, got %v", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatal("domain error must not be reported as unavailable")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestDoStopsOnCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	err := testPolicy().Do(ctx, func(context.Context) error {
		calls.Add(1)
		cancel()
		return io.EOF
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", calls.Load())
	}
}
