package bankauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/bankauth/internal/rate"
	"github.com/MrEthical07/bankauth/internal/remote"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/mfa"
	"github.com/MrEthical07/bankauth/session"
	"go.uber.org/zap"
)

// Engine orchestrates the identity, session, MFA and account flows. It is
// safe for concurrent use once built.
type Engine struct {
	config   Config
	logger   *zap.Logger
	jwt      *jwt.Manager
	sessions *session.Store
	mfa      *mfa.Service
	ledger   *ledger.Ledger
	users    UserStore
	hasher   PasswordHasher

	loginLimiter *rate.Limiter
	mfaLimiter   *rate.Limiter

	audit   *auditDispatcher
	metrics *Metrics
	now     func() time.Time
}

// Close flushes pending audit events. The Redis client and store are owned
// by the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ledger exposes the balance primitives for money-movement code built on top
// of the Engine.
func (e *Engine) Ledger() *ledger.Ledger {
	if e == nil {
		return nil
	}
	return e.ledger
}

// Ping checks that the session store is reachable and returns its round
// trip time.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	rtt, err := e.sessions.Ping(ctx)
	return rtt, e.classify(err)
}

func (e *Engine) ready() error {
	if e == nil || e.jwt == nil || e.sessions == nil || e.users == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isDependencyFailure(err error) bool {
	return errors.Is(err, remote.ErrUnavailable) ||
		errors.Is(err, session.ErrRedisUnavailable) ||
		errors.Is(err, mfa.ErrBackendUnavailable) ||
		errors.Is(err, rate.ErrRedisUnavailable)
}

// classify maps remote-store failures to ErrTransientDependency and leaves
// every other error untouched.
func (e *Engine) classify(err error) error {
	if err == nil || errors.Is(err, ErrTransientDependency) {
		return err
	}
	if isDependencyFailure(err) {
		e.metricInc(MetricDependencyFailure)
		e.logger.Warn("dependency failure", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrTransientDependency, err)
	}
	return err
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}

/*
====================================
ATTEMPT THROTTLES
====================================
*/

// reserveAttempt spends one attempt of email's budget before any password or
// code work runs.
func (e *Engine) reserveAttempt(ctx context.Context, l *rate.Limiter, email string, limited error, metric MetricID) error {
	if l == nil {
		return nil
	}
	attempts, err := l.Consume(ctx, email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(metric)
		e.emitRateLimit(ctx, limitScope(limited), email, attempts, limited)
		return limited
	default:
		return e.classify(err)
	}
}

func (e *Engine) resetThrottle(ctx context.Context, l *rate.Limiter, email string) {
	if l == nil {
		return
	}
	if err := l.Reset(ctx, email); err != nil {
		e.logger.Warn("reset attempt counter", zap.String("email", email), zap.Error(err))
	}
}

func limitScope(limited error) string {
	if errors.Is(limited, ErrMFARateLimited) {
		return "mfa"
	}
	return "login"
}
