package bankauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/internal/rate"
	"github.com/MrEthical07/bankauth/internal/remote"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/mfa"
	"github.com/MrEthical07/bankauth/password"
	"github.com/MrEthical07/bankauth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	loginLimiterPrefix = "rl:login:"
	mfaLimiterPrefix   = "rl:mfa:"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  Store
	hasher PasswordHasher
	logger *zap.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for sessions, the cache secret backend and
// the attempt throttles. Build the client with MaxRetries: -1; the engine
// retries a failed round trip once on its own.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the SQL-backed store for identities, accounts and durable
// MFA secrets.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithPasswordHasher replaces the default Argon2id/bcrypt matcher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens, err := jwt.NewManager(cfg.JWT.managerConfig())
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	policy := remote.Policy{
		Timeout: cfg.Remote.Timeout,
		Backoff: cfg.Remote.RetryBackoff,
	}

	secrets, err := mfa.NewService(
		cfg.MFA.serviceConfig(),
		mfa.NewDurableBackend(b.store, policy),
		mfa.NewCacheBackend(b.redis, policy),
		logger.Named("mfa"),
	)
	if err != nil {
		return nil, fmt.Errorf("mfa: %w", err)
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = defaultHasher(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("password: %w", err)
		}
	}

	e := &Engine{
		config:   cfg,
		logger:   logger,
		jwt:      tokens,
		sessions: session.NewStore(b.redis, policy),
		mfa:      secrets,
		ledger:   ledger.New(b.store, ledger.Config{MaxAttempts: cfg.Ledger.MaxAccountNumberAttempts}),
		users:    b.store,
		hasher:   hasher,
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		metrics:  NewMetrics(cfg.Metrics),
		now:      time.Now,
	}
	if cfg.Security.EnableLoginThrottle {
		e.loginLimiter = rate.New(b.redis, policy, loginLimiterPrefix, rate.Config{
			MaxAttempts: cfg.Security.MaxLoginAttempts,
			Window:      cfg.Security.LoginWindow,
		})
	}
	if cfg.Security.EnableMFAThrottle {
		e.mfaLimiter = rate.New(b.redis, policy, mfaLimiterPrefix, rate.Config{
			MaxAttempts: cfg.Security.MaxMFAAttempts,
			Window:      cfg.Security.MFAWindow,
		})
	}

	b.built = true

	logger.Info("engine ready",
		zap.String("mfa_primary", string(secrets.Primary())),
		zap.Bool("refresh_rotation", cfg.Session.RotateRefreshTokens),
		zap.String("signing_method", string(cfg.JWT.SigningMethod)),
	)
	return e, nil
}

func defaultHasher(cfg PasswordConfig) (PasswordHasher, error) {
	argon, err := password.NewArgon2(cfg.argon2Config())
	if err != nil {
		return nil, err
	}
	var legacy *password.Bcrypt
	if cfg.AcceptBcrypt {
		legacy, err = password.NewBcrypt(0)
		if err != nil {
			return nil, err
		}
	}
	return password.NewMatcher(argon, legacy), nil
}
