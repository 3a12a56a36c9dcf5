package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/jwt"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

type serverConfig struct {
	Addr            string        `env:"BANK_HTTP_ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"BANK_SHUTDOWN_TIMEOUT"      envDefault:"15s"`
	TrustProxy      bool          `env:"BANK_TRUST_PROXY"`
	LogLevel        string        `env:"BANK_LOG_LEVEL"             envDefault:"info"`

	// Profile "local" stores identities in SQLite; anything else uses Postgres.
	Profile      string `env:"BANK_PROFILE"        envDefault:"prod"`
	SQLitePath   string `env:"BANK_SQLITE_PATH"    envDefault:"bank.db"`
	DatabaseURL  string `env:"BANK_DATABASE_URL"`
	DatabaseConn int32  `env:"BANK_DATABASE_MAX_CONNS" envDefault:"10"`
	RedisURL     string `env:"BANK_REDIS_URL"      envDefault:"redis://localhost:6379/0"`

	JWTSecret     string        `env:"BANK_JWT_SECRET"`
	JWTPrivateKey string        `env:"BANK_JWT_PRIVATE_KEY_FILE,file"`
	JWTPublicKey  string        `env:"BANK_JWT_PUBLIC_KEY_FILE,file"`
	JWTIssuer     string        `env:"BANK_JWT_ISSUER"      envDefault:"bankauth"`
	JWTKeyID      string        `env:"BANK_JWT_KEY_ID"`
	AccessTTL     time.Duration `env:"BANK_ACCESS_TTL"      envDefault:"15m"`
	RefreshTTL    time.Duration `env:"BANK_REFRESH_TTL"     envDefault:"168h"`
	RotateRefresh bool          `env:"BANK_ROTATE_REFRESH"  envDefault:"true"`

	MFAIssuer   string `env:"BANK_MFA_ISSUER"   envDefault:"bankauth"`
	MFAFallback bool   `env:"BANK_MFA_FALLBACK" envDefault:"true"`

	RemoteTimeout time.Duration `env:"BANK_REMOTE_TIMEOUT"       envDefault:"2s"`
	RetryBackoff  time.Duration `env:"BANK_REMOTE_RETRY_BACKOFF" envDefault:"50ms"`

	LoginThrottle    bool `env:"BANK_LOGIN_THROTTLE"     envDefault:"true"`
	MaxLoginAttempts int  `env:"BANK_MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	MFAThrottle      bool `env:"BANK_MFA_THROTTLE"       envDefault:"true"`
	MaxMFAAttempts   int  `env:"BANK_MAX_MFA_ATTEMPTS"   envDefault:"5"`

	AuditEnabled bool `env:"BANK_AUDIT_ENABLED" envDefault:"true"`
	AuditBuffer  int  `env:"BANK_AUDIT_BUFFER"  envDefault:"1024"`
}

func loadConfig(environ map[string]string) (serverConfig, error) {
	var cfg serverConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Profile != "local" && cfg.DatabaseURL == "" {
		return serverConfig{}, errors.New("BANK_DATABASE_URL is required outside the local profile")
	}
	return cfg, nil
}

// engineConfig maps the environment onto the Engine configuration. Values
// not exposed as variables keep their defaults.
func (c serverConfig) engineConfig() (bankauth.Config, error) {
	cfg := bankauth.DefaultConfig()

	switch {
	case c.JWTPrivateKey != "":
		cfg.JWT.SigningMethod = jwt.MethodEd25519
		cfg.JWT.PrivateKey = []byte(c.JWTPrivateKey)
		cfg.JWT.PublicKey = []byte(c.JWTPublicKey)
	case c.JWTSecret != "":
		cfg.JWT.SigningMethod = jwt.MethodHS256
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	default:
		return bankauth.Config{}, errors.New("set BANK_JWT_SECRET or BANK_JWT_PRIVATE_KEY_FILE")
	}
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.KeyID = c.JWTKeyID
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Session.RotateRefreshTokens = c.RotateRefresh

	cfg.MFA.Issuer = c.MFAIssuer
	cfg.MFA.Profile = c.Profile
	cfg.MFA.Fallback = c.MFAFallback

	cfg.Remote.Timeout = c.RemoteTimeout
	cfg.Remote.RetryBackoff = c.RetryBackoff

	cfg.Security.EnableLoginThrottle = c.LoginThrottle
	cfg.Security.MaxLoginAttempts = c.MaxLoginAttempts
	cfg.Security.EnableMFAThrottle = c.MFAThrottle
	cfg.Security.MaxMFAAttempts = c.MaxMFAAttempts

	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Audit.BufferSize = c.AuditBuffer

	if err := cfg.Validate(); err != nil {
		return bankauth.Config{}, err
	}
	return cfg, nil
}

// redisOptions parses RedisURL with driver-level retries turned off. The
// engine retries a failed round trip once itself.
func (c serverConfig) redisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = -1
	return opts, nil
}
