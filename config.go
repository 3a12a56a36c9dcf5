package bankauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/bankauth/jwt"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/mfa"
	"github.com/MrEthical07/bankauth/password"
)

// Config is the complete Engine configuration. It is cloned at Build and
// never mutated afterwards.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	MFA      MFAConfig
	Ledger   LedgerConfig
	Remote   RemoteConfig
	Security SecurityConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the signing material and token lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod jwt.SigningMethod // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the server-side refresh token record.
type SessionConfig struct {
	// RotateRefreshTokens replaces the stored refresh token on every Refresh.
	// When false the presented token is returned unchanged.
	RotateRefreshTokens bool
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig configures TOTP enrollment and secret storage.
type MFAConfig struct {
	Issuer string
	// Profile selects the primary secret backend: "local" stores secrets in
	// the SQL database, anything else in Redis.
	Profile string
	// Fallback writes to the other backend when the primary is unavailable.
	Fallback bool
	Period   uint
	Skew     uint
	Digits   int
}

/*
====================================
LEDGER CONFIG
====================================
*/

// LedgerConfig bounds account number generation.
type LedgerConfig struct {
	MaxAccountNumberAttempts int
}

/*
====================================
REMOTE CONFIG
====================================
*/

// RemoteConfig bounds every Redis round trip.
type RemoteConfig struct {
	Timeout      time.Duration
	RetryBackoff time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the per-email attempt throttles.
type SecurityConfig struct {
	EnableLoginThrottle bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration

	EnableMFAThrottle bool
	MaxMFAAttempts    int
	MFAWindow         time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters of the default hasher.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// AcceptBcrypt verifies legacy bcrypt hashes.
	AcceptBcrypt bool
	// UpgradeOnLogin rehashes a password whose stored hash is outdated.
	UpgradeOnLogin bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration New starts from. Callers still have
// to supply JWT key material.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: jwt.MethodHS256,
			Issuer:        "bankauth",
		},
		Session: SessionConfig{
			RotateRefreshTokens: true,
		},
		MFA: MFAConfig{
			Issuer:   "bankauth",
			Profile:  "prod",
			Fallback: true,
			Period:   30,
			Skew:     1,
			Digits:   6,
		},
		Ledger: LedgerConfig{
			MaxAccountNumberAttempts: ledger.DefaultMaxAttempts,
		},
		Remote: RemoteConfig{
			Timeout:      2 * time.Second,
			RetryBackoff: 50 * time.Millisecond,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			MaxLoginAttempts:    5,
			LoginWindow:         15 * time.Minute,
			EnableMFAThrottle:   true,
			MaxMFAAttempts:      5,
			MFAWindow:           5 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			AcceptBcrypt:     true,
			UpgradeOnLogin:   true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c JWTConfig) managerConfig() jwt.Config {
	return jwt.Config{
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
		SigningMethod: c.SigningMethod,
		PrivateKey:    c.PrivateKey,
		PublicKey:     c.PublicKey,
		Issuer:        c.Issuer,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
	}
}

func (c MFAConfig) serviceConfig() mfa.Config {
	return mfa.Config{
		Issuer:   c.Issuer,
		Profile:  c.Profile,
		Fallback: c.Fallback,
		Period:   c.Period,
		Skew:     c.Skew,
		Digits:   c.Digits,
	}
}

func (c PasswordConfig) argon2Config() password.Config {
	return password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the fields Build relies on. Signing material and Argon2
// parameters are checked again by their own constructors.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.SigningMethod != jwt.MethodHS256 && c.JWT.SigningMethod != jwt.MethodEd25519 {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// MFA
	if c.MFA.Issuer == "" {
		return errors.New("MFA Issuer must not be empty")
	}
	if c.MFA.Digits != 0 && c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		return errors.New("MFA Digits must be 6 or 8")
	}
	if c.MFA.Skew > 2 {
		return errors.New("MFA Skew must be <= 2")
	}

	// Ledger
	if c.Ledger.MaxAccountNumberAttempts <= 0 {
		return errors.New("Ledger MaxAccountNumberAttempts must be > 0")
	}

	// Remote
	if c.Remote.Timeout <= 0 {
		return errors.New("Remote Timeout must be > 0")
	}
	if c.Remote.RetryBackoff < 0 {
		return errors.New("Remote RetryBackoff must be >= 0")
	}
	if c.Remote.RetryBackoff >= c.Remote.Timeout {
		return errors.New("Remote RetryBackoff must be < Timeout")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 || c.Security.LoginWindow <= 0 {
			return errors.New("login throttle requires MaxLoginAttempts and LoginWindow > 0")
		}
	}
	if c.Security.EnableMFAThrottle {
		if c.Security.MaxMFAAttempts <= 0 || c.Security.MFAWindow <= 0 {
			return errors.New("mfa throttle requires MaxMFAAttempts and MFAWindow > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
