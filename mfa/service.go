package mfa

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// ProfileLocal selects the durable backend as primary. Any other profile
// selects the cache backend.
const ProfileLocal = "local"

const secretSize = 20

// Config controls secret generation, provisioning and verification.
type Config struct {
	Issuer   string
	Profile  string
	Fallback bool
	Period   uint
	Skew     uint
	Digits   int
}

// Service generates, stores and verifies TOTP secrets.
//
// The primary backend is fixed at construction from Config.Profile. When
// Fallback is enabled a write that fails with [ErrBackendUnavailable] is
// retried once against the other backend.
type Service struct {
	cfg       Config
	primary   SecretBackend
	secondary SecretBackend
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires durable and cache into a Service. cache may be nil, in
// which case the durable backend is used regardless of profile and no
// fallback is possible.
func NewService(cfg Config, durable, cache SecretBackend, logger *zap.Logger) (*Service, error) {
	if durable == nil && cache == nil {
		return nil, errors.New("mfa: at least one secret backend is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("mfa: issuer is required")
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, fmt.Errorf("mfa: unsupported digits %d", cfg.Digits)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{cfg: cfg, logger: logger, now: time.Now}
	switch {
	case durable == nil:
		s.primary = cache
	case cache == nil:
		s.primary = durable
	case cfg.Profile == ProfileLocal:
		s.primary, s.secondary = durable, cache
	default:
		s.primary, s.secondary = cache, durable
	}
	return s, nil
}

// Primary returns the kind of the profile-selected backend.
func (s *Service) Primary() BackendKind { return s.primary.Kind() }

// GenerateKey draws a fresh 20-byte secret for email. The key carries both
// the base32 secret to persist and the otpauth:// enrollment URI.
func (s *Service) GenerateKey(email string) (*otp.Key, error) {
	key, err := totp.Generate(s.generateOpts(email, nil))
	if err != nil {
		return nil, fmt.Errorf("mfa: generate key: %w", err)
	}
	return key, nil
}

// EnrollmentURI renders the otpauth:// URI for an existing base32 secret.
func (s *Service) EnrollmentURI(email, secret string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("mfa: decode secret: %w", err)
	}
	key, err := totp.Generate(s.generateOpts(email, raw))
	if err != nil {
		return "", fmt.Errorf("mfa: build enrollment uri: %w", err)
	}
	return key.URL(), nil
}

// Persist stores secret for email and returns the kind of backend that now
// holds it. Once the write lands, any copy in the other backend is removed
// so a superseded secret stops verifying.
func (s *Service) Persist(ctx context.Context, email, secret string) (BackendKind, error) {
	err := s.primary.Save(ctx, email, secret)
	if err == nil {
		s.discard(ctx, s.secondary, email)
		return s.primary.Kind(), nil
	}
	if !s.cfg.Fallback || s.secondary == nil || !errors.Is(err, ErrBackendUnavailable) {
		return "", err
	}

	s.logger.Warn("mfa secret backend unavailable, falling back",
		zap.String("primary", string(s.primary.Kind())),
		zap.String("fallback", string(s.secondary.Kind())),
		zap.Error(err),
	)
	if ferr := s.secondary.Save(ctx, email, secret); ferr != nil {
		return "", errors.Join(err, ferr)
	}
	s.discard(ctx, s.primary, email)
	return s.secondary.Kind(), nil
}

// Verify checks code against the secret of email held by holder, or by the
// primary backend when holder is empty. Only the holder is read. A malformed
// or wrong code yields false without an error.
func (s *Service) Verify(ctx context.Context, email, code string, holder BackendKind) (bool, error) {
	backend := s.primary
	if holder != "" {
		if backend = s.backend(holder); backend == nil {
			return false, fmt.Errorf("mfa: unknown secret backend %q", holder)
		}
	}
	secret, err := backend.Load(ctx, email)
	if err != nil {
		return false, err
	}

	code = strings.TrimSpace(code)
	if len(code) != s.cfg.Digits || !isNumeric(code) {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), s.validateOpts())
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, fmt.Errorf("mfa: validate code: %w", err)
	}
	if ok {
		s.discard(ctx, s.other(backend), email)
	}
	return ok, nil
}

// discard removes a stale copy of email's secret. Failures are logged; the
// next successful Persist or Verify tries again.
func (s *Service) discard(ctx context.Context, backend SecretBackend, email string) {
	if backend == nil {
		return
	}
	if err := backend.Delete(ctx, email); err != nil {
		s.logger.Warn("remove superseded mfa secret",
			zap.String("backend", string(backend.Kind())),
			zap.Error(err),
		)
	}
}

func (s *Service) other(backend SecretBackend) SecretBackend {
	if backend == s.primary {
		return s.secondary
	}
	return s.primary
}

func (s *Service) backend(kind BackendKind) SecretBackend {
	switch {
	case s.primary.Kind() == kind:
		return s.primary
	case s.secondary != nil && s.secondary.Kind() == kind:
		return s.secondary
	default:
		return nil
	}
}

func (s *Service) digits() otp.Digits {
	if s.cfg.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

func (s *Service) generateOpts(email string, secret []byte) totp.GenerateOpts {
	return totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: email,
		Period:      s.cfg.Period,
		SecretSize:  secretSize,
		Secret:      secret,
		Digits:      s.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	}
}

func (s *Service) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    s.cfg.Period,
		Skew:      s.cfg.Skew,
		Digits:    s.digits(),
		Algorithm: otp.AlgorithmSHA1,
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
