package bankauth_test

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/store/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery staple"

type harness struct {
	engine *bankauth.Engine
	store  *sqlite.Store
	mr     *miniredis.Miniredis
	audit  *bankauth.ChannelSink
}

func testConfig() bankauth.Config {
	cfg := bankauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Remote.Timeout = 250 * time.Millisecond
	cfg.Remote.RetryBackoff = time.Millisecond
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	return cfg
}

func newHarness(t *testing.T, mutate ...func(*bankauth.Config)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bank.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	sink := bankauth.NewChannelSink(256)
	engine, err := bankauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithLogger(zaptest.NewLogger(t)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &harness{engine: engine, store: store, mr: mr, audit: sink}
}

func (h *harness) join(t *testing.T, email string) *bankauth.Identity {
	t.Helper()
	ident, err := h.engine.Join(context.Background(), email, "Ada", testPassword)
	if err != nil {
		t.Fatalf("Join(%s) failed: %v", email, err)
	}
	return ident
}

func (h *harness) login(t *testing.T, email string) *bankauth.LoginResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return res
}

func enrollmentSecret(t *testing.T, uri string) string {
	t.Helper()
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		t.Fatalf("parse enrollment uri: %v", err)
	}
	return key.Secret()
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return code
}

func TestJoinRejectsDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.join(t, "ada@example.com")

	_, err := h.engine.Join(ctx, "ada@example.com", "Other", "another password")
	if !errors.Is(err, bankauth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	_, err = h.engine.Join(ctx, "  ADA@Example.com ", "Other", "another password")
	if !errors.Is(err, bankauth.ErrDuplicateEmail) {
		t.Fatalf("expected case-insensitive duplicate, got %v", err)
	}
}

func TestConcurrentJoinSameEmailSingleWinner(t *testing.T) {
	h := newHarness(t)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Join(context.Background(), "race@example.com", "R", testPassword)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, bankauth.ErrDuplicateEmail) {
				t.Errorf("unexpected join error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful join, got %d", successes)
	}
}

func TestJoinCreatesSingleZeroBalanceAccount(t *testing.T) {
	h := newHarness(t)
	ident := h.join(t, "ada@example.com")
	if ident.PasswordHash != "" {
		t.Fatal("Join must not return the password hash")
	}

	accts, err := h.engine.Accounts(context.Background(), h.login(t, "ada@example.com").AccessToken)
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}
	if len(accts) != 1 {
		t.Fatalf("expected one account, got %d", len(accts))
	}
	if !accts[0].Balance.Equal(decimal.Zero) {
		t.Fatalf("expected zero balance, got %s", accts[0].Balance)
	}
	if accts[0].OwnerID != ident.ID || len(accts[0].Number) != 14 {
		t.Fatalf("unexpected account %+v", accts[0])
	}
}

func TestJoinRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct{ email, password string }{
		{"", testPassword},
		{"not-an-email", testPassword},
		{"ada@example.com", ""},
	} {
		if _, err := h.engine.Join(context.Background(), tc.email, "A", tc.password); !errors.Is(err, bankauth.ErrInvalidInput) {
			t.Fatalf("Join(%q, %q): expected ErrInvalidInput, got %v", tc.email, tc.password, err)
		}
	}
}

func TestConcurrentCreateAccountDistinctNumbers(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	access := h.login(t, "ada@example.com").AccessToken

	const n = 24
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acct, err := h.engine.CreateAccount(context.Background(), access, decimal.NewFromInt(int64(i)))
			if err != nil {
				t.Errorf("CreateAccount %d: %v", i, err)
				return
			}
			numbers[i] = acct.Number
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, number := range numbers {
		if seen[number] {
			t.Fatalf("duplicate account number %s", number)
		}
		seen[number] = true
	}

	accts, err := h.engine.Accounts(context.Background(), access)
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}
	if len(accts) != n+1 {
		t.Fatalf("expected %d accounts, got %d", n+1, len(accts))
	}
}

func TestCreateAccountRejectsNegativeBalance(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	access := h.login(t, "ada@example.com").AccessToken

	_, err := h.engine.CreateAccount(context.Background(), access, decimal.NewFromInt(-5))
	if !errors.Is(err, bankauth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()

	if _, err := h.engine.Login(ctx, "nobody@example.com", testPassword); !errors.Is(err, bankauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := h.engine.Login(ctx, "ada@example.com", "wrong password"); !errors.Is(err, bankauth.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestLoginThrottle(t *testing.T) {
	h := newHarness(t, func(c *bankauth.Config) {
		c.Security.MaxLoginAttempts = 3
	})
	h.join(t, "ada@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.engine.Login(ctx, "ada@example.com", "wrong password"); !errors.Is(err, bankauth.ErrInvalidPassword) {
			t.Fatalf("attempt %d: expected ErrInvalidPassword, got %v", i, err)
		}
	}
	if _, err := h.engine.Login(ctx, "ada@example.com", testPassword); !errors.Is(err, bankauth.ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	h.mr.FastForward(16 * time.Minute)
	h.login(t, "ada@example.com")
}

func TestLoginRefreshAuthenticateSameIdentity(t *testing.T) {
	h := newHarness(t)
	ident := h.join(t, "ada@example.com")
	ctx := context.Background()

	login := h.login(t, "ada@example.com")
	if login.IdentityID != ident.ID || login.MFARegistered {
		t.Fatalf("unexpected login result %+v", login)
	}

	refreshed, err := h.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	auth, err := h.engine.Authenticate(ctx, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if auth.IdentityID != ident.ID {
		t.Fatalf("expected identity %s, got %s", ident.ID, auth.IdentityID)
	}
	if !auth.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", auth.ExpiresAt)
	}
}

func TestRefreshRotationRejectsReplay(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()
	login := h.login(t, "ada@example.com")

	first, err := h.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if first.RefreshToken == login.RefreshToken {
		t.Fatal("expected rotated refresh token")
	}
	if _, err := h.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, bankauth.ErrInvalidRefreshToken) {
		t.Fatalf("expected replayed refresh rejected, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, first.RefreshToken); err != nil {
		t.Fatalf("rotated token must work: %v", err)
	}
}

func TestRefreshWithoutRotationReturnsSameToken(t *testing.T) {
	h := newHarness(t, func(c *bankauth.Config) {
		c.Session.RotateRefreshTokens = false
	})
	h.join(t, "ada@example.com")
	ctx := context.Background()
	login := h.login(t, "ada@example.com")

	for i := 0; i < 2; i++ {
		res, err := h.engine.Refresh(ctx, login.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
		if res.RefreshToken != login.RefreshToken {
			t.Fatal("expected unchanged refresh token")
		}
	}
}

func TestLoginOverwritesStoredRefreshToken(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()

	old := h.login(t, "ada@example.com")
	h.login(t, "ada@example.com")

	if _, err := h.engine.Refresh(ctx, old.RefreshToken); !errors.Is(err, bankauth.ErrInvalidRefreshToken) {
		t.Fatalf("expected superseded refresh token rejected, got %v", err)
	}
}

func TestRefreshRejectsGarbageAndAccessTokens(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()
	login := h.login(t, "ada@example.com")

	for _, tok := range []string{"", "garbage", login.AccessToken} {
		if _, err := h.engine.Refresh(ctx, tok); !errors.Is(err, bankauth.ErrInvalidRefreshToken) {
			t.Fatalf("Refresh(%q): expected ErrInvalidRefreshToken, got %v", tok, err)
		}
	}
}

func TestLogoutRevokesAccessAndRefresh(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()
	login := h.login(t, "ada@example.com")

	if err := h.engine.Logout(ctx, login.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := h.engine.Authenticate(ctx, login.AccessToken); !errors.Is(err, bankauth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, bankauth.ErrInvalidRefreshToken) {
		t.Fatalf("expected refresh rejected after logout, got %v", err)
	}

	ttl := h.mr.TTL("blacklist:" + login.AccessToken)
	if ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("expected blacklist ttl within access lifetime, got %v", ttl)
	}
	// The entry expires together with the token.
	h.mr.FastForward(16 * time.Minute)
	if h.mr.Exists("blacklist:" + login.AccessToken) {
		t.Fatal("expected blacklist entry to expire")
	}
}

func TestLogoutValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.Logout(ctx, ""); !errors.Is(err, bankauth.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if err := h.engine.Logout(ctx, "not.a.token"); !errors.Is(err, bankauth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, ""); !errors.Is(err, bankauth.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
}

func TestVerifyMFAAcceptsCurrentCodeRejectsOthers(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()

	uri, err := h.engine.EnrollMFA(ctx, h.login(t, "ada@example.com").AccessToken)
	if err != nil {
		t.Fatalf("EnrollMFA failed: %v", err)
	}
	secret := enrollmentSecret(t, uri)

	now := time.Now()
	valid := map[string]bool{}
	for _, at := range []time.Time{now.Add(-30 * time.Second), now, now.Add(30 * time.Second)} {
		code, err := totp.GenerateCode(secret, at)
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		valid[code] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		if valid[candidate] {
			continue
		}
		ok, err := h.engine.VerifyMFA(ctx, "ada@example.com", candidate)
		if err != nil || ok {
			t.Fatalf("expected %s rejected, ok=%v err=%v", candidate, ok, err)
		}
		break
	}

	for _, malformed := range []string{"", "12ab56", "1234567"} {
		ok, err := h.engine.VerifyMFA(ctx, "ada@example.com", malformed)
		if err != nil || ok {
			t.Fatalf("expected malformed %q rejected without error, ok=%v err=%v", malformed, ok, err)
		}
	}

	ok, err := h.engine.VerifyMFA(ctx, "ada@example.com", currentCode(t, secret))
	if err != nil || !ok {
		t.Fatalf("expected current code accepted, ok=%v err=%v", ok, err)
	}

	ident, err := h.store.IdentityByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("IdentityByEmail: %v", err)
	}
	if !ident.MFAConfirmed || ident.MFASecretRef != "cache" {
		t.Fatalf("expected confirmed cache enrollment, got %+v", ident)
	}
}

func TestVerifyMFAWithoutSecret(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	ctx := context.Background()

	for _, email := range []string{"ada@example.com", "nobody@example.com"} {
		if _, err := h.engine.VerifyMFA(ctx, email, "123456"); !errors.Is(err, bankauth.ErrMFASecretNotFound) {
			t.Fatalf("VerifyMFA(%s): expected ErrMFASecretNotFound, got %v", email, err)
		}
	}
}

func TestVerifyMFAThrottle(t *testing.T) {
	h := newHarness(t, func(c *bankauth.Config) {
		c.Security.MaxMFAAttempts = 2
	})
	h.join(t, "ada@example.com")
	ctx := context.Background()
	uri, err := h.engine.EnrollMFA(ctx, h.login(t, "ada@example.com").AccessToken)
	if err != nil {
		t.Fatalf("EnrollMFA failed: %v", err)
	}
	secret := enrollmentSecret(t, uri)

	for i := 0; i < 2; i++ {
		if _, err := h.engine.VerifyMFA(ctx, "ada@example.com", "abcdef"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := h.engine.VerifyMFA(ctx, "ada@example.com", currentCode(t, secret)); !errors.Is(err, bankauth.ErrMFARateLimited) {
		t.Fatalf("expected ErrMFARateLimited, got %v", err)
	}
}

func TestLocalProfileStoresSecretDurably(t *testing.T) {
	h := newHarness(t, func(c *bankauth.Config) {
		c.MFA.Profile = "local"
	})
	h.join(t, "ada@example.com")
	ctx := context.Background()

	uri, err := h.engine.EnrollMFA(ctx, h.login(t, "ada@example.com").AccessToken)
	if err != nil {
		t.Fatalf("EnrollMFA failed: %v", err)
	}
	stored, err := h.store.MFASecret(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("MFASecret: %v", err)
	}
	if stored != enrollmentSecret(t, uri) {
		t.Fatal("expected secret in the durable store")
	}
	if h.mr.HGet("MFA:SECRETS", "ada@example.com") != "" {
		t.Fatal("secret must not be in the cache backend")
	}
}

func TestJoinLoginEnrollVerifyScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.join(t, "ada@example.com")

	first := h.login(t, "ada@example.com")
	if first.MFARegistered {
		t.Fatal("expected MFARegistered=false before enrollment")
	}

	uri, err := h.engine.EnrollMFA(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("EnrollMFA failed: %v", err)
	}

	ok, err := h.engine.VerifyMFA(ctx, "ada@example.com", currentCode(t, enrollmentSecret(t, uri)))
	if err != nil || !ok {
		t.Fatalf("VerifyMFA: ok=%v err=%v", ok, err)
	}

	second := h.login(t, "ada@example.com")
	if !second.MFARegistered {
		t.Fatal("expected MFARegistered=true after enrollment")
	}

	id, err := h.engine.IdentityIDByEmail(ctx, "ada@example.com")
	if err != nil || id != second.IdentityID {
		t.Fatalf("IdentityIDByEmail = %q, %v", id, err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[bankauth.MetricLoginSuccess] != 2 || snap.Counters[bankauth.MetricMFAEnrolled] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	h := newHarness(t)
	ctx := bankauth.WithClientIP(context.Background(), "203.0.113.9")

	if _, err := h.engine.Join(ctx, "ada@example.com", "Ada", testPassword); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	select {
	case ev := <-h.audit.Events():
		if ev.EventType != "join" || !ev.Success || ev.IP != "203.0.113.9" || ev.Metadata["account_number"] == "" {
			t.Fatalf("unexpected audit event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected join audit event")
	}
}

func TestDependencyFailureIsTransient(t *testing.T) {
	h := newHarness(t)
	h.join(t, "ada@example.com")
	login := h.login(t, "ada@example.com")

	h.mr.Close()

	if _, err := h.engine.Login(context.Background(), "ada@example.com", testPassword); !errors.Is(err, bankauth.ErrTransientDependency) {
		t.Fatalf("expected ErrTransientDependency from Login, got %v", err)
	}
	if _, err := h.engine.Authenticate(context.Background(), login.AccessToken); !errors.Is(err, bankauth.ErrTransientDependency) {
		t.Fatalf("expected ErrTransientDependency from Authenticate, got %v", err)
	}
	if h.engine.MetricsSnapshot().Counters[bankauth.MetricDependencyFailure] == 0 {
		t.Fatal("expected dependency failure counter")
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.join(t, "ada@example.com")

	ident, err := h.store.IdentityByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("IdentityByEmail: %v", err)
	}
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	bcryptHash := string(legacy)
	if err := h.store.UpdatePasswordHash(ctx, ident.ID, bcryptHash); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}

	h.login(t, "ada@example.com")

	upgraded, err := h.store.IdentityByID(ctx, ident.ID)
	if err != nil {
		t.Fatalf("IdentityByID: %v", err)
	}
	if upgraded.PasswordHash == bcryptHash || !strings.HasPrefix(upgraded.PasswordHash, "$argon2id$") {
		t.Fatalf("expected argon2id rehash, got %s", upgraded.PasswordHash)
	}
	h.login(t, "ada@example.com")
}

func TestBuilderSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	b := bankauth.New().WithConfig(testConfig()).WithRedis(rdb)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error without store")
	}
	b.WithStore(store)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestVerifyMFAConcurrentAttemptsHonourBudget(t *testing.T) {
	h := newHarness(t, func(c *bankauth.Config) {
		c.Security.MaxMFAAttempts = 2
	})
	h.join(t, "ada@example.com")
	ctx := context.Background()
	if _, err := h.engine.EnrollMFA(ctx, h.login(t, "ada@example.com").AccessToken); err != nil {
		t.Fatalf("EnrollMFA failed: %v", err)
	}

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		checked int
		limited int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.VerifyMFA(ctx, "ada@example.com", "abcdef")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				checked++
			case errors.Is(err, bankauth.ErrMFARateLimited):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if checked != 2 || limited != workers-2 {
		t.Fatalf("expected 2 codes checked and %d limited, got %d and %d", workers-2, checked, limited)
	}
	snap := h.engine.MetricsSnapshot()
	if snap.Counters[bankauth.MetricMFAVerifyFailure] != 2 || snap.Counters[bankauth.MetricMFARateLimited] != workers-2 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.audit.Events():
			if ev.EventType != "rate_limited" {
				continue
			}
			attempts, err := strconv.Atoi(ev.Metadata["attempts"])
			if ev.Metadata["scope"] != "mfa" || err != nil || attempts <= 2 {
				t.Fatalf("unexpected rate limit event %+v", ev)
			}
			return
		case <-deadline:
			t.Fatal("expected rate_limited audit event")
		}
	}
}

func TestLoginConcurrentAttemptsHonourBudget(t *testing.T) {
	h := newHarness(t, func(c *bankauth.Config) {
		c.Security.MaxLoginAttempts = 3
	})
	h.join(t, "ada@example.com")
	ctx := context.Background()

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rejected int
		limited  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Login(ctx, "ada@example.com", "wrong password")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, bankauth.ErrInvalidPassword):
				rejected++
			case errors.Is(err, bankauth.ErrLoginRateLimited):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if rejected != 3 || limited != workers-3 {
		t.Fatalf("expected 3 password checks and %d limited, got %d and %d", workers-3, rejected, limited)
	}
}

// collidingStore hands Join a transaction whose account inserts always hit
// an existing number.
type collidingStore struct {
	*sqlite.Store
}

func (s collidingStore) InJoinTx(ctx context.Context, fn func(tx bankauth.JoinTx) error) error {
	return s.Store.InJoinTx(ctx, func(tx bankauth.JoinTx) error {
		return fn(collidingTx{JoinTx: tx})
	})
}

type collidingTx struct {
	bankauth.JoinTx
}

func (collidingTx) InsertAccount(context.Context, ledger.Account) error {
	return ledger.ErrAccountNumberTaken
}

func TestJoinRollsBackIdentityWhenLedgerExhausted(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bank.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	cfg.Ledger.MaxAccountNumberAttempts = 3
	engine, err := bankauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(collidingStore{Store: store}).
		WithLogger(zaptest.NewLogger(t)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	ctx := context.Background()

	if _, err := engine.Join(ctx, "ada@example.com", "Ada", testPassword); !errors.Is(err, bankauth.ErrLedgerExhausted) {
		t.Fatalf("expected ErrLedgerExhausted, got %v", err)
	}
	if _, err := store.IdentityByEmail(ctx, "ada@example.com"); !errors.Is(err, bankauth.ErrUserNotFound) {
		t.Fatalf("expected identity rolled back, got %v", err)
	}
	if _, err := engine.Login(ctx, "ada@example.com", testPassword); !errors.Is(err, bankauth.ErrUserNotFound) {
		t.Fatalf("expected no login for a rolled back join, got %v", err)
	}
	snap := engine.MetricsSnapshot()
	if snap.Counters[bankauth.MetricLedgerExhausted] != 1 || snap.Counters[bankauth.MetricJoinFailure] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
}
