package api

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/middleware"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service is the Engine surface the handlers call.
type Service interface {
	Join(ctx context.Context, email, name, password string) (*bankauth.Identity, error)
	Login(ctx context.Context, email, password string) (*bankauth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*bankauth.LoginResult, error)
	Logout(ctx context.Context, accessToken string) error
	Authenticate(ctx context.Context, accessToken string) (*bankauth.AuthResult, error)
	EnrollMFA(ctx context.Context, accessToken string) (string, error)
	VerifyMFA(ctx context.Context, email, code string) (bool, error)
	CreateAccount(ctx context.Context, accessToken string, initial decimal.Decimal) (ledger.Account, error)
	Accounts(ctx context.Context, accessToken string) ([]ledger.Account, error)
	Ping(ctx context.Context) (time.Duration, error)
}

// Options tunes the router.
type Options struct {
	// TrustProxy makes audit events use the first X-Forwarded-For address.
	TrustProxy bool
	Logger     *zap.Logger
}

type handler struct {
	svc    Service
	logger *zap.Logger
}

// NewRouter registers every route on a fresh router. Callers may mount
// further routes (metrics, pprof) on the result.
func NewRouter(svc Service, opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{svc: svc, logger: logger.Named("api")}

	r := mux.NewRouter()
	r.Use(middleware.ClientIP(opts.TrustProxy))

	guard := middleware.RequireBearer(svc)

	r.HandleFunc("/api/join", h.join).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/api/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/api/mfa/verify", h.verifyMFA).Methods(http.MethodPost)

	r.Handle("/api/mfa/enroll", guard(http.HandlerFunc(h.enrollMFA))).Methods(http.MethodPost)
	r.Handle("/api/accounts", guard(http.HandlerFunc(h.createAccount))).Methods(http.MethodPost)
	r.Handle("/api/accounts", guard(http.HandlerFunc(h.listAccounts))).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	return r
}
