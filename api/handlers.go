package api

import (
	"net/http"
	"time"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/middleware"
	"github.com/shopspring/decimal"
)

type joinRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type joinResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken"`
	MFARegistered bool   `json:"mfaRegistered"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type enrollResponse struct {
	URI string `json:"uri"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

type createAccountRequest struct {
	Balance *decimal.Decimal `json:"balance"`
}

// AccountResponse is the JSON form of a ledger account.
type AccountResponse struct {
	AccountNumber string          `json:"accountNumber"`
	UserID        string          `json:"userId"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toAccountResponse(a ledger.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.Number,
		UserID:        a.OwnerID,
		Balance:       a.Balance,
		CreatedAt:     a.CreatedAt,
	}
}

func toTokenResponse(res *bankauth.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken:   res.AccessToken,
		RefreshToken:  res.RefreshToken,
		MFARegistered: res.MFARegistered,
	}
}

func (h *handler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	ident, err := h.svc.Join(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{Name: ident.Name, Email: ident.Email})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(res))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(res))
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) enrollMFA(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	uri, err := h.svc.EnrollMFA(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollResponse{URI: uri})
}

func (h *handler) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.svc.VerifyMFA(r.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Verified: ok})
}

func (h *handler) createAccount(w http.ResponseWriter, r *http.Request) {
	req := createAccountRequest{}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	initial := decimal.Zero
	if req.Balance != nil {
		initial = *req.Balance
	}

	token, _ := middleware.TokenFromContext(r.Context())
	acct, err := h.svc.CreateAccount(r.Context(), token, initial)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	accts, err := h.svc.Accounts(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]AccountResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	rtt, err := h.svc.Ping(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "redisRttMs": rtt.Milliseconds()})
}
