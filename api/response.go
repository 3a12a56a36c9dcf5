package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/bankauth"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{bankauth.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},
	{bankauth.ErrUserNotFound, http.StatusUnauthorized, "invalid_credentials"},
	{bankauth.ErrInvalidPassword, http.StatusUnauthorized, "invalid_credentials"},
	{bankauth.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token"},
	{bankauth.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{bankauth.ErrTokenRevoked, http.StatusUnauthorized, "token_revoked"},
	{bankauth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{bankauth.ErrTokenMissing, http.StatusBadRequest, "token_missing"},
	{bankauth.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
	{bankauth.ErrMFASecretNotFound, http.StatusNotFound, "mfa_not_enrolled"},
	{bankauth.ErrLoginRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{bankauth.ErrMFARateLimited, http.StatusTooManyRequests, "rate_limited"},
	{bankauth.ErrTransientDependency, http.StatusServiceUnavailable, "unavailable"},
}

// statusFor maps an Engine error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := http.StatusText(status)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	case status != http.StatusUnauthorized:
		// 401 bodies stay generic.
		message = err.Error()
	}
	writeError(w, status, code, message)
}
