package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/bankauth"
)

// Authenticator is the part of [bankauth.Engine] the guard depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*bankauth.AuthResult, error)
}

type authResultContextKey struct{}

type tokenContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*bankauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*bankauth.AuthResult)
	return res, ok
}

// TokenFromContext returns the bearer token admitted by [RequireBearer].
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

// RequireBearer admits a request only when its bearer token passes
// Authenticate. Rejections are 401, or 503 when the session store is
// unreachable.
func RequireBearer(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, bankauth.ErrTransientDependency) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
