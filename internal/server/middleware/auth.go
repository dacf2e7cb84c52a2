package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/model"
	"github.com/faucetdb/tollgate/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated admin.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
	// AccessKeyKey is the context key for the key admitted by RequireKey.
	AccessKeyKey contextKeyAuth = "access_key"
)

// Principal represents the authenticated admin making the request.
type Principal struct {
	Subject string
}

// Authenticate returns an HTTP middleware that validates a JWT bearer token
// from the Authorization header. On success a Principal is attached to the
// request context; otherwise a 401 JSON error response is returned.
func Authenticate(admin *service.AdminAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer token.")
				return
			}

			p, err := admin.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, service.ErrTokenExpired) {
					msg = "Token has expired"
				}
				writeAuthError(w, http.StatusUnauthorized, msg)
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, &Principal{Subject: p.Subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns an HTTP middleware that enforces admin-level access.
// It must be used after Authenticate in the middleware chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetPrincipal(r.Context()) == nil {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// RequireKey returns an HTTP middleware that admits only requests carrying a
// known, unexpired access key. The key is taken from the {key} route
// parameter, falling back to the given header. Malformed keys get 400,
// unknown or expired keys 401, and a store failure 500.
func RequireKey(keys *service.KeyService, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, "key")
			if raw == "" {
				raw = r.Header.Get(header)
			}
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "Access key required. Provide "+header+" header.")
				return
			}

			k, err := keys.VerifyKey(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrWrongLength):
					writeAuthError(w, http.StatusBadRequest, err.Error())
				case errors.Is(err, auth.ErrKeyExpired):
					writeAuthError(w, http.StatusUnauthorized, "Key has expired")
				case errors.Is(err, auth.ErrUnableToReadKey):
					writeAuthError(w, http.StatusUnauthorized, "Invalid access key")
				default:
					writeAuthError(w, http.StatusInternalServerError, "Key could not be verified")
				}
				return
			}

			ctx := context.WithValue(r.Context(), AccessKeyKey, k)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyFromContext returns the key admitted by RequireKey.
func KeyFromContext(ctx context.Context) (auth.ExpiringKey, bool) {
	k, ok := ctx.Value(AccessKeyKey).(auth.ExpiringKey)
	return k, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
