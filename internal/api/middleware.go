// Package api implements the Home History REST API using chi.
package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/homehistory/internal/auth"
)

// AdminGuard protects the admin and cache-maintenance routes with a static
// bearer token. When enabled is false every request passes.
func AdminGuard(enabled bool, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="homehistory-admin"`)
				writeJSON(w, http.StatusUnauthorized, failBody("Admin token required", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenVerifier resolves a bearer token to a user.
type TokenVerifier interface {
	Verify(token string) (auth.User, error)
}

// RequireUser rejects requests without a valid user token and stores the
// resolved user in the request context.
func RequireUser(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := v.Verify(r.Header.Get("Authorization"))
			if err != nil {
				slog.Debug("user token rejected", slog.String("error", err.Error()))
				w.Header().Set("WWW-Authenticate", `Bearer realm="homehistory"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("Please authenticate"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
		})
	}
}
