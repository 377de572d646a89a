package auth

import (
	"context"
	"log/slog"
	"net/http"

	"support-backend/internal/database"
)

// sessionContextKey stores the verified session claims in the request
// context.
var sessionContextKey = &contextKey{"Session"}

type contextKey struct {
	name string
}

// SessionFromContext returns the verified claims attached by one of the
// session middlewares.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(sessionContextKey).(*SessionClaims)
	return claims, ok
}

// RequireSession gates a route on any valid session token. Missing or
// invalid tokens redirect to the root path.
func RequireSession(secret []byte) func(http.Handler) http.Handler {
	return requireRole(secret, "")
}

// RequireAdmin gates a route on a valid session token with the admin role.
func RequireAdmin(secret []byte) func(http.Handler) http.Handler {
	return requireRole(secret, database.RoleAdmin)
}

func requireRole(secret []byte, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			claims, err := VerifySession(secret, cookie.Value)
			if err != nil {
				slog.Info("rejecting request with invalid session token", "path", r.URL.Path, "error", err)
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			if role != "" && claims.Role != role {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession attaches claims when a valid token is present and lets the
// request through either way; the anonymous support-chat flow relies on it.
func OptionalSession(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := VerifySession(secret, cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
