package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/ayush/task-tracker/internal/auth"
	"github.com/ayush/task-tracker/internal/logger"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// LoadSession validates the session cookie, refreshes its idle window and
// injects the identity into the request context. Requests without a valid
// session pass through anonymously.
func LoadSession(sessions *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessions.TokenFrom(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := sessions.Validate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrSessionExpired) && err != auth.ErrInvalidSession {
					logger.Warn("session validation", "err", err)
				}
				sessions.ClearCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			if fresh, err := sessions.Touch(s); err == nil {
				sessions.SetCookie(w, fresh)
			} else {
				logger.Warn("session refresh", "err", err)
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), s.Identity)))
		})
	}
}

// RequireAuth redirects anonymous requests to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
