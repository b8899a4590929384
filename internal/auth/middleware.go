package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const sessionKey contextKey = "session"

// ContextWithSession attaches s to ctx.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session attached by ContextWithSession, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session) //nolint:errcheck // type assertion, not error
	return s
}

// RequireModule rejects requests whose session lacks kind on module.
// Logged-out requests get 401, insufficient roles get 403. It expects a
// session to have been attached to the request context.
func RequireModule(module Module, kind PermissionKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			if s == nil || !s.IsLoggedIn(r.Context()) {
				writeAccessError(w, http.StatusUnauthorized, "unauthorised", "login required")
				return
			}
			if !s.Access(r.Context(), string(module)).Can(kind) {
				writeAccessError(w, http.StatusForbidden, "forbidden",
					"missing permission "+string(kind)+" on "+string(module))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeAccessError uses the same envelope as the API package.
func writeAccessError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // best-effort write
		"status":  status,
		"code":    code,
		"message": message,
	})
}
