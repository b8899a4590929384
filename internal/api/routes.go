package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/guard"
)

// handleListRoutes returns the page route table.
func (s *Server) handleListRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"routes": s.routes.Routes(),
		"mode":   s.guardMode,
	})
}

// handleCheckRoute reports what the guard would do for the caller on the
// named route, without redirecting.
func (s *Server) handleCheckRoute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	loggedIn := false
	if session := auth.SessionFromContext(r.Context()); session != nil {
		loggedIn = session.IsLoggedIn(r.Context())
	}

	decision, err := s.routes.Decide(name, loggedIn)
	if err != nil {
		if errors.Is(err, guard.ErrUnknownRoute) {
			writeNotFound(w, "route not found")
			return
		}
		writeInternalError(w, "failed to check route")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// pageResolver finds the session attached by sessionMiddleware.
func pageResolver(r *http.Request) *auth.Session {
	return auth.SessionFromContext(r.Context())
}
