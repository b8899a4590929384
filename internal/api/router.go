package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/guard"
	"github.com/hirehub/hirehub-core/internal/webui"
)

// buildRouter creates the HTTP router with all routes and middleware.
// It fails when a page route cannot be guarded.
func (s *Server) buildRouter() (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})

	// Health and metrics stay outside the session middleware so probes do not mint sessions.
	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	var pagesErr error
	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/session", s.handleSession)

			r.Get("/access", s.handleAccessTable)
			r.Get("/access/{module}", s.handleModuleAccess)

			r.Get("/routes", s.handleListRoutes)
			r.Get("/routes/{name}/check", s.handleCheckRoute)

			r.Route("/categories", func(r chi.Router) {
				r.With(auth.RequireModule(auth.ModuleCategories, auth.PermView)).Get("/", s.handleListCategories)
				r.With(auth.RequireModule(auth.ModuleCategories, auth.PermCreate)).Post("/", s.handleCreateCategory)
				r.With(auth.RequireModule(auth.ModuleCategories, auth.PermDelete)).Delete("/{id}", s.handleDeleteCategory)
			})

			r.With(auth.RequireModule(auth.ModuleUsers, auth.PermView)).Get("/users", s.handleListUsers)
			r.With(auth.RequireModule(auth.ModuleAudit, auth.PermView)).Get("/audit", s.handleListAuditLogs)

			r.Get("/ws", s.handleWebSocket)
		})

		pagesErr = s.mountPages(r)
	})
	if pagesErr != nil {
		return nil, pagesErr
	}

	return r, nil
}

// mountPages serves the web shell on every route of the table, each
// behind its own guard. Static assets are public.
func (s *Server) mountPages(r chi.Router) error {
	shell := webui.Handler(s.webDir)
	logger := s.logger.With("component", "guard").Logger

	for _, route := range s.routes.Routes() {
		mw, err := guard.Middleware(s.routes, route.Name, pageResolver, s.guardMode, logger)
		if err != nil {
			return fmt.Errorf("guarding route %q: %w", route.Name, err)
		}
		r.Method(http.MethodGet, route.Path, mw(shell))
	}
	r.Handle("/assets/*", shell)

	return nil
}
