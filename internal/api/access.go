package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/hirehub/hirehub-core/internal/auth"
)

// handleAccessTable returns every module's access envelope for the
// caller's role. Logged-out callers get an all-denied table.
func (s *Server) handleAccessTable(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var role auth.Role
	modules := make(map[auth.Module]auth.Access, len(auth.Modules))
	for _, m := range auth.Modules {
		modules[m] = auth.ModuleAccess(r.Context(), session, string(m))
	}
	if session != nil {
		role = session.CurrentUser(r.Context()).Role
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role":    role,
		"modules": modules,
	})
}

// handleModuleAccess resolves one module for the caller. Unknown modules
// resolve to denied rather than 404 so clients can probe safely.
func (s *Server) handleModuleAccess(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	a := auth.ModuleAccess(r.Context(), auth.SessionFromContext(r.Context()), module)

	writeJSON(w, http.StatusOK, map[string]any{
		"module":      module,
		"allowed":     a.Allowed,
		"permissions": a.Permissions,
		"known":       slices.Contains(auth.Modules, auth.Module(module)),
	})
}
