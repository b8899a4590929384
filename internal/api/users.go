package api

import "net/http"

// handleListUsers returns all user accounts. Password hashes never leave
// the repository's json encoding.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if s.userRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "user directory not configured")
		return
	}

	users, err := s.userRepo.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}
