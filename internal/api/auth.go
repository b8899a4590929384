package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hirehub/hirehub-core/internal/audit"
	"github.com/hirehub/hirehub-core/internal/auth"
)

// handleLogin exchanges credentials for a session token and logs the
// caller's session in.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "sessions unavailable")
		return
	}

	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, err := s.authn.Authenticate(r.Context(), creds)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserInactive) {
			s.recorder.SessionEvent(audit.ActionLoginFailed, session.ID(), "", map[string]any{"email": email})
			// Inactive accounts get the same answer as wrong passwords.
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("authentication failed", "error", err)
		writeInternalError(w, "authentication failed")
		return
	}

	// Login always moves the session to a fresh id; the old id stops resolving.
	if _, err := s.sessions.Rotate(r.Context(), session); err != nil {
		s.logger.Error("rotating session failed", "session_id", session.ID(), "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "sessions unavailable")
		return
	}
	s.setSessionCookie(w, session.ID())

	if err := session.Login(r.Context(), result); err != nil {
		s.logger.Error("storing session token failed", "session_id", session.ID(), "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "session storage unavailable")
		return
	}

	s.recorder.SessionEvent(audit.ActionLogin, session.ID(), result.User.ID, map[string]any{
		"email": result.User.Email,
		"role":  string(result.User.Role),
	})
	s.logger.Info("user logged in", "session_id", session.ID(), "user_id", result.User.ID)

	writeJSON(w, http.StatusOK, sessionView(r.Context(), session, session.State(r.Context())))
}

// handleLogout logs the caller's session out. It always answers 204.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	user := session.CurrentUser(r.Context())
	wasLoggedIn := session.IsLoggedIn(r.Context())
	session.Logout(r.Context())

	if wasLoggedIn {
		s.recorder.SessionEvent(audit.ActionLogout, session.ID(), user.ID, nil)
		s.logger.Info("user logged out", "session_id", session.ID(), "user_id", user.ID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSession returns the caller's auth state.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		writeJSON(w, http.StatusOK, sessionPayload{})
		return
	}
	writeJSON(w, http.StatusOK, sessionView(r.Context(), session, session.State(r.Context())))
}
