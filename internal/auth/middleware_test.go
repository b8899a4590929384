package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequireModule(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireModule(ModuleUsers, PermView)(ok)

	session := func(t *testing.T, role Role) *Session {
		t.Helper()
		s := NewSession("sess-mw", NewMemoryTokenStore(nil), nil, nil, nil)
		if role != "" {
			u := User{ID: "usr-" + string(role), Role: role}
			if err := s.Login(t.Context(), &LoginResult{Token: "tok", TTL: time.Hour, User: u}); err != nil {
				t.Fatalf("Login() error = %v", err)
			}
		}
		return s
	}

	tests := []struct {
		name       string
		role       Role
		noSession  bool
		wantStatus int
	}{
		{"no session", "", true, http.StatusUnauthorized},
		{"logged out", "", false, http.StatusUnauthorized},
		{"user lacks view", RoleUser, false, http.StatusForbidden},
		{"expert lacks view", RoleExpert, false, http.StatusForbidden},
		{"company may view", RoleCompany, false, http.StatusNoContent},
		{"admin may view", RoleAdmin, false, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			if !tt.noSession {
				req = req.WithContext(ContextWithSession(req.Context(), session(t, tt.role)))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code >= http.StatusBadRequest {
				var body struct {
					Status int    `json:"status"`
					Code   string `json:"code"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decoding error body: %v", err)
				}
				if body.Status != tt.wantStatus || body.Code == "" {
					t.Errorf("error body = %+v", body)
				}
			}
		})
	}
}
