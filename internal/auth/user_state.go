package auth

import "sync"

// UserState mirrors the logged-in user for one session.
// It is written on login and logout and read by everything else.
type UserState struct {
	mu   sync.RWMutex
	user User
}

// SetUser replaces the current record with a copy of u.
func (s *UserState) SetUser(u User) {
	u.PasswordHash = ""
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Current returns a snapshot of the record. The zero User means nobody is logged in.
func (s *UserState) Current() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ClearUser resets to the empty sentinel.
func (s *UserState) ClearUser() {
	s.mu.Lock()
	s.user = User{}
	s.mu.Unlock()
}
