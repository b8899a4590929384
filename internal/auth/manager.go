package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ManagerOptions configures a SessionManager.
type ManagerOptions struct {
	// Stores builds the token store for each session. Defaults to MemoryTokenStores.
	Stores TokenStoreFactory

	// Authenticator restores the user of a token found in storage. Optional.
	Authenticator Authenticator

	// Access is the module access table. Defaults to DefaultAccessTable.
	Access *AccessTable

	// Observer is called after every state transition of every session.
	// Unlike a subscriber it does not keep an idle session alive. Optional.
	Observer func(s *Session, st State)

	Clock  Clock
	Logger *slog.Logger
}

// SessionManager owns every live Session. Create one at startup and Close
// it at shutdown.
type SessionManager struct {
	opts   ManagerOptions
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewSessionManager creates an empty manager.
func NewSessionManager(opts ManagerOptions) *SessionManager {
	if opts.Stores == nil {
		opts.Stores = MemoryTokenStores(opts.Clock)
	}
	if opts.Access == nil {
		opts.Access = DefaultAccessTable()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SessionManager{
		opts:     opts,
		logger:   opts.Logger.With("component", "sessions"),
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for id, creating it if needed. A session
// whose token survived a restart has its user restored. Open does not hold
// the session against Sweep; request handlers use Resume or Mint.
func (m *SessionManager) Open(ctx context.Context, id string) (*Session, error) {
	return m.open(ctx, id, false, false)
}

// Resume returns the session for an id the server already knows: one that
// is open, or one whose token store still holds a token. Any other id
// fails with ErrUnknownSession. The session is held against Sweep until
// release is called.
func (m *SessionManager) Resume(ctx context.Context, id string) (s *Session, release func(), err error) {
	s, err = m.open(ctx, id, true, true)
	if err != nil {
		return nil, nil, err
	}
	return s, m.releaser(s), nil
}

// Mint opens a session under a freshly generated id, held against Sweep
// until release is called.
func (m *SessionManager) Mint(ctx context.Context) (s *Session, release func(), err error) {
	s, err = m.open(ctx, uuid.NewString(), false, true)
	if err != nil {
		return nil, nil, err
	}
	return s, m.releaser(s), nil
}

func (m *SessionManager) open(ctx context.Context, id string, known, hold bool) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("opening session: %w", ErrTokenInvalid)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s, ok := m.sessions[id]; ok {
		if hold {
			s.leases++
		}
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	store := m.opts.Stores(id)
	if known {
		if _, ok := store.Get(ctx); !ok {
			return nil, ErrUnknownSession
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(id, store, m.opts.Access, m.opts.Clock, m.logger)
		s.observer = m.opts.Observer
		m.sessions[id] = s
	}
	if hold {
		s.leases++
	}
	m.mu.Unlock()

	if !ok && m.opts.Authenticator != nil {
		if err := s.restore(ctx, m.opts.Authenticator); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("session restore failed", "session_id", id, "error", err)
		}
	}
	return s, nil
}

func (m *SessionManager) releaser(s *Session) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if s.leases > 0 {
				s.leases--
			}
			m.mu.Unlock()
		})
	}
}

// Rotate moves s to a freshly generated id and returns it. The old id no
// longer resolves and any token held under it is cleared. Subscribers keep
// following s.
func (m *SessionManager) Rotate(ctx context.Context, s *Session) (string, error) {
	id := uuid.NewString()
	store := m.opts.Stores(id)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrSessionClosed
	}
	old := s.ID()
	if cur, ok := m.sessions[old]; ok && cur == s {
		delete(m.sessions, old)
	}
	m.sessions[id] = s
	m.mu.Unlock()

	s.rekey(ctx, id, store)
	m.logger.Debug("session rotated", "old_session_id", old, "session_id", id)
	return id, nil
}

// Lookup returns an already open session without creating one.
func (m *SessionManager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep re-reads every session so expired tokens log out and notify, then
// forgets logged-out sessions that nobody is subscribed to and no request
// holds. Returns the number of sessions dropped.
func (m *SessionManager) Sweep(ctx context.Context) int {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()

	var candidates []*Session
	for _, s := range snapshot {
		if !s.IsLoggedIn(ctx) && s.subscriberCount() == 0 {
			candidates = append(candidates, s)
		}
	}

	// Re-check under the lock: an Open, Subscribe or Login may have
	// landed since the first pass.
	dropped := 0
	m.mu.Lock()
	for _, s := range candidates {
		id := s.ID()
		if m.sessions[id] != s || s.leases > 0 || !s.idle() {
			continue
		}
		delete(m.sessions, id)
		dropped++
	}
	m.mu.Unlock()
	return dropped
}

// Close drops every session. Further Opens fail with ErrSessionClosed.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = make(map[string]*Session)
}
