package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the auth state derived from a session's token store.
type State struct {
	LoggedIn  bool      `json:"logged_in"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Session holds the auth state of one browser session.
//
// Mutations are serialised by the session's own lock. Subscribers are
// called synchronously on the mutating goroutine after the lock is
// released, so a subscriber may read the session.
type Session struct {
	id     atomic.Pointer[string]
	access *AccessTable
	now    Clock
	base   *slog.Logger

	user UserState

	mu          sync.Mutex
	store       TokenStore
	logger      *slog.Logger
	seeded      bool
	token       SessionToken
	loggedIn    bool
	nextSub     int
	subscribers map[int]func(State)
	resetters   []func()
	attachments map[string]any

	// observer sees every transition but does not count as a subscriber.
	observer func(*Session, State)

	// leases counts requests holding the session. Guarded by the
	// manager's lock.
	leases int
}

// NewSession creates a session backed by store. Most callers should go
// through SessionManager.Open instead.
func NewSession(id string, store TokenStore, access *AccessTable, now Clock, logger *slog.Logger) *Session {
	if access == nil {
		access = DefaultAccessTable()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		store:       store,
		access:      access,
		now:         now,
		base:        logger,
		logger:      logger.With("session_id", id),
		subscribers: make(map[int]func(State)),
		attachments: make(map[string]any),
	}
	s.id.Store(&id)
	return s
}

// ID returns the session id. It changes when the manager rotates the
// session.
func (s *Session) ID() string {
	return *s.id.Load()
}

// State returns the current auth state. Reading an expired token logs the
// session out and notifies subscribers before returning.
func (s *Session) State(ctx context.Context) State {
	s.mu.Lock()
	expired := s.refreshLocked(ctx)
	st := s.stateLocked()
	listeners := s.listenersLocked(expired)
	s.mu.Unlock()

	notify(listeners, st)
	return st
}

// IsLoggedIn reports whether a valid token is present.
func (s *Session) IsLoggedIn(ctx context.Context) bool {
	return s.State(ctx).LoggedIn
}

// Token returns the current token if logged in.
func (s *Session) Token(ctx context.Context) (string, bool) {
	st := s.State(ctx)
	return st.Token, st.LoggedIn
}

// CurrentUser returns a snapshot of the session's user. It is the zero
// User when logged out.
func (s *Session) CurrentUser(ctx context.Context) User {
	if !s.IsLoggedIn(ctx) {
		return User{}
	}
	return s.user.Current()
}

// SetToken stores token for ttl and broadcasts the recomputed state.
// A storage failure leaves the session logged out.
func (s *Session) SetToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	s.refreshLocked(ctx)
	was := s.loggedIn
	err := s.writeTokenLocked(ctx, token, ttl)
	st := s.stateLocked()
	listeners := s.listenersLocked(was != s.loggedIn || s.loggedIn)
	s.mu.Unlock()

	notify(listeners, st)
	return err
}

// Login stores the token and user of a successful credential exchange.
func (s *Session) Login(ctx context.Context, result *LoginResult) error {
	if result == nil || result.Token == "" {
		return ErrInvalidCredentials
	}
	if result.TTL <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	s.refreshLocked(ctx)
	was := s.loggedIn
	err := s.writeTokenLocked(ctx, result.Token, result.TTL)
	if s.loggedIn {
		s.user.SetUser(result.User)
	}
	st := s.stateLocked()
	listeners := s.listenersLocked(was != s.loggedIn || s.loggedIn)
	s.mu.Unlock()

	notify(listeners, st)
	return err
}

// Logout clears the token store, the user and every attached collaborator,
// then notifies subscribers. Calling it again is a no-op for subscribers.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.refreshLocked(ctx)
	was := s.loggedIn
	s.clearLocked(ctx)
	st := s.stateLocked()
	listeners := s.listenersLocked(was)
	s.mu.Unlock()

	notify(listeners, st)
}

// Subscribe registers fn for every state transition. The returned func
// removes it.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// OnLogout registers a reset to run whenever the session logs out,
// explicitly or by expiry. Resets run under the session lock and must not
// call back into the session.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	s.resetters = append(s.resetters, fn)
	s.mu.Unlock()
}

// Attach returns the value stored under key, calling create the first time.
// Values with a Clear() method are cleared on logout. create runs under the
// session lock.
func (s *Session) Attach(key string, create func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.attachments[key]; ok {
		return v
	}
	v := create()
	s.attachments[key] = v
	if c, ok := v.(interface{ Clear() }); ok {
		s.resetters = append(s.resetters, c.Clear)
	}
	return v
}

// Access resolves module against the session's current role.
func (s *Session) Access(ctx context.Context, module string) Access {
	u := s.CurrentUser(ctx)
	if u.IsZero() {
		return denied()
	}
	return s.access.Resolve(module, string(u.Role))
}

// ModuleAccess is the per-session module lookup used by page handlers.
// It fails closed when nobody is logged in.
func ModuleAccess(ctx context.Context, s *Session, module string) Access {
	if s == nil {
		return denied()
	}
	return s.Access(ctx, module)
}

// restore hydrates the user of a token that survived a restart. A token
// the authenticator rejects logs the session out.
func (s *Session) restore(ctx context.Context, a Authenticator) error {
	token, ok := s.Token(ctx)
	if !ok || !s.user.Current().IsZero() {
		return nil
	}

	u, err := a.Restore(ctx, token)
	if err != nil {
		s.mu.Lock()
		logger := s.logger
		s.mu.Unlock()
		logger.Info("stored token rejected, logging session out", "error", err)
		s.Logout(ctx)
		return fmt.Errorf("restoring session user: %w", err)
	}

	s.mu.Lock()
	if s.loggedIn && s.token.Value == token {
		s.user.SetUser(*u)
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// idle reports a logged-out session nobody watches. It reads the cached
// state only and never notifies.
func (s *Session) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loggedIn && len(s.subscribers) == 0
}

// rekey moves the session to id, backed by store. A token held under the
// old id is cleared rather than carried over, so the session is logged
// out afterwards. Subscribers and attachments stay.
func (s *Session) rekey(ctx context.Context, id string, store TokenStore) {
	s.mu.Lock()
	expired := s.refreshLocked(ctx)
	was := s.loggedIn
	s.clearLocked(ctx)
	s.id.Store(&id)
	s.store = store
	s.logger = s.base.With("session_id", id)
	s.token, s.loggedIn, s.seeded = SessionToken{}, false, true
	st := s.stateLocked()
	listeners := s.listenersLocked(was || expired)
	s.mu.Unlock()

	notify(listeners, st)
}

// refreshLocked seeds the cached token on first use and detects expiry.
// It reports whether an expiry transition happened.
func (s *Session) refreshLocked(ctx context.Context) bool {
	if !s.seeded {
		s.token, s.loggedIn = s.store.Get(ctx)
		s.seeded = true
	}
	if s.loggedIn && s.token.expired(s.now()) {
		s.logger.Debug("session token expired")
		s.clearLocked(ctx)
		return true
	}
	return false
}

// writeTokenLocked stores the token and re-derives the cached state from
// the store. A write the store could not keep logs the session out and
// clears whatever the store still holds, so a later reseed from the same
// store cannot resurrect the previous token.
func (s *Session) writeTokenLocked(ctx context.Context, token string, ttl time.Duration) error {
	setErr := s.store.Set(ctx, token, ttl)
	if setErr != nil {
		s.logger.Warn("storing session token failed", "error", setErr)
	}

	tok, ok := s.store.Get(ctx)
	if !ok || tok.Value != token {
		s.clearLocked(ctx)
		if setErr == nil {
			setErr = ErrStorageUnavailable
		}
		return setErr
	}

	s.token, s.loggedIn = tok, true
	return nil
}

func (s *Session) clearLocked(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("clearing session token failed", "error", err)
	}
	s.token, s.loggedIn = SessionToken{}, false
	s.user.ClearUser()
	for _, reset := range s.resetters {
		reset()
	}
}

func (s *Session) stateLocked() State {
	if !s.loggedIn {
		return State{}
	}
	return State{LoggedIn: true, Token: s.token.Value, ExpiresAt: s.token.ExpiresAt}
}

func (s *Session) listenersLocked(changed bool) []func(State) {
	if !changed || (len(s.subscribers) == 0 && s.observer == nil) {
		return nil
	}
	out := make([]func(State), 0, len(s.subscribers)+1)
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	if obs := s.observer; obs != nil {
		out = append(out, func(st State) { obs(s, st) })
	}
	return out
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st)
	}
}
