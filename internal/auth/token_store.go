package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SessionToken is an opaque credential with an absolute expiry.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// expired reports whether the token is past its expiry at now.
func (t SessionToken) expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenStore persists one session's token.
//
// Get never fails: a missing, expired or unreadable token is reported as
// absent. Set and Clear return errors for logging only.
type TokenStore interface {
	Set(ctx context.Context, token string, ttl time.Duration) error
	Get(ctx context.Context) (SessionToken, bool)
	Clear(ctx context.Context) error
}

// expiryLayout is fixed width so expires_at compares correctly as text.
const expiryLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// MemoryTokenStore is a non-durable TokenStore.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token SessionToken
	set   bool
	now   Clock
}

// NewMemoryTokenStore creates an empty in-memory store. A nil clock uses time.Now.
func NewMemoryTokenStore(now Clock) *MemoryTokenStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenStore{now: now}
}

// Set stores token until now+ttl.
func (s *MemoryTokenStore) Set(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = SessionToken{Value: token, ExpiresAt: s.now().Add(ttl)}
	s.set = true
	return nil
}

// Get returns the token if present and unexpired. An expired token is dropped.
func (s *MemoryTokenStore) Get(_ context.Context) (SessionToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return SessionToken{}, false
	}
	if s.token.expired(s.now()) {
		s.token, s.set = SessionToken{}, false
		return SessionToken{}, false
	}
	return s.token, true
}

// Clear removes the token.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.set = SessionToken{}, false
	return nil
}

// SQLiteTokenStore persists a session's token in the session_tokens table so
// it survives a restart.
type SQLiteTokenStore struct {
	db        *sql.DB
	sessionID string
	now       Clock
	logger    *slog.Logger
}

// NewSQLiteTokenStore creates a store for one session id.
func NewSQLiteTokenStore(db *sql.DB, sessionID string, now Clock, logger *slog.Logger) *SQLiteTokenStore {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteTokenStore{db: db, sessionID: sessionID, now: now, logger: logger}
}

// Set upserts the session's token with expiry now+ttl.
func (s *SQLiteTokenStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	expiresAt := s.now().Add(ttl).UTC().Format(expiryLayout)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_tokens (session_id, token, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`,
		s.sessionID, token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: storing token: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Get reads the session's token. Expired rows are deleted on sight.
func (s *SQLiteTokenStore) Get(ctx context.Context) (SessionToken, bool) {
	var tok SessionToken
	var expiresAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT token, expires_at FROM session_tokens WHERE session_id = ?", s.sessionID,
	).Scan(&tok.Value, &expiresAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("token store read failed, treating session as logged out",
				"session_id", s.sessionID, "error", err)
		}
		return SessionToken{}, false
	}

	tok.ExpiresAt, err = time.Parse(expiryLayout, expiresAt)
	if err != nil {
		s.logger.Warn("token store row has unreadable expiry, discarding",
			"session_id", s.sessionID, "error", err)
		s.discard(ctx)
		return SessionToken{}, false
	}

	if tok.expired(s.now()) {
		s.discard(ctx)
		return SessionToken{}, false
	}
	return tok, true
}

// Clear deletes the session's token row.
func (s *SQLiteTokenStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM session_tokens WHERE session_id = ?", s.sessionID); err != nil {
		return fmt.Errorf("%w: clearing token: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteTokenStore) discard(ctx context.Context) {
	if err := s.Clear(ctx); err != nil {
		s.logger.Warn("discarding expired token failed", "session_id", s.sessionID, "error", err)
	}
}

// DeleteExpired removes every expired token row across all sessions.
// Returns the number of deleted rows.
func DeleteExpired(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		"DELETE FROM session_tokens WHERE expires_at <= ?", now.UTC().Format(expiryLayout))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// TokenStoreFactory builds the store backing a session id.
type TokenStoreFactory func(sessionID string) TokenStore

// SQLiteTokenStores returns a factory producing SQLiteTokenStores on db.
func SQLiteTokenStores(db *sql.DB, now Clock, logger *slog.Logger) TokenStoreFactory {
	return func(sessionID string) TokenStore {
		return NewSQLiteTokenStore(db, sessionID, now, logger)
	}
}

// MemoryTokenStores returns a factory producing MemoryTokenStores.
func MemoryTokenStores(now Clock) TokenStoreFactory {
	return func(string) TokenStore {
		return NewMemoryTokenStore(now)
	}
}
