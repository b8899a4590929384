package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hirehub/hirehub-core/internal/infrastructure/database"
	_ "github.com/hirehub/hirehub-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB opens a temporary SQLite database with the embedded migrations
// applied. It is removed when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Temp file rather than :memory: so WAL mode works
	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// seedTestUser inserts an active user with password "test-password".
func seedTestUser(t *testing.T, db *sql.DB, email string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{
		Email:        email,
		DisplayName:  email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := NewUserRepository(db).Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stateRecorder collects every state a session broadcasts.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

// failingStore is a TokenStore whose backing storage is gone.
type failingStore struct{}

func (failingStore) Set(_ context.Context, _ string, _ time.Duration) error {
	return ErrStorageUnavailable
}

func (failingStore) Get(_ context.Context) (SessionToken, bool) { return SessionToken{}, false }

func (failingStore) Clear(_ context.Context) error { return ErrStorageUnavailable }

// brokenSetStore wraps a working store whose writes start failing once
// broken is set. Reads and clears still reach the inner store.
type brokenSetStore struct {
	*MemoryTokenStore
	broken bool
}

func (s *brokenSetStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	if s.broken {
		return errors.New("disk full")
	}
	return s.MemoryTokenStore.Set(ctx, token, ttl)
}

// sharedStores hands out one persistent store per session id, like the
// SQLite factory does.
func sharedStores(now Clock) TokenStoreFactory {
	var mu sync.Mutex
	stores := make(map[string]*MemoryTokenStore)
	return func(id string) TokenStore {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[id]; ok {
			return s
		}
		s := NewMemoryTokenStore(now)
		stores[id] = s
		return s
	}
}
