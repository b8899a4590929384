package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

// storesUnderTest builds each TokenStore implementation on a shared clock.
func storesUnderTest(t *testing.T, clock *fakeClock) map[string]TokenStore {
	t.Helper()
	db := testDB(t)
	return map[string]TokenStore{
		"memory": NewMemoryTokenStore(clock.Now),
		"sqlite": NewSQLiteTokenStore(db, "sess-1", clock.Now, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func TestTokenStore_SetThenGet(t *testing.T) {
	clock := newFakeClock()
	for name, store := range storesUnderTest(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			if err := store.Set(ctx, "tok-abc", time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, ok := store.Get(ctx)
			if !ok {
				t.Fatal("Get() absent right after Set()")
			}
			if got.Value != "tok-abc" {
				t.Errorf("Get().Value = %q, want %q", got.Value, "tok-abc")
			}
			if want := clock.Now().Add(time.Hour); !got.ExpiresAt.Equal(want) {
				t.Errorf("Get().ExpiresAt = %v, want %v", got.ExpiresAt, want)
			}
		})
	}
}

func TestTokenStore_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	for name, store := range storesUnderTest(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			if err := store.Set(ctx, "tok-short", 30*time.Second); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			clock.Advance(29 * time.Second)
			if _, ok := store.Get(ctx); !ok {
				t.Fatal("Get() absent before expiry")
			}

			// Expiry is inclusive: at exactly now == expiry the token is gone
			clock.Advance(time.Second)
			if _, ok := store.Get(ctx); ok {
				t.Fatal("Get() present at expiry")
			}
		})
	}
}

func TestTokenStore_Clear(t *testing.T) {
	clock := newFakeClock()
	for name, store := range storesUnderTest(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			if err := store.Set(ctx, "tok", time.Hour); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if _, ok := store.Get(ctx); ok {
				t.Error("Get() present after Clear()")
			}
			// Clearing an empty store is fine
			if err := store.Clear(ctx); err != nil {
				t.Errorf("second Clear() error = %v", err)
			}
		})
	}
}

func TestTokenStore_RejectsNonPositiveTTL(t *testing.T) {
	clock := newFakeClock()
	for name, store := range storesUnderTest(t, clock) {
		t.Run(name, func(t *testing.T) {
			for _, ttl := range []time.Duration{0, -time.Second} {
				if err := store.Set(t.Context(), "tok", ttl); !errors.Is(err, ErrInvalidTTL) {
					t.Errorf("Set(ttl=%v) error = %v, want ErrInvalidTTL", ttl, err)
				}
			}
			if _, ok := store.Get(t.Context()); ok {
				t.Error("rejected Set() wrote a token")
			}
		})
	}
}

func TestSQLiteTokenStore_SurvivesReopen(t *testing.T) {
	db := testDB(t)
	clock := newFakeClock()
	ctx := t.Context()

	first := NewSQLiteTokenStore(db, "sess-durable", clock.Now, nil)
	if err := first.Set(ctx, "tok-durable", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A new store for the same session id sees the row
	second := NewSQLiteTokenStore(db, "sess-durable", clock.Now, nil)
	got, ok := second.Get(ctx)
	if !ok || got.Value != "tok-durable" {
		t.Fatalf("Get() = %+v, %v; want tok-durable", got, ok)
	}

	// Other sessions are isolated
	other := NewSQLiteTokenStore(db, "sess-other", clock.Now, nil)
	if _, ok := other.Get(ctx); ok {
		t.Error("token leaked to another session id")
	}
}

func TestSQLiteTokenStore_ExpiredRowDeletedOnRead(t *testing.T) {
	db := testDB(t)
	clock := newFakeClock()
	ctx := t.Context()

	store := NewSQLiteTokenStore(db, "sess-exp", clock.Now, nil)
	if err := store.Set(ctx, "tok", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	clock.Advance(2 * time.Minute)

	if _, ok := store.Get(ctx); ok {
		t.Fatal("Get() present after expiry")
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM session_tokens").Scan(&n); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if n != 0 {
		t.Errorf("session_tokens rows = %d, want 0", n)
	}
}

func TestSQLiteTokenStore_StorageFailureReadsAbsent(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteTokenStore(db, "sess-broken", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := store.Set(t.Context(), "tok", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	db.Close()

	if _, ok := store.Get(t.Context()); ok {
		t.Error("Get() on closed database should read as absent")
	}
	if err := store.Set(t.Context(), "tok", time.Hour); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Set() on closed database error = %v, want ErrStorageUnavailable", err)
	}
	if err := store.Clear(t.Context()); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Clear() on closed database error = %v, want ErrStorageUnavailable", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	db := testDB(t)
	clock := newFakeClock()
	ctx := context.Background()

	short := NewSQLiteTokenStore(db, "sess-short", clock.Now, nil)
	long := NewSQLiteTokenStore(db, "sess-long", clock.Now, nil)
	if err := short.Set(ctx, "a", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := long.Set(ctx, "b", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(10 * time.Minute)

	n, err := DeleteExpired(ctx, db, clock.Now())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}
	if _, ok := long.Get(ctx); !ok {
		t.Error("unexpired token was deleted")
	}
}
