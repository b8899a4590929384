package category

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hirehub/hirehub-core/internal/auth"
)

// countingRepo is an in-memory Repository that counts List calls.
type countingRepo struct {
	mu    sync.Mutex
	items []Category
	lists int
	err   error
}

func (r *countingRepo) List(context.Context) ([]Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.err != nil {
		return nil, r.err
	}
	return append([]Category(nil), r.items...), nil
}

func (r *countingRepo) Create(_ context.Context, c *Category) error {
	r.mu.Lock()
	r.items = append(r.items, *c)
	r.mu.Unlock()
	return nil
}

func (r *countingRepo) Delete(context.Context, string) error { return nil }

func (r *countingRepo) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

func TestStore_LoadCaches(t *testing.T) {
	repo := &countingRepo{items: []Category{{ID: "cat-1", Name: "Design"}}}
	s := NewStore(repo)

	for range 3 {
		cats, err := s.Load(t.Context())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(cats) != 1 {
			t.Fatalf("Load() = %v", cats)
		}
	}
	if repo.listCalls() != 1 {
		t.Errorf("repository List calls = %d, want 1", repo.listCalls())
	}
}

func TestStore_LoadReturnsSnapshot(t *testing.T) {
	s := NewStore(&countingRepo{})
	s.Set([]Category{{ID: "cat-1", Name: "Design"}})

	cats, _ := s.Load(t.Context())
	cats[0].Name = "mutated"

	again, _ := s.Load(t.Context())
	if again[0].Name != "Design" {
		t.Errorf("caller mutation leaked into store: %q", again[0].Name)
	}
}

func TestStore_LoadError(t *testing.T) {
	s := NewStore(&countingRepo{err: errors.New("db down")})
	if _, err := s.Load(t.Context()); err == nil {
		t.Fatal("Load() should surface repository errors")
	}
	if s.Loaded() {
		t.Error("failed Load must leave the store unloaded")
	}
}

func TestStore_AddRemove(t *testing.T) {
	s := NewStore(&countingRepo{})

	s.Add(Category{ID: "cat-x", Name: "Ignored"})
	if s.Loaded() {
		t.Error("Add on an unloaded store should not mark it loaded")
	}

	s.Set([]Category{{ID: "cat-1", Name: "Sales"}})
	s.Add(Category{ID: "cat-2", Name: "design"})
	s.Remove("cat-1")
	s.Remove("cat-missing")

	cats, _ := s.Load(t.Context())
	if len(cats) != 1 || cats[0].ID != "cat-2" {
		t.Errorf("Load() = %v, want only cat-2", cats)
	}
}

func TestForSession_ClearedOnLogout(t *testing.T) {
	repo := &countingRepo{items: []Category{{ID: "cat-1", Name: "Design"}}}
	sess := auth.NewSession("sess-cat", auth.NewMemoryTokenStore(nil), nil, nil, nil)
	ctx := t.Context()

	if err := sess.SetToken(ctx, "tok", time.Hour); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	store := ForSession(sess, repo)
	if ForSession(sess, repo) != store {
		t.Fatal("ForSession should return the same store for a session")
	}
	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sess.Logout(ctx)
	if store.Loaded() {
		t.Error("logout should clear the category store")
	}

	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if repo.listCalls() != 2 {
		t.Errorf("List calls = %d, want a reload after logout", repo.listCalls())
	}
}
