package category

import (
	"context"
	"slices"
	"sync"

	"github.com/hirehub/hirehub-core/internal/auth"
)

// attachKey names the store among a session's attachments.
const attachKey = "category.store"

// Store is a per-session cache of the category list. The zero value is
// not usable; use NewStore or ForSession.
type Store struct {
	repo Repository

	mu     sync.Mutex
	items  []Category
	loaded bool
}

// NewStore creates an empty store backed by repo.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// ForSession returns the store attached to s, creating it on first use.
// The session clears it on logout.
func ForSession(s *auth.Session, repo Repository) *Store {
	return s.Attach(attachKey, func() any { return NewStore(repo) }).(*Store) //nolint:forcetypeassert // only this package writes the key
}

// Load returns the cached list, reading the repository on a miss.
func (s *Store) Load(ctx context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		items, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		s.items = items
		s.loaded = true
	}
	return slices.Clone(s.items), nil
}

// Set replaces the cached list.
func (s *Store) Set(items []Category) {
	s.mu.Lock()
	s.items = slices.Clone(items)
	s.loaded = true
	s.mu.Unlock()
}

// Add appends c to a loaded cache. An unloaded cache stays unloaded and
// picks c up on the next Load.
func (s *Store) Add(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}
	s.items = append(s.items, c)
	slices.SortStableFunc(s.items, func(a, b Category) int { return compareFold(a.Name, b.Name) })
}

// Remove drops the category with the given id from the cache.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	s.items = slices.DeleteFunc(s.items, func(c Category) bool { return c.ID == id })
	s.mu.Unlock()
}

// Clear empties the cache. The next Load reads the repository.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.loaded = false
	s.mu.Unlock()
}

// Loaded reports whether the cache holds a list.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
