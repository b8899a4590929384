package guard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hirehub/hirehub-core/internal/auth"
)

// Status is the guard's state machine position.
type Status string

const (
	StatusChecking    Status = "checking"
	StatusAllowed     Status = "allowed"
	StatusRedirecting Status = "redirecting"
)

// Mode controls what renders while a guard is not yet allowed.
type Mode string

const (
	// ModeEnforce renders nothing until the route is allowed.
	ModeEnforce Mode = "enforce"

	// ModePermissive renders the page while checking or redirecting.
	// Protected content is briefly visible; use for local UI work only.
	ModePermissive Mode = "permissive"
)

// ParseMode converts a config value into a Mode. Empty means enforce.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeEnforce:
		return ModeEnforce, nil
	case ModePermissive:
		return ModePermissive, nil
	default:
		return "", fmt.Errorf("unknown guard mode %q", s)
	}
}

// Navigator performs a redirect.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

// AuthSource is the slice of a session a guard watches. *auth.Session
// satisfies it.
type AuthSource interface {
	State(ctx context.Context) auth.State
	Subscribe(fn func(auth.State)) (unsubscribe func())
}

// Guard gates one mounted page.
//
// It navigates exactly once per transition into redirecting; re-evaluating
// with an unchanged outcome does nothing.
type Guard struct {
	route Route
	table *Table
	src   AuthSource
	nav   Navigator
	mode  Mode

	mu          sync.Mutex
	status      Status
	target      string
	unsubscribe func()
}

// NewGuard creates a guard for routeName in the checking state.
func NewGuard(table *Table, routeName string, src AuthSource, nav Navigator, mode Mode) (*Guard, error) {
	r, ok := table.Route(routeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoute, routeName)
	}
	if mode == "" {
		mode = ModeEnforce
	}
	return &Guard{
		route:  r,
		table:  table,
		src:    src,
		nav:    nav,
		mode:   mode,
		status: StatusChecking,
	}, nil
}

// Mount subscribes to auth changes and evaluates the route.
func (g *Guard) Mount(ctx context.Context) Status {
	unsubscribe := g.src.Subscribe(func(st auth.State) {
		g.apply(st.LoggedIn)
	})

	g.mu.Lock()
	previous := g.unsubscribe
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	if previous != nil {
		previous()
	}
	return g.Evaluate(ctx)
}

// Evaluate re-checks the route against the current auth state.
func (g *Guard) Evaluate(ctx context.Context) Status {
	return g.apply(g.src.State(ctx).LoggedIn)
}

func (g *Guard) apply(loggedIn bool) Status {
	var navigateTo string

	g.mu.Lock()
	if g.route.Requirement.Permits(loggedIn) {
		g.status, g.target = StatusAllowed, ""
	} else {
		target := g.table.byName[g.route.RedirectTo].Path
		if g.status != StatusRedirecting || g.target != target {
			navigateTo = target
		}
		g.status, g.target = StatusRedirecting, target
	}
	status := g.status
	g.mu.Unlock()

	if navigateTo != "" && g.nav != nil {
		g.nav.Navigate(navigateTo)
	}
	return status
}

// Status returns the current state.
func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Target returns the redirect path while redirecting.
func (g *Guard) Target() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target
}

// CanRender reports whether the wrapped page may render now.
func (g *Guard) CanRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status == StatusAllowed || g.mode == ModePermissive
}

// Unmount stops watching auth changes.
func (g *Guard) Unmount() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
