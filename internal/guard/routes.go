package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hirehub/hirehub-core/internal/infrastructure/config"
)

// Requirement is the auth condition a route needs to render.
type Requirement string

const (
	// Public routes render for everyone and never redirect.
	Public Requirement = "public"

	// Authenticated routes need a logged-in session.
	Authenticated Requirement = "authenticated"

	// Guest routes are only for logged-out visitors (login, register).
	Guest Requirement = "guest"
)

// ParseRequirement converts a config value into a Requirement.
func ParseRequirement(s string) (Requirement, error) {
	switch r := Requirement(strings.ToLower(strings.TrimSpace(s))); r {
	case Public, Authenticated, Guest:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown requirement %q", ErrInvalidRoute, s)
	}
}

// Permits reports whether the requirement is met for the given auth state.
func (r Requirement) Permits(loggedIn bool) bool {
	switch r {
	case Public:
		return true
	case Authenticated:
		return loggedIn
	case Guest:
		return !loggedIn
	default:
		return false
	}
}

// Route is one named page.
type Route struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	Requirement Requirement `json:"requirement"`
	// RedirectTo names the route to send visitors to when the requirement
	// is not met. Empty for public routes.
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Sentinel errors for route table validation.
var (
	ErrInvalidRoute = errors.New("invalid route")
	ErrRedirectLoop = errors.New("redirect loop")
	ErrUnknownRoute = errors.New("unknown route")
)

// Table is a validated, immutable route table.
type Table struct {
	routes []Route
	byName map[string]Route
}

// NewTable validates routes and builds a Table.
//
// Names and paths must be unique and every redirect target must exist.
// Following redirects under a fixed auth state must terminate, and the
// target of a protected route must itself render for the state that was
// rejected: logged-out visitors land on a public or guest page, logged-in
// visitors on a public or authenticated page.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, 0, len(routes)),
		byName: make(map[string]Route, len(routes)),
	}
	paths := make(map[string]string, len(routes))

	for i, r := range routes {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: routes[%d] has no name", ErrInvalidRoute, i)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("%w: %q: path %q must start with /", ErrInvalidRoute, r.Name, r.Path)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidRoute, r.Name)
		}
		if other, dup := paths[r.Path]; dup {
			return nil, fmt.Errorf("%w: %q and %q share path %q", ErrInvalidRoute, other, r.Name, r.Path)
		}
		req, err := ParseRequirement(string(r.Requirement))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", r.Name, err)
		}
		r.Requirement = req

		switch {
		case req == Public && r.RedirectTo != "":
			return nil, fmt.Errorf("%w: public route %q cannot redirect", ErrInvalidRoute, r.Name)
		case req != Public && r.RedirectTo == "":
			return nil, fmt.Errorf("%w: %s route %q needs redirect_to", ErrInvalidRoute, req, r.Name)
		}

		t.byName[r.Name] = r
		paths[r.Path] = r.Name
		t.routes = append(t.routes, r)
	}

	for _, r := range t.routes {
		if r.RedirectTo == "" {
			continue
		}
		if _, ok := t.byName[r.RedirectTo]; !ok {
			return nil, fmt.Errorf("%w: %q redirects to unknown route %q", ErrInvalidRoute, r.Name, r.RedirectTo)
		}
	}

	if err := t.checkChains(); err != nil {
		return nil, err
	}

	for _, r := range t.routes {
		if r.RedirectTo == "" {
			continue
		}
		// The state that triggered the redirect is the opposite of what r needs.
		loggedIn := r.Requirement == Guest
		if target := t.byName[r.RedirectTo]; !target.Requirement.Permits(loggedIn) {
			return nil, fmt.Errorf("%w: %q redirects to %q, which is also closed to %s visitors",
				ErrInvalidRoute, r.Name, target.Name, stateName(loggedIn))
		}
	}

	return t, nil
}

// MustTable is NewTable for built-in tables; it panics on error.
func MustTable(routes []Route) *Table {
	t, err := NewTable(routes)
	if err != nil {
		panic(err)
	}
	return t
}

// checkChains follows redirects from every route under both auth states
// and fails if any chain revisits a route.
func (t *Table) checkChains() error {
	for _, loggedIn := range []bool{false, true} {
		for _, start := range t.routes {
			seen := map[string]bool{}
			r := start
			for !r.Requirement.Permits(loggedIn) {
				if seen[r.Name] {
					return fmt.Errorf("%w: starting at %q while %s", ErrRedirectLoop, start.Name, stateName(loggedIn))
				}
				seen[r.Name] = true
				r = t.byName[r.RedirectTo]
			}
		}
	}
	return nil
}

func stateName(loggedIn bool) string {
	if loggedIn {
		return "logged-in"
	}
	return "logged-out"
}

// Route returns the named route.
func (t *Table) Route(name string) (Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Decision is the outcome of checking a route against an auth state.
type Decision struct {
	Route   string `json:"route"`
	Allowed bool   `json:"allowed"`
	// RedirectPath is the concrete path to navigate to when not allowed.
	RedirectPath string `json:"redirect_path,omitempty"`
}

// Decide checks the named route for loggedIn without side effects.
func (t *Table) Decide(name string, loggedIn bool) (Decision, error) {
	r, ok := t.byName[name]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	if r.Requirement.Permits(loggedIn) {
		return Decision{Route: name, Allowed: true}, nil
	}
	return Decision{Route: name, RedirectPath: t.byName[r.RedirectTo].Path}, nil
}

// DefaultRoutes returns the application's page table.
func DefaultRoutes() []Route {
	protected := func(name, path string) Route {
		return Route{Name: name, Path: path, Requirement: Authenticated, RedirectTo: "login"}
	}
	return []Route{
		{Name: "home", Path: "/", Requirement: Public},
		{Name: "about", Path: "/about", Requirement: Public},
		{Name: "contact", Path: "/contact", Requirement: Public},
		{Name: "pricing", Path: "/pricing", Requirement: Public},

		{Name: "login", Path: "/login", Requirement: Guest, RedirectTo: "dashboard"},
		{Name: "register", Path: "/register", Requirement: Guest, RedirectTo: "dashboard"},

		protected("dashboard", "/dashboard"),
		protected("companies", "/dashboard/companies"),
		protected("jobs", "/dashboard/jobs"),
		protected("users", "/dashboard/users"),
		protected("categories", "/dashboard/categories"),
		protected("subscription", "/dashboard/subscription"),
		protected("profile", "/dashboard/profile"),
	}
}

// RoutesFromConfig converts the routes section of the config file.
// An empty section yields DefaultRoutes.
func RoutesFromConfig(cfg []config.RouteConfig) ([]Route, error) {
	if len(cfg) == 0 {
		return DefaultRoutes(), nil
	}
	routes := make([]Route, 0, len(cfg))
	for _, rc := range cfg {
		req, err := ParseRequirement(rc.Requirement)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rc.Name, err)
		}
		routes = append(routes, Route{
			Name:        rc.Name,
			Path:        rc.Path,
			Requirement: req,
			RedirectTo:  rc.RedirectTo,
		})
	}
	return routes, nil
}
