package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hirehub/hirehub-core/internal/auth"
)

// RedirectHeader carries the pending redirect when a permissive guard
// lets a page render anyway.
const RedirectHeader = "X-Guard-Redirect"

// SessionResolver finds the session of a request. It returns nil when the
// request carries none.
type SessionResolver func(r *http.Request) *auth.Session

// loggedOut is the auth source for requests without a session.
type loggedOut struct{}

func (loggedOut) State(context.Context) auth.State                { return auth.State{} }
func (loggedOut) Subscribe(func(auth.State)) (unsubscribe func()) { return func() {} }

// recordingNavigator remembers the last navigation instead of performing it.
type recordingNavigator struct{ path string }

func (n *recordingNavigator) Navigate(path string) { n.path = path }

// Middleware gates a page route. A request that does not meet the route's
// requirement gets 302 Found to the redirect target; in permissive mode
// the page renders with RedirectHeader set instead.
func Middleware(table *Table, routeName string, resolve SessionResolver, mode Mode, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if _, ok := table.Route(routeName); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoute, routeName)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var src AuthSource = loggedOut{}
			if s := resolve(r); s != nil {
				src = s
			}

			nav := &recordingNavigator{}
			g, err := NewGuard(table, routeName, src, nav, mode)
			if err != nil {
				http.Error(w, "route not configured", http.StatusInternalServerError)
				return
			}
			g.Evaluate(r.Context())

			if g.CanRender() {
				if nav.path != "" {
					logger.Debug("permissive guard rendering protected page",
						"route", routeName, "redirect", nav.path)
					w.Header().Set(RedirectHeader, nav.path)
				}
				next.ServeHTTP(w, r)
				return
			}

			http.Redirect(w, r, nav.path, http.StatusFound)
		})
	}, nil
}
