// Package guard decides whether a page may render for the current auth
// state and where to send the visitor when it may not.
//
// A Table is validated once at startup; a redirect loop or a redirect onto
// another closed page is a configuration error. A Guard is the per-page
// state machine (checking → allowed | redirecting) that watches a session
// and navigates once per transition. Middleware adapts it to HTTP page
// routes.
package guard
