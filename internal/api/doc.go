// Package api is the HTTP surface of HireHub Core.
//
// It exposes the session (login, logout, current state), module access
// resolution, the page route table and its guard decisions, the category
// list, user and audit listings, and a WebSocket that pushes auth-state
// transitions to every open tab of a browser session. Page routes from
// the route table are served through the route guard.
//
// Every request is bound to an auth.Session by the session cookie; a
// browser without one is given a fresh session id on its first request.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
