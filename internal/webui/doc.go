// Package webui serves the HireHub single-page shell.
//
// The shell is embedded with go:embed. Handler serves files that exist
// and falls back to index.html for everything else, so the client-side
// router can take over. The API mounts it behind the route guard for
// page paths and unguarded under /assets/.
//
// Responses carry Cache-Control: no-cache so a redeploy is picked up on
// the next navigation.
package webui
