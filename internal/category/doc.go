// Package category holds the job categories shared by the dashboard.
//
// Categories live in the SQLite categories table. Each browser session
// reads them through a Store, a small cache attached to the session and
// emptied when the session logs out, so a later user of the same browser
// never sees a stale list.
//
//	store := category.ForSession(sess, repo)
//	cats, err := store.Load(ctx)
package category
