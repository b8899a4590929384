// Package database provides SQLite connectivity for HireHub Core.
//
// It owns the connection (WAL mode, busy timeout, single writer) and the
// schema migration ledger. Migrations are embedded by the top-level
// migrations package and applied once at startup:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or defaulted.
package database
