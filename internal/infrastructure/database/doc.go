// Package database provides the SQLite connection behind the optional
// device catalogue (devices.source: sqlite).
//
// Schema changes live in the top-level migrations package as
// YYYYMMDD_HHMMSS_description.{up,down}.sql files and are embedded into the
// binary. Each migration runs in its own transaction.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
