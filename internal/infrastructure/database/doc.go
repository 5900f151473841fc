// Package database provides the SQLite connection used for device-local state.
//
// Two stores live in the same file: the provisioning key/value table read at
// startup and the publish journal appended to by the sync loop. Schema
// changes are versioned SQL files supplied as an fs.FS (see the migrations
// package) and applied with Migrate.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or defaulted, and every
// .up.sql has a matching .down.sql.
package database
