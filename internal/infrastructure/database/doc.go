// Package database opens the node's SQLite file and applies its schema
// migrations.
//
// The node keeps a small amount of state that must survive a watchdog
// reboot: the session event history. SQLite runs in WAL mode with a single
// connection, so the history writer and API readers never see a locked
// database.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Every file pair is named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql and lives at the root of
// the filesystem passed to Migrate.
package database
