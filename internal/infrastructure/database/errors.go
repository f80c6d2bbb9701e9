package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrMigrationNotFound is returned when an applied migration is missing
	// from the migration set.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration is returned when rolling back a migration without
	// a .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
