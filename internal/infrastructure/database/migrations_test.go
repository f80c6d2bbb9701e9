package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/gray-logic-node/migrations"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"20260101_000000_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"20260102_000000_gadgets.up.sql":   {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")},
		"README.md":                        {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return n == 1
}

// ============================================================================
// Migrate
// ============================================================================

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"widgets", "gadgets"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d; want 2, 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("applied[0] = %+v", applied[0])
	}

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateFailureStopsRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()
	fsys["20260101_120000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE broken (")}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() error = nil, want failure")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("earlier migration not kept")
	}
	if tableExists(t, db, "gadgets") {
		t.Error("later migration applied after failure")
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// gadgets has no down file.
	if err := db.MigrateDown(ctx, fsys); !errors.Is(err, ErrNoDownMigration) {
		t.Fatalf("MigrateDown() error = %v, want ErrNoDownMigration", err)
	}

	delete(fsys, "20260102_000000_gadgets.up.sql")
	if err := db.MigrateDown(ctx, fsys); !errors.Is(err, ErrMigrationNotFound) {
		t.Fatalf("MigrateDown() error = %v, want ErrMigrationNotFound", err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = '20260102_000000'"); err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets still exists after rollback")
	}

	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background(), fstest.MapFS{}); err != nil {
		t.Errorf("Migrate() error = %v", err)
	}
	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "session_events") {
		t.Error("session_events not created")
	}
	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "session_events") {
		t.Error("session_events still exists after rollback")
	}
}

// ============================================================================
// Filenames
// ============================================================================

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_session_events.up.sql", "20260301_120000", "session_events", true, true},
		{"20260301_120000_session_events.down.sql", "20260301_120000", "session_events", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "20260301_120000", true, true},
		{"20260301.up.sql", "", "", false, false},
		{"20260301_120000_x.sql", "", "", false, false},
		{"20260301_120000_x.up.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("parseMigrationFilename() = %q, %q, %v; want %q, %q, %v",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}

func TestLoadMigrationsSkipsOrphanDown(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}
	got, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadMigrations() = %+v, want none", got)
	}
}
