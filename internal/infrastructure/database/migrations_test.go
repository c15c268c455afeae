package database

import (
	"context"
	"reflect"
	"testing"
	"testing/fstest"
	"time"
)

// useTestMigrations swaps in an in-memory schema set for the test.
func useTestMigrations(t *testing.T, files fstest.MapFS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = files
	MigrationsDir = "."
}

func testMigrationFiles() fstest.MapFS {
	return fstest.MapFS{
		"sqlite/0002_create_users.sql": {
			Data: []byte("CREATE TABLE test_users (id INTEGER PRIMARY KEY, username TEXT);"),
		},
		"sqlite/0001_create_readings.sql": {
			Data: []byte("CREATE TABLE test_readings (id INTEGER PRIMARY KEY, value REAL);"),
		},
		"sqlite/README.md": {Data: []byte("ignored")},
		"postgres/0001_create_readings.sql": {
			Data: []byte("CREATE TABLE test_readings (id SERIAL PRIMARY KEY);"),
		},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=$1", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t, testMigrationFiles())
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	applied, err := db.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if want := []string{"0001", "0002"}; !reflect.DeepEqual(applied, want) {
		t.Errorf("Migrate() applied = %v, want %v", applied, want)
	}

	for _, table := range []string{"test_readings", "test_users"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	// Running again should be idempotent
	applied, err = db.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second Migrate() applied = %v, want none", applied)
	}
}

func TestMigrate_ResumesAfterFailure(t *testing.T) {
	files := testMigrationFiles()
	files["sqlite/0002_create_users.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE broken (")}
	useTestMigrations(t, files)
	db := openTestDB(t)
	ctx := context.Background()

	applied, err := db.Migrate(ctx)
	if err == nil {
		t.Fatal("Migrate() with broken schema should fail")
	}
	if !reflect.DeepEqual(applied, []string{"0001"}) {
		t.Errorf("applied before failure = %v, want [0001]", applied)
	}
	if tableExists(t, db, "broken") {
		t.Error("failed step should be rolled back")
	}

	files["sqlite/0002_create_users.sql"] = testMigrationFiles()["sqlite/0002_create_users.sql"]
	applied, err = db.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() after fix error = %v", err)
	}
	if !reflect.DeepEqual(applied, []string{"0002"}) {
		t.Errorf("applied after fix = %v, want [0002]", applied)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useTestMigrations(t, nil)
	MigrationsFS = nil
	db := openTestDB(t)

	applied, err := db.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate() with no schema files error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %v, want none", applied)
	}
}

func TestSchemaSteps_PerDialect(t *testing.T) {
	useTestMigrations(t, testMigrationFiles())

	sqlite, err := schemaSteps("sqlite")
	if err != nil {
		t.Fatalf("schemaSteps(sqlite) error = %v", err)
	}
	if len(sqlite) != 2 {
		t.Fatalf("sqlite steps = %d, want 2", len(sqlite))
	}
	if sqlite[0].version != "0001" || sqlite[1].name != "create_users" {
		t.Errorf("steps not sorted: %+v", sqlite)
	}

	postgres, err := schemaSteps("postgres")
	if err != nil || len(postgres) != 1 {
		t.Errorf("schemaSteps(postgres) = %+v, %v", postgres, err)
	}

	none, err := schemaSteps("mysql")
	if err != nil || none != nil {
		t.Errorf("schemaSteps(mysql) = %v, %v; want nil, nil", none, err)
	}
}

func TestSplitSchemaFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"0001_initial_schema.sql", "0001", "initial_schema", true},
		{"20250301_sensor_index.sql", "20250301", "sensor_index", true},
		{"0001.sql", "", "", false},
		{"0001_.sql", "", "", false},
		{"initial_schema.sql", "", "", false},
		{"README.md", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := splitSchemaFilename(tt.filename)
			if version != tt.wantVersion || name != tt.wantName || ok != tt.wantOK {
				t.Errorf("splitSchemaFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
