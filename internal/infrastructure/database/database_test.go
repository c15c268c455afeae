package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sqliteConfig returns a config for a fresh SQLite file under t.TempDir().
func sqliteConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Driver:      DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
	}
}

// openTestDB opens a pooled SQLite database for tests.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), sqliteConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		cfg := sqliteConfig(t)
		db, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		cfg := sqliteConfig(t)
		cfg.Path = filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(cfg.Path)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), Config{Driver: "mysql"})
		if !errors.Is(err, ErrUnsupportedDriver) {
			t.Errorf("Open() error = %v, want ErrUnsupportedDriver", err)
		}
	})
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "all postgres fields",
			cfg: Config{
				Driver: DriverPostgres, Host: "db", Port: "5432", Name: "ips",
				User: "sensor", Password: "pw", SSLMode: "require",
			},
			want: "host=db port=5432 dbname=ips user=sensor password=pw sslmode=require",
		},
		{
			name: "empty values omitted",
			cfg:  Config{Driver: DriverPostgres, Host: "db", Name: "ips"},
			want: "host=db dbname=ips",
		},
		{
			name: "password with spaces and quotes",
			cfg:  Config{Driver: DriverPostgres, Password: `it's a \secret`},
			want: `password='it\'s a \\secret'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if err != nil {
				t.Fatalf("DSN() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("sqlite", func(t *testing.T) {
		got, err := Config{Driver: DriverSQLite, Path: "/tmp/x.db", BusyTimeout: 2}.DSN()
		if err != nil {
			t.Fatalf("DSN() error = %v", err)
		}
		if !strings.HasPrefix(got, "file:/tmp/x.db?") || !strings.Contains(got, "_busy_timeout=2000") {
			t.Errorf("DSN() = %q", got)
		}
	})
}

func TestDialect(t *testing.T) {
	if got := (Config{Driver: DriverSQLite}).Dialect(); got != "sqlite" {
		t.Errorf("Dialect() = %q, want sqlite", got)
	}
	if got := (Config{Driver: DriverPostgres}).Dialect(); got != "postgres" {
		t.Errorf("Dialect() = %q, want postgres", got)
	}
}

func TestPing_Pooled(t *testing.T) {
	db := openTestDB(t)
	if err := Ping(context.Background(), NewPooledProvider(db)); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), sqliteConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := db.PingContext(context.Background()); err == nil {
		t.Error("PingContext() after Close() should fail")
	}
}

func TestBeginTx(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.ExecContext(ctx, "CREATE TABLE items (name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	t.Run("commit persists", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES ($1)", "kept"); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES ($1)", "dropped"); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
	})

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}
