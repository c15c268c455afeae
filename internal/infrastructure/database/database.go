package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver ("sqlite3")
)

// Database configuration constants.
const (
	// DriverPostgres is the database/sql driver name registered by pgx.
	DriverPostgres = "pgx"

	// DriverSQLite is the database/sql driver name registered by go-sqlite3.
	DriverSQLite = "sqlite3"

	// dirPermissions is the permission mode for the SQLite database directory.
	dirPermissions = 0750

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout bounds the startup connectivity check in Open.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle pooled connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// Config contains the settings needed to reach the relational store.
// These map to the database section of config.yaml.
type Config struct {
	// Driver is DriverPostgres or DriverSQLite.
	Driver string

	// PostgreSQL connection parameters. Empty values are omitted from the
	// DSN so the driver falls back to its own defaults.
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	// Path is the SQLite database file. Its directory is created if missing.
	Path string

	// BusyTimeout is the SQLite lock wait in seconds.
	BusyTimeout int
}

// Dialect returns the SQL dialect for the configured driver: "postgres" or "sqlite".
func (c Config) Dialect() string {
	if c.Driver == DriverSQLite {
		return "sqlite"
	}
	return "postgres"
}

// DSN builds the driver-specific data source name.
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		var parts []string
		for _, kv := range [][2]string{
			{"host", c.Host},
			{"port", c.Port},
			{"dbname", c.Name},
			{"user", c.User},
			{"password", c.Password},
			{"sslmode", c.SSLMode},
		} {
			if kv[1] == "" {
				continue
			}
			parts = append(parts, kv[0]+"="+quoteDSNValue(kv[1]))
		}
		return strings.Join(parts, " "), nil

	case DriverSQLite:
		// See: https://github.com/mattn/go-sqlite3#connection-string
		return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
			c.Path,
			c.BusyTimeout*msPerSecond,
		), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
}

// quoteDSNValue quotes a libpq keyword/value when it is empty or contains
// spaces, quotes or backslashes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// openSQL opens a database/sql handle for cfg without verifying it.
func openSQL(cfg Config) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return sqlDB, nil
}

// DB wraps a pooled sql.DB. It backs PooledProvider and schema migrations;
// request handlers never see it directly.
type DB struct {
	*sql.DB
	cfg Config
}

// Open creates a pooled database handle and verifies it with a ping.
//
// Parameters:
//   - ctx: Context for the connectivity check
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If configuration or connectivity fails
func Open(ctx context.Context, cfg Config) (*DB, error) {
	sqlDB, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// SQLite only supports one writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &DB{DB: sqlDB, cfg: cfg}, nil
}

// Close closes the database handle.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Dialect returns the SQL dialect of the underlying driver.
func (db *DB) Dialect() string {
	return db.cfg.Dialect()
}

// BeginTx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
