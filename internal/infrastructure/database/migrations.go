package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the schema files, one subdirectory per dialect
// ("postgres", "sqlite"). The migrations package sets it from an embed.FS.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing the dialect
// subdirectories.
var MigrationsDir = "."

// schemaStep is one forward-only schema file, named <version>_<name>.sql.
type schemaStep struct {
	version string
	name    string
	sql     string
}

// Migrate brings the users and sensor_data schema up to date for the
// database's dialect and returns the versions it applied, oldest first.
//
// Only used when database.auto_migrate is set: in production the tables are
// owned by the database operator. Each step commits on its own, so a failed
// run resumes from the failing step.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	steps, err := schemaSteps(db.Dialect())
	if err != nil {
		return nil, err
	}

	done, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, s := range steps {
		if done[s.version] {
			continue
		}
		if err := db.applyStep(ctx, s); err != nil {
			return applied, fmt.Errorf("applying schema %s_%s: %w", s.version, s.name, err)
		}
		applied = append(applied, s.version)
	}
	return applied, nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (db *DB) applyStep(ctx context.Context, s schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, s.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)",
		s.version, s.name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// schemaSteps reads the schema files for dialect, ordered by version.
// Files that do not match <version>_<name>.sql are ignored.
func schemaSteps(dialect string) ([]schemaStep, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	dir := path.Join(MigrationsDir, dialect)
	entries, err := fs.ReadDir(MigrationsFS, dir)
	if err != nil {
		return nil, nil //nolint:nilerr // No schema for this dialect
	}

	var steps []schemaStep
	for _, e := range entries {
		version, name, ok := splitSchemaFilename(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		body, err := fs.ReadFile(MigrationsFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		steps = append(steps, schemaStep{version: version, name: name, sql: string(body)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// splitSchemaFilename splits "0001_initial_schema.sql" into
// ("0001", "initial_schema").
func splitSchemaFilename(filename string) (version, name string, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false
	}
	version, name, found = strings.Cut(base, "_")
	if !found || version == "" || name == "" {
		return "", "", false
	}
	for _, r := range version {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return version, name, true
}
