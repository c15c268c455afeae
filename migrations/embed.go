// Package migrations embeds SQL migration files into the binary.
//
// Files live in one directory per dialect. They are only applied when
// database.auto_migrate is enabled, typically for local SQLite development.
package migrations

import (
	"embed"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
