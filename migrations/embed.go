// Package migrations embeds the SQLite schema for the device catalogue.
//
// Importing this package registers the files with the database package,
// so Migrate works without the SQL files on disk.
package migrations

import (
	"embed"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
