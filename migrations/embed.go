// Package migrations embeds SQL migration files into the binary.
//
// The service runs migrations without the SQL files present on the
// filesystem; they are compiled into the executable.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
