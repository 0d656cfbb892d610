package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"weather-monitor/pkg/logging"
)

//go:embed migrations
var migrationFS embed.FS

// Migration directions
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// migrationDialect maps a driver onto the schema directory it uses
func migrationDialect(driver string) (string, error) {
	switch driver {
	case DriverPostgres, DriverPGX:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// MigrationFiles lists the embedded migration files for a driver and direction,
// in the order they must be applied.
func MigrationFiles(driver, direction string) ([]string, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return nil, fmt.Errorf("invalid migration direction %q", direction)
	}

	dialect, err := migrationDialect(driver)
	if err != nil {
		return nil, err
	}

	suffix := "." + direction + ".sql"
	entries, err := fs.ReadDir(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, "migrations/"+dialect+"/"+e.Name())
		}
	}

	sort.Strings(files)
	if direction == DirectionDown {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	return files, nil
}

// Migrate applies every embedded migration for the database's driver.
// The schema files are idempotent so "up" is safe to run on every start.
func Migrate(ctx context.Context, db *DB, direction string) error {
	files, err := MigrationFiles(db.DriverName(), direction)
	if err != nil {
		return err
	}

	for _, name := range files {
		content, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		db.logger.Info(ctx, "[DB_MIGRATE] Running migration", logging.Fields{
			"file":      name,
			"direction": direction,
		})

		// Multi-statement scripts go straight to the driver without rebinding.
		if _, err := db.db.ExecContext(ctx, string(content)); err != nil {
			db.metrics.RecordDBError("migration_error")
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}

	return nil
}
