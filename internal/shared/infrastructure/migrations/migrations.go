// Package migrations applies the embedded schema for the configured driver.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrationsFS embed.FS

// Run applies every pending .up.sql migration for the connection's driver in
// lexical order and records each version in schema_migrations.
func Run(ctx context.Context, conn database.Connection) error {
	dir, placeholder, err := dialect(conn.Driver())
	if err != nil {
		return err
	}

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	files, err := upFiles(dir)
	if err != nil {
		return err
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	for _, file := range files {
		version := strings.TrimSuffix(file, ".up.sql")
		if applied[version] {
			continue
		}

		migration, err := migrationsFS.ReadFile(dir + "/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		// Statements run without bind arguments so multi-statement files
		// execute on both drivers.
		if _, err := conn.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}

		record := fmt.Sprintf(`INSERT INTO schema_migrations (version, applied_at) VALUES (%s, %s)`,
			placeholder(1), placeholder(2))
		if _, err := conn.Exec(ctx, record, version, database.FormatTime(time.Now())); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}
	}

	return nil
}

// Versions lists the embedded migration versions for a driver.
func Versions(driver database.Driver) ([]string, error) {
	dir, _, err := dialect(driver)
	if err != nil {
		return nil, err
	}
	files, err := upFiles(dir)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(files))
	for _, file := range files {
		versions = append(versions, strings.TrimSuffix(file, ".up.sql"))
	}
	return versions, nil
}

func dialect(driver database.Driver) (string, func(int) string, error) {
	switch driver {
	case database.DriverPostgres:
		return "postgres", func(n int) string { return fmt.Sprintf("$%d", n) }, nil
	case database.DriverSQLite:
		return "sqlite", func(int) string { return "?" }, nil
	default:
		return "", nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func upFiles(dir string) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func appliedVersions(ctx context.Context, conn database.Connection) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
