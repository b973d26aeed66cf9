// Package dbtest opens migrated databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/migrations"
)

// OpenSQLite returns a migrated SQLite connection in a temporary directory.
// The connection is closed when the test finishes.
func OpenSQLite(t testing.TB) database.Connection {
	t.Helper()

	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "skinsight.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}
