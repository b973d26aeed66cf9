package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()

	conn, err := NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE accounts (id TEXT PRIMARY KEY, credits INTEGER NOT NULL)`)
	require.NoError(t, err)
	return conn
}

func TestNewConnection(t *testing.T) {
	conn := openTestConnection(t)

	assert.NoError(t, conn.Ping(context.Background()))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	result, err := conn.Exec(ctx, `INSERT INTO accounts (id, credits) VALUES (?, ?)`, "u1", 50)
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = conn.Exec(ctx, `INSERT INTO accounts (id, credits) VALUES (?, ?)`, "u2", 1000)
	require.NoError(t, err)

	var credits int
	require.NoError(t, conn.QueryRow(ctx, `SELECT credits FROM accounts WHERE id = ?`, "u1").Scan(&credits))
	assert.Equal(t, 50, credits)

	rows, err := conn.Query(ctx, `SELECT id FROM accounts ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"u1", "u2"}, ids)
}

func TestUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("commits owned transaction", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		txCtx, err := uow.Begin(ctx)
		require.NoError(t, err)
		assert.True(t, uow.InTransaction(txCtx))
		assert.False(t, uow.InTransaction(ctx))

		exec := database.ExecutorFromContext(txCtx, conn)
		_, err = exec.Exec(txCtx, `INSERT INTO accounts (id, credits) VALUES (?, ?)`, "u1", 50)
		require.NoError(t, err)
		require.NoError(t, uow.Commit(txCtx))

		var count int
		require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("nested unit reuses outer transaction", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		outerCtx, err := uow.Begin(ctx)
		require.NoError(t, err)
		innerCtx, err := uow.Begin(outerCtx)
		require.NoError(t, err)

		outer, ok := database.TxInfoFromContext(outerCtx)
		require.True(t, ok)
		inner, ok := database.TxInfoFromContext(innerCtx)
		require.True(t, ok)
		assert.True(t, outer.Owned)
		assert.False(t, inner.Owned)
		assert.Same(t, outer.Tx, inner.Tx)

		_, err = database.ExecutorFromContext(innerCtx, conn).
			Exec(innerCtx, `INSERT INTO accounts (id, credits) VALUES (?, ?)`, "u1", 50)
		require.NoError(t, err)

		// Inner commit is a no-op; the outer rollback discards the insert.
		require.NoError(t, uow.Commit(innerCtx))
		require.NoError(t, uow.Rollback(outerCtx))

		var count int
		require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("commit without transaction fails", func(t *testing.T) {
		uow := database.NewUnitOfWork(openTestConnection(t))
		assert.Error(t, uow.Commit(ctx))
		assert.Error(t, uow.Rollback(ctx))
	})
}

func TestErrorClassification(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `INSERT INTO accounts (id, credits) VALUES (?, ?)`, "u1", 50)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `INSERT INTO accounts (id, credits) VALUES (?, ?)`, "u1", 50)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.False(t, database.IsConflict(err))

	var id string
	err = conn.QueryRow(ctx, `SELECT id FROM accounts WHERE id = ?`, "missing").Scan(&id)
	assert.True(t, database.IsNoRows(err))

	assert.True(t, database.IsConflict(database.ErrConflict))
	assert.False(t, database.IsUniqueViolation(errors.New("other")))
}
