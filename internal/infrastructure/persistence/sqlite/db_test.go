package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/garyjia/school-fees/pkg/database"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "tx.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	_, err = raw.Exec(`CREATE TABLE ledger (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	return NewDB(raw.DB, zap.NewNop())
}

func countRows(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM ledger`).Scan(&n))
	return n
}

func TestWithTransaction_CommitsAndJoinsNested(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := ExecutorFrom(txCtx, db.DB).ExecContext(txCtx, `INSERT INTO ledger (id) VALUES ('a')`); err != nil {
			return err
		}
		return db.WithTransaction(txCtx, func(inner context.Context) error {
			assert.Same(t, extractTx(txCtx), extractTx(inner))
			_, err := ExecutorFrom(inner, db.DB).ExecContext(inner, `INSERT INTO ledger (id) VALUES ('b')`)
			return err
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, db))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("decision refused")

	err := db.WithTransaction(context.Background(), func(txCtx context.Context) error {
		if _, err := ExecutorFrom(txCtx, db.DB).ExecContext(txCtx, `INSERT INTO ledger (id) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db))
}

func TestWithTransaction_RetriesWhenBusy(t *testing.T) {
	db := newTestDB(t)
	db.backoff = 0

	attempts := 0
	err := db.WithTransaction(context.Background(), func(txCtx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("update voucher: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithTransaction_GivesUpAfterRetries(t *testing.T) {
	db := newTestDB(t)
	db.backoff = 0

	attempts := 0
	err := db.WithTransaction(context.Background(), func(txCtx context.Context) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})

	assert.True(t, IsBusy(err))
	assert.Equal(t, DefaultBusyRetries+1, attempts)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.False(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsBusy(errors.New("busy")))
	assert.False(t, IsBusy(nil))
}

func TestExecutorFrom_WithoutTransaction(t *testing.T) {
	db := newTestDB(t)
	assert.Equal(t, Executor(db.DB), ExecutorFrom(context.Background(), db.DB))
}
