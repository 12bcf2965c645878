package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = sqlDB.Exec(`CREATE TABLE counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`)
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func count(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM counters`).Scan(&n))
	return n
}

func TestWithTransaction_Commit(t *testing.T) {
	db := openDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, `INSERT INTO counters VALUES ('a', 1)`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, `INSERT INTO counters VALUES ('a', 1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := openDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		outer := ExecutorFor(ctx, db.DB)
		return db.WithTransaction(ctx, func(inner context.Context) error {
			assert.Same(t, outer, ExecutorFor(inner, db.DB))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestExecutorFor_NoTransaction(t *testing.T) {
	db := openDB(t)
	assert.Same(t, db.DB, ExecutorFor(context.Background(), db.DB))
}

func TestIsBusy(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}

	assert.True(t, IsBusy(busy))
	assert.True(t, IsBusy(fmt.Errorf("failed to update content item state: %w", busy)))
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsBusy(errors.New("boom")))
	assert.False(t, IsBusy(nil))
}

func TestWithTransaction_RetriesWhenBusy(t *testing.T) {
	db := openDB(t)
	attempts := 0

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		if _, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, `INSERT INTO counters VALUES ('a', ?)`, attempts); err != nil {
			return err
		}
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, count(t, db), "earlier attempts were rolled back")
}

func TestWithTransaction_GivesUpWhenStillBusy(t *testing.T) {
	db := openDB(t)
	attempts := 0

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	assert.True(t, IsBusy(err))
	assert.Equal(t, busyRetries+1, attempts)
}

func TestWithTransaction_BusyRetryHonoursContext(t *testing.T) {
	db := openDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := db.WithTransaction(ctx, func(context.Context) error {
		cancel()
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
