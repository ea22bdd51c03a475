package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)
	return database
}

func TestOpenCreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "approvalctl.db")

	database, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer database.Close()

	applied, err := database.MigrateUp(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(schemaStatements), applied)
	require.Equal(t, path, database.Path())

	// Idempotent.
	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestRetryPolicyRetriesOnBusy(t *testing.T) {
	attempts := 0
	err := retryPolicy{attempts: 3, backoff: time.Millisecond}.run(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyStopsOnNonBusy(t *testing.T) {
	attempts := 0
	err := retryPolicy{attempts: 3, backoff: time.Millisecond}.run(context.Background(), func() error {
		attempts++
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.Equal(t, 1, attempts)
}

func TestRetryPolicyStopsAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := retryPolicy{attempts: 2, backoff: time.Millisecond}.run(context.Background(), func() error {
		attempts++
		return errors.New("SQLITE_BUSY: database is busy")
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryPolicyHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := retryPolicy{attempts: 3, backoff: time.Millisecond}.run(ctx, func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestIsBusyError(t *testing.T) {
	require.False(t, isBusyError(nil))
	require.False(t, isBusyError(context.DeadlineExceeded))
	require.True(t, isBusyError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	require.False(t, isBusyError(errors.New("no such table: kv")))
}

func TestTransactionWithRetry(t *testing.T) {
	database := setupTestDB(t)

	attempts := 0
	err := database.TransactionWithRetry(context.Background(), 3, time.Millisecond, func(tx *sql.Tx) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	database := Wrap(sqlDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE kv")).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = database.Transaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE kv SET value = ?", "x")
		return err
	})
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUpPropagatesErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS kv")).
		WillReturnError(errors.New("attempt to write a readonly database"))

	applied, err := Wrap(sqlDB).MigrateUp(context.Background())
	require.ErrorContains(t, err, "failed to initialize schema")
	require.Equal(t, 0, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
