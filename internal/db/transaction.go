package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tOgg1/approvalctl/internal/logging"
)

// retryPolicy bounds how often a write is re-attempted while another
// approvalctl process (usually a running dashboard) holds the write lock.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

var defaultRetryPolicy = retryPolicy{attempts: 3, backoff: 50 * time.Millisecond}

func (p retryPolicy) normalized() retryPolicy {
	if p.attempts <= 0 {
		p.attempts = defaultRetryPolicy.attempts
	}
	if p.backoff <= 0 {
		p.backoff = defaultRetryPolicy.backoff
	}
	return p
}

// TransactionWithRetry is Transaction re-run on SQLITE_BUSY. Zero values
// select the defaults.
func (db *DB) TransactionWithRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, fn func(*sql.Tx) error) error {
	policy := retryPolicy{attempts: maxAttempts, backoff: baseBackoff}
	return policy.run(ctx, func() error {
		return db.Transaction(ctx, fn)
	})
}

// run calls fn until it succeeds, fails with a non-busy error or the
// attempts are used up. The wait doubles after every busy failure.
func (p retryPolicy) run(ctx context.Context, fn func() error) error {
	p = p.normalized()
	wait := p.backoff
	var err error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			wait *= 2
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); !isBusyError(err) {
			return err
		}
		logBusy(attempt+1, p.attempts)
	}
	return err
}

// isBusyError recognizes lock contention from the driver's result code and
// falls back to the message text for wrapped or mocked errors.
func isBusyError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var driverErr *sqlite.Error
	if errors.As(err, &driverErr) {
		switch driverErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "database is locked") ||
		strings.Contains(text, "database is busy") ||
		strings.Contains(text, "sqlite_busy")
}

func logBusy(attempt, of int) {
	log := logging.Component("db")
	log.Debug().Int("attempt", attempt).Int("of", of).Msg("database busy")
}
