package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// The viewer's persist command and the initial transcript import can both
// write while a WAL checkpoint runs, so writes occasionally see SQLITE_BUSY
// even with the busy_timeout pragma set.
const (
	busyRetryAttempts   = 3
	busyRetryBase       = 50 * time.Millisecond
	busyRetryBackoffCap = time.Second
)

// TransactionWithRetry runs fn in a transaction, retrying on busy errors
// with exponential backoff. Zero maxAttempts or baseBackoff select the
// defaults.
func (db *DB) TransactionWithRetry(ctx context.Context, maxAttempts int, baseBackoff time.Duration, fn func(*sql.Tx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = busyRetryAttempts
	}
	if baseBackoff <= 0 {
		baseBackoff = busyRetryBase
	}

	backoff := baseBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := db.Transaction(ctx, fn)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts || !isBusyError(err) {
			return err
		}

		db.logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("retrying busy transaction")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > busyRetryBackoffCap {
			backoff = busyRetryBackoffCap
		}
	}
}

// isBusyError reports whether err is a transient SQLITE_BUSY/LOCKED
// condition worth retrying. Context cancellation is never retried.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}
