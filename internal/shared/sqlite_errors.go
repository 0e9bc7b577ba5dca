// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsSQLiteBusyError reports whether err is SQLITE_BUSY.
// This occurs when the database is locked by another connection.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3.SQLITE_BUSY
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError reports whether err is SQLITE_LOCKED ("database is locked").
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3.SQLITE_LOCKED
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports whether err is one of the SQLite concurrency
// errors that warrant a retry.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// sqliteCode extracts the primary result code from a driver error.
func sqliteCode(err error) (int, bool) {
	var sErr *sqlite.Error
	if !errors.As(err, &sErr) {
		return 0, false
	}
	return sErr.Code() & 0xff, true
}

// RetryPolicy controls RetryOnConflict.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries three times: 100ms, 200ms, 400ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond}

// RetryOnConflict runs fn until it succeeds, returns a non-conflict error, or
// the attempts are used up. Delays double after each conflict.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	var err error
	for i := 0; i < policy.Attempts; i++ {
		err = fn()
		if err == nil || !IsSQLiteConflictError(err) {
			return err
		}
		if i == policy.Attempts-1 {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite conflict, retrying", "op", op, "attempt", i+1, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
