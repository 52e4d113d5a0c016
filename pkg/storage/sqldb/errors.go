package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/sitepass/pkg/access"
)

// Postgres SQLSTATE codes that signal contention rather than failure
var busyCodes = map[pq.ErrorCode]bool{
	"55P03": true, // lock_not_available
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57014": true, // query_canceled (statement_timeout)
}

const uniqueViolation pq.ErrorCode = "23505"

// Classify maps a storage error onto the access error taxonomy. Errors that
// already carry a kind pass through. Lock contention and deadlines become
// KindBusy, missing rows KindNotFound, everything else KindUnavailable.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var ae *access.Error
	if errors.As(err, &ae) {
		return err
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return access.Wrap(access.KindNotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return access.Wrap(access.KindBusy, op, err)
	case IsBusy(err):
		return access.Wrap(access.KindBusy, op, err)
	}
	return access.Wrap(access.KindUnavailable, op, err)
}

// IsBusy reports whether err is lock contention on either dialect
func IsBusy(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return busyCodes[pqErr.Code]
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsUniqueViolation reports whether err was raised by a unique index
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
