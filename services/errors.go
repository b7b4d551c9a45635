package services

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// The error taxonomy every lifecycle operation surfaces. Handlers map
// these to HTTP statuses; everything else is an unexpected 500.

// ValidationError is a client-fixable input problem (bad date, unknown
// slot, missing field).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError means the referenced record does not exist.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// ConflictError covers capacity exhaustion, duplicate visits and the
// one-upcoming-booking rule. The message is user-facing and stable.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// ForbiddenError covers role, ownership and agency-linkage failures.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// RetryableTransactionError marks an aborted or serialized-out
// transaction. The whole operation is safe to re-issue; it must never
// be conflated with a genuine conflict.
type RetryableTransactionError struct {
	Msg string
}

func (e *RetryableTransactionError) Error() string { return e.Msg }

// ErrTxAborted is the single retryable error surfaced under
// contention. Expected during normal operation, so callers log it at
// most as a warning.
var ErrTxAborted = &RetryableTransactionError{Msg: "transaction aborted, please retry"}

// Driver error classification. Raw code sniffing lives here and only
// here; the engine never pattern-matches pq codes directly.

// isRetryableTxError reports whether err means the surrounding
// transaction is aborted or lost a serialization/lock race.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"25P02", // in_failed_sql_transaction
			"55P03": // lock_not_available
			return true
		}
	}
	return false
}

// isLockingUnsupported reports whether err is the driver rejecting a
// locking clause in the current query shape. Postgres raises
// feature_not_supported; SQLite has no FOR UPDATE at all and fails the
// parse.
func isLockingUnsupported(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "0A000" // feature_not_supported
	}
	msg := err.Error()
	return strings.Contains(msg, "syntax error") && strings.Contains(msg, "FOR")
}

// isDuplicateKey reports whether err is a unique-constraint violation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translateDBError maps a raw store error into the taxonomy. Transport
// and driver errors outside the taxonomy propagate unchanged.
func translateDBError(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &NotFoundError{Msg: notFoundMsg}
	case isRetryableTxError(err):
		return ErrTxAborted
	case isDuplicateKey(err):
		return &ConflictError{Msg: "record already exists"}
	default:
		return err
	}
}
