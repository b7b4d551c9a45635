package services

import (
	"log"

	"gorm.io/gorm"
)

// readMode tags how a guarded read was ultimately satisfied.
type readMode int

const (
	// readLocked: the row lock was taken; concurrent writers on the
	// same row are totally ordered behind this transaction.
	readLocked readMode = iota

	// readDegraded: the driver rejected the locking clause and the
	// identical read ran unlocked. A narrow time-of-check/time-of-use
	// window exists on this path; it is an explicit availability
	// trade-off and is always logged.
	readDegraded
)

// lockedReadWithFallback runs read(true) inside a savepoint so a
// failed locked read cannot poison the caller's transaction. If the
// locking clause is unsupported in this query shape, the identical
// read is retried unlocked within the same savepoint. An aborted or
// serialized-out transaction surfaces as ErrTxAborted, which tells the
// caller to re-issue the whole operation, not just the read.
func lockedReadWithFallback(tx *gorm.DB, name string, read func(locked bool) error) (readMode, error) {
	if err := tx.SavePoint(name).Error; err != nil {
		if isRetryableTxError(err) {
			return readLocked, ErrTxAborted
		}
		return readLocked, err
	}

	err := read(true)
	if err == nil {
		return readLocked, nil
	}

	if isRetryableTxError(err) {
		tx.RollbackTo(name)
		return readLocked, ErrTxAborted
	}

	if isLockingUnsupported(err) {
		if rbErr := tx.RollbackTo(name).Error; rbErr != nil {
			return readLocked, rbErr
		}
		log.Printf("⚠️ Locked read %q unsupported by driver (%v), falling back to unlocked read", name, err)
		if err := read(false); err != nil {
			if isRetryableTxError(err) {
				return readDegraded, ErrTxAborted
			}
			return readDegraded, err
		}
		return readDegraded, nil
	}

	tx.RollbackTo(name)
	return readLocked, err
}
