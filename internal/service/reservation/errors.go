package reservation

// Error types for the engine.  They keep the three user-visible
// outcomes distinguishable all the way to the API boundary: a hard
// conflict, a transient "try again" failure and a validation rejection.

import (
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"
)

// ErrTryAgain is returned when the orchestrator exhausted its retry
// budget on transient transaction failures (deadlock, lock-wait
// timeout).  The request may legitimately succeed if resubmitted; it is
// distinct from a ConflictError, which will not.
var ErrTryAgain = errors.New("reservation: transient transaction failure, try again")

// ConflictError reports that a requested window overlaps an existing
// active slot.  It carries the first conflicting window so the caller
// can tell the customer which time is taken.
type ConflictError struct {
    CourtID uint64
    Window  Window
}

func (e *ConflictError) Error() string {
    return fmt.Sprintf("reservation: court %d already booked %s", e.CourtID, e.Window)
}

// ValidationError reports malformed input rejected before any
// transaction is opened.
type ValidationError struct {
    Msg string
}

func (e *ValidationError) Error() string { return "reservation: " + e.Msg }

// retryableTx reports whether err is a transient MySQL transaction
// failure that is expected under concurrent load: deadlock (1213) or
// lock-wait timeout (1205).  These are retried from the top of the
// transaction; everything else is not.
func retryableTx(err error) bool {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == 1213 || me.Number == 1205
    }
    return false
}

// duplicateKey reports whether err is a unique-constraint violation
// (1062).  The unique key on (court_id, date, start_time, end_time) is
// the last-line guard beneath the transactional overlap check; hitting
// it means another writer won the window, so it maps to a conflict and
// is not retried.
func duplicateKey(err error) bool {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == 1062
    }
    return false
}
