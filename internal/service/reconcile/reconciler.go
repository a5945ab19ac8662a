// Package reconcile applies externally observed payment status to
// booking, payment and slot state.  The same entry point serves the
// gateway webhook, manual sync polling and the expiry sweeper, so the
// trigger paths cannot drift apart.
package reconcile

import (
    "context"
    "errors"
    "fmt"
    "log/slog"

    "github.com/iliyamo/court-reservation/internal/model"
)

// ErrBookingNotFound is returned by Store implementations when the
// booking id does not exist.
var ErrBookingNotFound = errors.New("reconcile: booking not found")

// Source tags where an observation came from, for logging only; both
// paths must reach the same outcome.
type Source string

const (
    SourceWebhook Source = "webhook"
    SourceSync    Source = "sync"
    SourceSweeper Source = "sweeper"
    SourceManual  Source = "manual"
)

// Observed is the externally observed payment state being applied.
type Observed string

const (
    // ObservedCaptured means the gateway captured the payment.
    ObservedCaptured Observed = "captured"
    // ObservedCompletedUnpaid means the checkout session completed but
    // the payment is not captured yet; the session reference is kept
    // for later polling and nothing else changes.
    ObservedCompletedUnpaid Observed = "completed_unpaid"
    // ObservedSessionExpired means the gateway expired the checkout
    // session without payment.
    ObservedSessionExpired Observed = "session_expired"
    // ObservedFailed means the gateway reported a failed payment.
    ObservedFailed Observed = "failed"
    // ObservedDeadlineExpired means the business deadline for paying
    // passed; raised by the expiry sweeper, not the gateway.
    ObservedDeadlineExpired Observed = "deadline_expired"
)

// Update is one observation to apply to a booking.
type Update struct {
    BookingID       uint64
    Observed        Observed
    SessionID       string
    PaymentIntentID string
    Source          Source
}

// Tx is the set of operations one reconciliation transaction needs.
// LockCourts must take the same court row locks, in ascending id order,
// that the reservation orchestrator takes, so a reconciliation cannot
// deadlock against a concurrent reservation on the same courts.
type Tx interface {
    // BookingForUpdate locks and returns the booking row, or
    // ErrBookingNotFound.
    BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error)
    // LockCourts locks the courts referenced by the booking's slots.
    LockCourts(ctx context.Context, bookingID uint64) error
    // SetBookingStatus updates both status axes of the booking.
    SetBookingStatus(ctx context.Context, id uint64, status, paymentStatus string) error
    // SetPaymentStatus updates the payment record's mirrored status.
    SetPaymentStatus(ctx context.Context, bookingID uint64, status string) error
    // AnnotateSession stores the gateway session/intent references on
    // the payment record.  Empty values are left untouched.
    AnnotateSession(ctx context.Context, bookingID uint64, sessionID, paymentIntentID string) error
    // ConfirmSlots marks the booking's slots permanently occupied and
    // returns them.
    ConfirmSlots(ctx context.Context, bookingID uint64) ([]model.Slot, error)
    // ReleaseSlots deletes the booking's slot rows, freeing the
    // windows, and returns what was freed.
    ReleaseSlots(ctx context.Context, bookingID uint64) ([]model.Slot, error)
}

// Store opens one transaction per reconciliation.
type Store interface {
    WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Notifier dispatches downstream notifications.  Implementations are
// fire-and-forget: they log failures and never return them, because a
// notification failure must not affect the already-committed state.
type Notifier interface {
    BookingConfirmed(ctx context.Context, b *model.Booking, slots []model.Slot)
    BookingCancelled(ctx context.Context, b *model.Booking, slots []model.Slot, reason string)
}

// Invalidator drops advisory availability caches after a transition.
type Invalidator interface {
    InvalidateAvailability(ctx context.Context, courtID uint64, date string)
}

// Outcome reports what a reconciliation did.
type Outcome struct {
    Booking model.Booking
    // Changed is true when the transaction committed a state change.
    Changed bool
    // Anomaly is true when the observation contradicted a terminal
    // state and was ignored (e.g. a late "captured" on an expired
    // booking).
    Anomaly bool
}

// Service is the payment state reconciler.
type Service struct {
    store    Store
    notifier Notifier
    cache    Invalidator
    log      *slog.Logger
}

// New builds a Service.  notifier and cache may be nil to disable the
// corresponding side effect; a nil logger falls back to slog.Default.
func New(store Store, notifier Notifier, cache Invalidator, log *slog.Logger) *Service {
    if log == nil {
        log = slog.Default()
    }
    return &Service{store: store, notifier: notifier, cache: cache, log: log}
}

// transition is the committed result carried out of the transaction so
// side effects can run after commit.
type transition struct {
    booking      model.Booking
    slots        []model.Slot
    confirmed    bool
    cancelled    bool
    cancelReason string
    anomaly      bool
    changed      bool
}

// ApplyPaymentStatus applies one observation idempotently.  The same
// observation delivered twice produces the same end state without
// duplicate side effects: the status check inside the transaction is
// the idempotency guard, and notifications only fire when this call is
// the one that committed the change.  Side effects run after commit and
// never roll it back.
func (s *Service) ApplyPaymentStatus(ctx context.Context, u Update) (Outcome, error) {
    var tr transition
    err := s.store.WithTx(ctx, func(tx Tx) error {
        tr = transition{}
        b, err := tx.BookingForUpdate(ctx, u.BookingID)
        if err != nil {
            return err
        }
        tr.booking = *b

        if b.Status != model.StatusPendingPayment {
            // Terminal for this axis.  Duplicate or out-of-order
            // delivery lands here and must be a no-op; a late capture
            // on a dead booking is an anomaly for manual follow-up.
            if u.Observed == ObservedCaptured && b.Status != model.StatusConfirmed && b.Status != model.StatusCompleted {
                tr.anomaly = true
            }
            return nil
        }

        switch u.Observed {
        case ObservedCaptured:
            if err := tx.LockCourts(ctx, u.BookingID); err != nil {
                return err
            }
            if err := tx.SetBookingStatus(ctx, u.BookingID, model.StatusConfirmed, model.PaymentPaid); err != nil {
                return err
            }
            if err := tx.SetPaymentStatus(ctx, u.BookingID, model.PaymentRecordSucceeded); err != nil {
                return err
            }
            if err := tx.AnnotateSession(ctx, u.BookingID, u.SessionID, u.PaymentIntentID); err != nil {
                return err
            }
            slots, err := tx.ConfirmSlots(ctx, u.BookingID)
            if err != nil {
                return err
            }
            tr.booking.Status = model.StatusConfirmed
            tr.booking.PaymentStatus = model.PaymentPaid
            tr.slots = slots
            tr.confirmed = true
            tr.changed = true
        case ObservedCompletedUnpaid:
            // Keep the session reference for later polling; the
            // booking stays pending and the slots stay as they are.
            if err := tx.AnnotateSession(ctx, u.BookingID, u.SessionID, u.PaymentIntentID); err != nil {
                return err
            }
        case ObservedSessionExpired, ObservedFailed, ObservedDeadlineExpired:
            if err := tx.LockCourts(ctx, u.BookingID); err != nil {
                return err
            }
            status, payStatus, recordStatus, reason := closeStates(u.Observed)
            if err := tx.SetBookingStatus(ctx, u.BookingID, status, payStatus); err != nil {
                return err
            }
            if err := tx.SetPaymentStatus(ctx, u.BookingID, recordStatus); err != nil {
                return err
            }
            slots, err := tx.ReleaseSlots(ctx, u.BookingID)
            if err != nil {
                return err
            }
            tr.booking.Status = status
            tr.booking.PaymentStatus = payStatus
            tr.slots = slots
            tr.cancelled = true
            tr.cancelReason = reason
            tr.changed = true
        default:
            return fmt.Errorf("reconcile: unknown observed status %q", u.Observed)
        }
        return nil
    })
    if err != nil {
        return Outcome{}, err
    }

    s.afterCommit(ctx, u, tr)
    return Outcome{Booking: tr.booking, Changed: tr.changed, Anomaly: tr.anomaly}, nil
}

// afterCommit runs side effects that must not affect the committed
// transition: cache invalidation, notification dispatch and anomaly
// logging.
func (s *Service) afterCommit(ctx context.Context, u Update, tr transition) {
    if tr.anomaly {
        s.log.Warn("payment event contradicts terminal booking state; ignored",
            "booking_id", u.BookingID,
            "booking_status", tr.booking.Status,
            "observed", string(u.Observed),
            "source", string(u.Source),
        )
        return
    }
    if !tr.changed {
        return
    }
    if s.cache != nil {
        for _, sl := range tr.slots {
            s.cache.InvalidateAvailability(ctx, sl.CourtID, sl.Date)
        }
    }
    if s.notifier == nil {
        return
    }
    if tr.confirmed {
        s.notifier.BookingConfirmed(ctx, &tr.booking, tr.slots)
    }
    if tr.cancelled {
        s.notifier.BookingCancelled(ctx, &tr.booking, tr.slots, tr.cancelReason)
    }
}

// closeStates maps a closing observation to the booking status pair,
// the payment record status and the human-readable reason.
func closeStates(o Observed) (status, paymentStatus, recordStatus, reason string) {
    switch o {
    case ObservedSessionExpired:
        return model.StatusCancelled, model.PaymentFailed, model.PaymentRecordExpired, "payment session expired"
    case ObservedFailed:
        return model.StatusCancelled, model.PaymentFailed, model.PaymentRecordFailed, "payment failed"
    default: // ObservedDeadlineExpired
        return model.StatusExpired, model.PaymentExpired, model.PaymentRecordExpired, "payment deadline passed"
    }
}
