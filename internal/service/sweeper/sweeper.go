// Package sweeper reclaims bookings stuck in pending payment past the
// business deadline, releasing their slots so the windows become
// bookable again.
package sweeper

import (
    "context"
    "log/slog"
    "time"

    "github.com/iliyamo/court-reservation/internal/service/reconcile"
)

// Store lists candidate bookings for expiry.
type Store interface {
    // ExpiredPending returns ids of bookings still in
    // PENDING_PAYMENT/PENDING created before the cutoff, oldest first,
    // up to limit.
    ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
}

// Reconciler applies the expiry transition.  Routing every expiry
// through the payment reconciler keeps this the same code path as a
// gateway "session expired" event: same locking discipline, same slot
// release, same idempotency guard.
type Reconciler interface {
    ApplyPaymentStatus(ctx context.Context, u reconcile.Update) (reconcile.Outcome, error)
}

// Sweeper is the background expiry process.
type Sweeper struct {
    store    Store
    rec      Reconciler
    interval time.Duration
    deadline time.Duration
    batch    int
    log      *slog.Logger
    now      func() time.Time
}

// New builds a Sweeper.  Non-positive interval, deadline or batch fall
// back to the defaults (1 minute, 15 minutes, 100).
func New(store Store, rec Reconciler, interval, deadline time.Duration, batch int, log *slog.Logger) *Sweeper {
    if interval <= 0 {
        interval = time.Minute
    }
    if deadline <= 0 {
        deadline = 15 * time.Minute
    }
    if batch <= 0 {
        batch = 100
    }
    if log == nil {
        log = slog.Default()
    }
    return &Sweeper{store: store, rec: rec, interval: interval, deadline: deadline, batch: batch, log: log, now: time.Now}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
    s.log.Info("expiry sweeper started",
        "interval", s.interval.String(),
        "deadline", s.deadline.String(),
    )
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            s.log.Info("expiry sweeper stopped")
            return
        case <-ticker.C:
            if _, err := s.SweepOnce(ctx); err != nil {
                s.log.Error("sweep pass failed", "err", err)
            }
        }
    }
}

// SweepOnce expires one batch of overdue bookings and returns how many
// were actually transitioned.  Each booking is expired in its own
// transaction, so one poisoned row cannot wedge the whole pass; a
// booking that was paid or cancelled between the listing and the
// transition is skipped by the reconciler's status guard.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
    cutoff := s.now().UTC().Add(-s.deadline)
    ids, err := s.store.ExpiredPending(ctx, cutoff, s.batch)
    if err != nil {
        return 0, err
    }
    expired := 0
    for _, id := range ids {
        out, err := s.rec.ApplyPaymentStatus(ctx, reconcile.Update{
            BookingID: id,
            Observed:  reconcile.ObservedDeadlineExpired,
            Source:    reconcile.SourceSweeper,
        })
        if err != nil {
            s.log.Error("expire booking failed", "booking_id", id, "err", err)
            continue
        }
        if out.Changed {
            expired++
            s.log.Info("booking expired", "booking_id", id, "reference", out.Booking.Reference)
        }
    }
    return expired, nil
}
