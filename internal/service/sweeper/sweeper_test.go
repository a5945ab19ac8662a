package sweeper

import (
    "context"
    "errors"
    "io"
    "log/slog"
    "testing"
    "time"

    "github.com/iliyamo/court-reservation/internal/model"
    "github.com/iliyamo/court-reservation/internal/service/reconcile"
)

type memStore struct {
    ids       []uint64
    gotCutoff time.Time
    gotLimit  int
    err       error
}

func (m *memStore) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
    m.gotCutoff = cutoff
    m.gotLimit = limit
    if m.err != nil {
        return nil, m.err
    }
    if len(m.ids) > limit {
        return m.ids[:limit], nil
    }
    return m.ids, nil
}

type memReconciler struct {
    applied []reconcile.Update
    outcome map[uint64]reconcile.Outcome
    errFor  map[uint64]error
}

func (m *memReconciler) ApplyPaymentStatus(ctx context.Context, u reconcile.Update) (reconcile.Outcome, error) {
    m.applied = append(m.applied, u)
    if err := m.errFor[u.BookingID]; err != nil {
        return reconcile.Outcome{}, err
    }
    return m.outcome[u.BookingID], nil
}

func TestSweepOnceExpiresPendingBookings(t *testing.T) {
    now := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
    store := &memStore{ids: []uint64{1, 2}}
    rec := &memReconciler{outcome: map[uint64]reconcile.Outcome{
        1: {Changed: true, Booking: model.Booking{ID: 1, Reference: "ref-1"}},
        2: {Changed: true, Booking: model.Booking{ID: 2, Reference: "ref-2"}},
    }}
    sw := New(store, rec, time.Minute, 15*time.Minute, 100, slog.New(slog.NewTextHandler(io.Discard, nil)))
    sw.now = func() time.Time { return now }

    expired, err := sw.SweepOnce(context.Background())
    if err != nil {
        t.Fatalf("SweepOnce: %v", err)
    }
    if expired != 2 {
        t.Errorf("expired = %d, want 2", expired)
    }
    if want := now.Add(-15 * time.Minute); !store.gotCutoff.Equal(want) {
        t.Errorf("cutoff = %v, want %v", store.gotCutoff, want)
    }
    if store.gotLimit != 100 {
        t.Errorf("limit = %d, want 100", store.gotLimit)
    }
    for _, u := range rec.applied {
        if u.Observed != reconcile.ObservedDeadlineExpired {
            t.Errorf("observed = %s, want deadline_expired", u.Observed)
        }
        if u.Source != reconcile.SourceSweeper {
            t.Errorf("source = %s, want sweeper", u.Source)
        }
    }
}

// TestSweepOnceSkipsAlreadyClosed covers the race where a booking pays
// or cancels between the listing and the transition: the reconciler
// reports no change and the sweep count excludes it.
func TestSweepOnceSkipsAlreadyClosed(t *testing.T) {
    store := &memStore{ids: []uint64{1, 2}}
    rec := &memReconciler{outcome: map[uint64]reconcile.Outcome{
        1: {Changed: true},
        2: {Changed: false}, // paid while the sweep was running
    }}
    sw := New(store, rec, 0, 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

    expired, err := sw.SweepOnce(context.Background())
    if err != nil {
        t.Fatalf("SweepOnce: %v", err)
    }
    if expired != 1 {
        t.Errorf("expired = %d, want 1", expired)
    }
}

// TestSweepOnceContinuesPastFailures verifies one poisoned booking does
// not stop the rest of the batch.
func TestSweepOnceContinuesPastFailures(t *testing.T) {
    store := &memStore{ids: []uint64{1, 2, 3}}
    rec := &memReconciler{
        outcome: map[uint64]reconcile.Outcome{
            1: {Changed: true},
            3: {Changed: true},
        },
        errFor: map[uint64]error{2: errors.New("deadlock")},
    }
    sw := New(store, rec, 0, 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

    expired, err := sw.SweepOnce(context.Background())
    if err != nil {
        t.Fatalf("SweepOnce: %v", err)
    }
    if expired != 2 {
        t.Errorf("expired = %d, want 2", expired)
    }
    if len(rec.applied) != 3 {
        t.Errorf("applied = %d, want 3", len(rec.applied))
    }
}

func TestSweepOnceListFailure(t *testing.T) {
    store := &memStore{err: errors.New("db down")}
    sw := New(store, &memReconciler{}, 0, 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

    if _, err := sw.SweepOnce(context.Background()); err == nil {
        t.Fatal("list failure swallowed")
    }
}

func TestRunStopsOnCancel(t *testing.T) {
    store := &memStore{}
    sw := New(store, &memReconciler{}, 5*time.Millisecond, time.Minute, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        sw.Run(ctx)
        close(done)
    }()
    time.Sleep(20 * time.Millisecond)
    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("Run did not stop after cancel")
    }
}
