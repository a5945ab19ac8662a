package reconcile

import (
    "context"
    "errors"
    "io"
    "log/slog"
    "testing"

    "github.com/iliyamo/court-reservation/internal/model"
)

// memStore is an in-memory Store tracking bookings, payments and slots.
type memStore struct {
    bookings map[uint64]*model.Booking
    payments map[uint64]*memPayment
    slots    map[uint64][]model.Slot // by booking id
    lockedCourts int
}

type memPayment struct {
    status    string
    sessionID string
    intentID  string
}

func newMemStore() *memStore {
    id := uint64(42)
    return &memStore{
        bookings: map[uint64]*model.Booking{
            42: {
                ID:            42,
                Reference:     "ref-42",
                VenueID:       1,
                Status:        model.StatusPendingPayment,
                PaymentStatus: model.PaymentPending,
                TotalPrice:    150000,
                Currency:      "IDR",
                Date:          "2026-09-12",
                Venue:         model.VenueSnapshot{VenueName: "Arena One", CourtNames: []string{"Court A"}},
                Contact:       model.ContactSnapshot{Name: "Dewi"},
            },
        },
        payments: map[uint64]*memPayment{
            42: {status: model.PaymentRecordPending},
        },
        slots: map[uint64][]model.Slot{
            42: {
                {ID: 1, CourtID: 10, Date: "2026-09-12", StartTime: "09:00", EndTime: "10:00", Status: model.SlotBooked, BookingID: &id},
            },
        },
    }
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
    return fn(&memTx{store: m})
}

type memTx struct{ store *memStore }

func (t *memTx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
    b, ok := t.store.bookings[id]
    if !ok {
        return nil, ErrBookingNotFound
    }
    copy := *b
    return &copy, nil
}

func (t *memTx) LockCourts(ctx context.Context, bookingID uint64) error {
    t.store.lockedCourts++
    return nil
}

func (t *memTx) SetBookingStatus(ctx context.Context, id uint64, status, paymentStatus string) error {
    b := t.store.bookings[id]
    b.Status = status
    b.PaymentStatus = paymentStatus
    return nil
}

func (t *memTx) SetPaymentStatus(ctx context.Context, bookingID uint64, status string) error {
    t.store.payments[bookingID].status = status
    return nil
}

func (t *memTx) AnnotateSession(ctx context.Context, bookingID uint64, sessionID, paymentIntentID string) error {
    p := t.store.payments[bookingID]
    if sessionID != "" {
        p.sessionID = sessionID
    }
    if paymentIntentID != "" {
        p.intentID = paymentIntentID
    }
    return nil
}

func (t *memTx) ConfirmSlots(ctx context.Context, bookingID uint64) ([]model.Slot, error) {
    slots := t.store.slots[bookingID]
    for i := range slots {
        slots[i].Status = model.SlotConfirmed
    }
    t.store.slots[bookingID] = slots
    return slots, nil
}

func (t *memTx) ReleaseSlots(ctx context.Context, bookingID uint64) ([]model.Slot, error) {
    freed := t.store.slots[bookingID]
    delete(t.store.slots, bookingID)
    return freed, nil
}

// memNotifier records notifications.
type memNotifier struct {
    confirmed []uint64
    cancelled []uint64
    reasons   []string
}

func (n *memNotifier) BookingConfirmed(ctx context.Context, b *model.Booking, slots []model.Slot) {
    n.confirmed = append(n.confirmed, b.ID)
}

func (n *memNotifier) BookingCancelled(ctx context.Context, b *model.Booking, slots []model.Slot, reason string) {
    n.cancelled = append(n.cancelled, b.ID)
    n.reasons = append(n.reasons, reason)
}

// memInvalidator records cache drops.
type memInvalidator struct{ dropped int }

func (m *memInvalidator) InvalidateAvailability(ctx context.Context, courtID uint64, date string) {
    m.dropped++
}

func fixture() (*Service, *memStore, *memNotifier, *memInvalidator) {
    store := newMemStore()
    notifier := &memNotifier{}
    inv := &memInvalidator{}
    svc := New(store, notifier, inv, slog.New(slog.NewTextHandler(io.Discard, nil)))
    return svc, store, notifier, inv
}

func TestCapturedConfirmsBooking(t *testing.T) {
    svc, store, notifier, inv := fixture()

    out, err := svc.ApplyPaymentStatus(context.Background(), Update{
        BookingID: 42,
        Observed:  ObservedCaptured,
        SessionID: "sess_1",
        Source:    SourceWebhook,
    })
    if err != nil {
        t.Fatalf("ApplyPaymentStatus: %v", err)
    }
    if !out.Changed {
        t.Error("Changed = false, want true")
    }
    b := store.bookings[42]
    if b.Status != model.StatusConfirmed || b.PaymentStatus != model.PaymentPaid {
        t.Errorf("booking = %s/%s, want CONFIRMED/PAID", b.Status, b.PaymentStatus)
    }
    if store.payments[42].status != model.PaymentRecordSucceeded {
        t.Errorf("payment record = %s, want succeeded", store.payments[42].status)
    }
    if store.payments[42].sessionID != "sess_1" {
        t.Errorf("session annotation = %q", store.payments[42].sessionID)
    }
    if store.slots[42][0].Status != model.SlotConfirmed {
        t.Errorf("slot status = %s, want %s", store.slots[42][0].Status, model.SlotConfirmed)
    }
    if len(notifier.confirmed) != 1 || notifier.confirmed[0] != 42 {
        t.Errorf("confirmations = %v, want [42]", notifier.confirmed)
    }
    if store.lockedCourts != 1 {
        t.Errorf("court locks = %d, want 1", store.lockedCourts)
    }
    if inv.dropped != 1 {
        t.Errorf("cache drops = %d, want 1", inv.dropped)
    }
}

// TestCapturedTwiceIsIdempotent delivers the same capture twice; the
// second must be a no-op with no second notification.
func TestCapturedTwiceIsIdempotent(t *testing.T) {
    svc, store, notifier, _ := fixture()
    ctx := context.Background()
    u := Update{BookingID: 42, Observed: ObservedCaptured, Source: SourceWebhook}

    if _, err := svc.ApplyPaymentStatus(ctx, u); err != nil {
        t.Fatalf("first apply: %v", err)
    }
    out, err := svc.ApplyPaymentStatus(ctx, u)
    if err != nil {
        t.Fatalf("second apply: %v", err)
    }
    if out.Changed {
        t.Error("second delivery reported a change")
    }
    if out.Anomaly {
        t.Error("duplicate capture flagged as anomaly")
    }
    if len(notifier.confirmed) != 1 {
        t.Errorf("confirmations = %d, want 1", len(notifier.confirmed))
    }
    if store.bookings[42].Status != model.StatusConfirmed {
        t.Errorf("status drifted to %s", store.bookings[42].Status)
    }
}

func TestSessionExpiredReleasesSlots(t *testing.T) {
    svc, store, notifier, _ := fixture()

    out, err := svc.ApplyPaymentStatus(context.Background(), Update{
        BookingID: 42,
        Observed:  ObservedSessionExpired,
        Source:    SourceWebhook,
    })
    if err != nil {
        t.Fatalf("ApplyPaymentStatus: %v", err)
    }
    if !out.Changed {
        t.Error("Changed = false, want true")
    }
    b := store.bookings[42]
    if b.Status != model.StatusCancelled || b.PaymentStatus != model.PaymentFailed {
        t.Errorf("booking = %s/%s, want CANCELLED/FAILED", b.Status, b.PaymentStatus)
    }
    if store.payments[42].status != model.PaymentRecordExpired {
        t.Errorf("payment record = %s, want expired", store.payments[42].status)
    }
    if _, ok := store.slots[42]; ok {
        t.Error("slots not released")
    }
    if len(notifier.cancelled) != 1 {
        t.Fatalf("cancellations = %d, want 1", len(notifier.cancelled))
    }
    if notifier.reasons[0] != "payment session expired" {
        t.Errorf("reason = %q", notifier.reasons[0])
    }
}

func TestManualCancelReleasesSlots(t *testing.T) {
    svc, store, notifier, _ := fixture()

    out, err := svc.ApplyPaymentStatus(context.Background(), Update{
        BookingID: 42,
        Observed:  ObservedFailed,
        Source:    SourceManual,
    })
    if err != nil {
        t.Fatalf("ApplyPaymentStatus: %v", err)
    }
    if !out.Changed {
        t.Error("Changed = false, want true")
    }
    b := store.bookings[42]
    if b.Status != model.StatusCancelled || b.PaymentStatus != model.PaymentFailed {
        t.Errorf("booking = %s/%s, want CANCELLED/FAILED", b.Status, b.PaymentStatus)
    }
    if store.payments[42].status != model.PaymentRecordFailed {
        t.Errorf("payment record = %s, want failed", store.payments[42].status)
    }
    if _, ok := store.slots[42]; ok {
        t.Error("slots not released")
    }
    if len(notifier.cancelled) != 1 || notifier.reasons[0] != "payment failed" {
        t.Errorf("cancellation notify = %d %v", len(notifier.cancelled), notifier.reasons)
    }
}

func TestDeadlineExpiredMarksExpired(t *testing.T) {
    svc, store, _, _ := fixture()

    if _, err := svc.ApplyPaymentStatus(context.Background(), Update{
        BookingID: 42,
        Observed:  ObservedDeadlineExpired,
        Source:    SourceSweeper,
    }); err != nil {
        t.Fatalf("ApplyPaymentStatus: %v", err)
    }
    b := store.bookings[42]
    if b.Status != model.StatusExpired || b.PaymentStatus != model.PaymentExpired {
        t.Errorf("booking = %s/%s, want EXPIRED/EXPIRED", b.Status, b.PaymentStatus)
    }
    if _, ok := store.slots[42]; ok {
        t.Error("slots not released")
    }
}

func TestCompletedUnpaidOnlyAnnotates(t *testing.T) {
    svc, store, notifier, _ := fixture()

    out, err := svc.ApplyPaymentStatus(context.Background(), Update{
        BookingID:       42,
        Observed:        ObservedCompletedUnpaid,
        SessionID:       "sess_9",
        PaymentIntentID: "pi_9",
        Source:          SourceWebhook,
    })
    if err != nil {
        t.Fatalf("ApplyPaymentStatus: %v", err)
    }
    if out.Changed {
        t.Error("annotation reported as a state change")
    }
    if store.bookings[42].Status != model.StatusPendingPayment {
        t.Errorf("status = %s, want still pending", store.bookings[42].Status)
    }
    if store.payments[42].sessionID != "sess_9" || store.payments[42].intentID != "pi_9" {
        t.Errorf("annotation = %q/%q", store.payments[42].sessionID, store.payments[42].intentID)
    }
    if len(notifier.confirmed)+len(notifier.cancelled) != 0 {
        t.Error("notification fired without a state change")
    }
}

// TestLateCaptureOnExpiredBookingIsAnomaly verifies that a capture
// arriving after the sweeper expired the booking does not resurrect it.
func TestLateCaptureOnExpiredBookingIsAnomaly(t *testing.T) {
    svc, store, notifier, _ := fixture()
    ctx := context.Background()

    if _, err := svc.ApplyPaymentStatus(ctx, Update{BookingID: 42, Observed: ObservedDeadlineExpired, Source: SourceSweeper}); err != nil {
        t.Fatalf("expire: %v", err)
    }
    out, err := svc.ApplyPaymentStatus(ctx, Update{BookingID: 42, Observed: ObservedCaptured, Source: SourceWebhook})
    if err != nil {
        t.Fatalf("late capture: %v", err)
    }
    if !out.Anomaly {
        t.Error("late capture not flagged as anomaly")
    }
    if out.Changed {
        t.Error("late capture changed state")
    }
    if store.bookings[42].Status != model.StatusExpired {
        t.Errorf("status = %s, want still EXPIRED", store.bookings[42].Status)
    }
    if len(notifier.confirmed) != 0 {
        t.Error("late capture fired a confirmation")
    }
}

func TestUnknownBooking(t *testing.T) {
    svc, _, _, _ := fixture()

    _, err := svc.ApplyPaymentStatus(context.Background(), Update{BookingID: 999, Observed: ObservedCaptured})
    if !errors.Is(err, ErrBookingNotFound) {
        t.Fatalf("err = %v, want ErrBookingNotFound", err)
    }
}

func TestUnknownObservedState(t *testing.T) {
    svc, _, _, _ := fixture()

    if _, err := svc.ApplyPaymentStatus(context.Background(), Update{BookingID: 42, Observed: "garbage"}); err == nil {
        t.Fatal("unknown observed state accepted")
    }
}
