package reservation

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/court-reservation/internal/model"
)

// ErrVenueNotFound and ErrCourtNotFound are returned by Store
// implementations when a referenced catalog id does not exist.  The
// orchestrator surfaces them as validation failures.
var (
    ErrVenueNotFound = errors.New("reservation: venue not found")
    ErrCourtNotFound = errors.New("reservation: court not found")
)

// RequestedWindow is one requested time window on one court.
type RequestedWindow struct {
    CourtID uint64
    Window  Window
}

// CreateRequest carries everything needed to create a reservation.
// The price is supplied as an input; pricing-rule computation happens
// upstream.
type CreateRequest struct {
    VenueID    uint64
    Date       string // "2006-01-02"
    Windows    []RequestedWindow
    Contact    model.ContactSnapshot
    TotalPrice int64
    Currency   string
}

// Result is a successfully created reservation with its slots.
type Result struct {
    Booking model.Booking
    Slots   []model.Slot
}

// Tx is the set of operations the orchestrator performs inside one
// serializable transaction.  Implementations must make LockCourt and
// ActiveSlots acquire row locks (SELECT ... FOR UPDATE) so that the
// court lock imposes a total order on concurrent reservation attempts
// for the same court.
type Tx interface {
    // LockCourt locks the court row and returns it, or ErrCourtNotFound.
    LockCourt(ctx context.Context, courtID uint64) (*model.Court, error)
    // VenueByID reads the venue for metadata snapshotting, or ErrVenueNotFound.
    VenueByID(ctx context.Context, venueID uint64) (*model.Venue, error)
    // ActiveSlots reads and locks every slot row occupying the court on
    // the given date.
    ActiveSlots(ctx context.Context, courtID uint64, date string) ([]model.Slot, error)
    // InsertBooking inserts the booking row and populates its ID.
    InsertBooking(ctx context.Context, b *model.Booking) error
    // InsertSlots inserts the slot rows pre-bound to their booking.
    InsertSlots(ctx context.Context, slots []model.Slot) error
}

// Store opens one transaction per attempt.  WithTx must run fn inside a
// transaction at the strictest isolation level available and commit
// when fn returns nil.
type Store interface {
    WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Invalidator drops advisory availability caches for a court/date after
// a successful commit.  A nil Invalidator disables invalidation.
type Invalidator interface {
    InvalidateAvailability(ctx context.Context, courtID uint64, date string)
}

// Service is the reservation transaction orchestrator.  It composes the
// lock store and the overlap checker into one atomic create-or-reject
// operation with bounded retry on transient conflicts.
type Service struct {
    store       Store
    cache       Invalidator
    maxAttempts int
    backoff     time.Duration
    sleep       func(ctx context.Context, d time.Duration) error
}

// New returns a Service with the given retry bound and initial backoff.
// Attempts below 1 and non-positive backoffs fall back to the defaults
// (3 attempts, 100ms).
func New(store Store, cache Invalidator, maxAttempts int, backoff time.Duration) *Service {
    if maxAttempts < 1 {
        maxAttempts = 3
    }
    if backoff <= 0 {
        backoff = 100 * time.Millisecond
    }
    return &Service{
        store:       store,
        cache:       cache,
        maxAttempts: maxAttempts,
        backoff:     backoff,
        sleep:       sleepCtx,
    }
}

// Create creates a booking with one slot per requested window, or
// rejects the request.  Outcomes:
//
//   - *Result, nil             – booking created and committed.
//   - nil, *ValidationError    – malformed input, nothing written.
//   - nil, *ConflictError      – an overlapping active slot exists.
//   - nil, ErrTryAgain         – transient failures exhausted the retry
//     budget; resubmitting may succeed.
//
// Each attempt reruns the whole transaction from the first court lock,
// because a serialization failure invalidates everything read so far.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
    if err := validate(req); err != nil {
        return nil, err
    }

    var lastErr error
    for attempt := 0; attempt < s.maxAttempts; attempt++ {
        if attempt > 0 {
            if err := s.sleep(ctx, s.backoff<<(attempt-1)); err != nil {
                return nil, err
            }
        }
        res, err := s.attempt(ctx, req)
        if err == nil {
            s.invalidate(ctx, req)
            return res, nil
        }
        var conflict *ConflictError
        if errors.As(err, &conflict) {
            return nil, conflict
        }
        if errors.Is(err, ErrVenueNotFound) || errors.Is(err, ErrCourtNotFound) {
            return nil, &ValidationError{Msg: err.Error()}
        }
        if duplicateKey(err) {
            // The unique key fired below the transactional check; some
            // concurrent writer owns one of the requested windows.  The
            // exact row is unknown here, so reference the first one.
            w := req.Windows[0]
            return nil, &ConflictError{CourtID: w.CourtID, Window: w.Window}
        }
        if retryableTx(err) {
            lastErr = err
            continue
        }
        return nil, err
    }
    return nil, fmt.Errorf("%w: %v", ErrTryAgain, lastErr)
}

// attempt runs one full create transaction: lock courts in id order,
// lock and check existing slots per requested window, then insert the
// booking and its slots in the same transaction so a competing
// transaction can never observe a half-reserved state.
func (s *Service) attempt(ctx context.Context, req CreateRequest) (*Result, error) {
    var result Result
    err := s.store.WithTx(ctx, func(tx Tx) error {
        courtIDs := distinctCourtIDs(req.Windows)
        courts := make(map[uint64]*model.Court, len(courtIDs))
        // Sorted lock order prevents lock-acquisition deadlock between
        // two requests touching the same courts in different orders.
        for _, id := range courtIDs {
            court, err := tx.LockCourt(ctx, id)
            if err != nil {
                return err
            }
            if court.VenueID != req.VenueID {
                return &ValidationError{Msg: fmt.Sprintf("court %d does not belong to venue %d", id, req.VenueID)}
            }
            courts[id] = court
        }

        venue, err := tx.VenueByID(ctx, req.VenueID)
        if err != nil {
            return err
        }

        for _, id := range courtIDs {
            existing, err := tx.ActiveSlots(ctx, id, req.Date)
            if err != nil {
                return err
            }
            windows, err := slotWindows(existing)
            if err != nil {
                return err
            }
            for _, rw := range req.Windows {
                if rw.CourtID != id {
                    continue
                }
                if hit, ok := FirstConflict(rw.Window, windows); ok {
                    return &ConflictError{CourtID: id, Window: hit}
                }
            }
        }

        booking := model.Booking{
            Reference:     uuid.NewString(),
            VenueID:       req.VenueID,
            Status:        model.StatusPendingPayment,
            PaymentStatus: model.PaymentPending,
            TotalPrice:    req.TotalPrice,
            Currency:      req.Currency,
            Contact:       req.Contact,
            Venue:         snapshot(venue, courts, courtIDs),
            Date:          req.Date,
        }
        if err := tx.InsertBooking(ctx, &booking); err != nil {
            return err
        }

        slots := make([]model.Slot, 0, len(req.Windows))
        for _, rw := range req.Windows {
            id := booking.ID
            slots = append(slots, model.Slot{
                CourtID:   rw.CourtID,
                Date:      req.Date,
                StartTime: clock(rw.Window.Start),
                EndTime:   clock(rw.Window.End),
                Status:    model.SlotBooked,
                BookingID: &id,
            })
        }
        if err := tx.InsertSlots(ctx, slots); err != nil {
            return err
        }

        result = Result{Booking: booking, Slots: slots}
        return nil
    })
    if err != nil {
        return nil, err
    }
    return &result, nil
}

func (s *Service) invalidate(ctx context.Context, req CreateRequest) {
    if s.cache == nil {
        return
    }
    for _, id := range distinctCourtIDs(req.Windows) {
        s.cache.InvalidateAvailability(ctx, id, req.Date)
    }
}

// validate rejects malformed input before any transaction is opened.
func validate(req CreateRequest) error {
    if req.VenueID == 0 {
        return &ValidationError{Msg: "venue id is required"}
    }
    if _, err := time.Parse("2006-01-02", req.Date); err != nil {
        return &ValidationError{Msg: fmt.Sprintf("invalid date %q", req.Date)}
    }
    if len(req.Windows) == 0 {
        return &ValidationError{Msg: "at least one window is required"}
    }
    for _, rw := range req.Windows {
        if rw.CourtID == 0 {
            return &ValidationError{Msg: "court id is required on every window"}
        }
        if rw.Window.End <= rw.Window.Start {
            return &ValidationError{Msg: fmt.Sprintf("invalid window %s", rw.Window)}
        }
    }
    // Reject windows that overlap each other within the same request;
    // they would otherwise pass the DB check and violate the invariant.
    for i, a := range req.Windows {
        for _, b := range req.Windows[i+1:] {
            if a.CourtID == b.CourtID && a.Window.Overlaps(b.Window) {
                return &ValidationError{Msg: fmt.Sprintf("requested windows %s and %s overlap", a.Window, b.Window)}
            }
        }
    }
    if req.Contact.Name == "" {
        return &ValidationError{Msg: "customer name is required"}
    }
    if req.Contact.Email == "" && req.Contact.Phone == "" {
        return &ValidationError{Msg: "customer email or phone is required"}
    }
    if req.TotalPrice <= 0 {
        return &ValidationError{Msg: "total price must be positive"}
    }
    if req.Currency == "" {
        return &ValidationError{Msg: "currency is required"}
    }
    return nil
}

func distinctCourtIDs(windows []RequestedWindow) []uint64 {
    seen := make(map[uint64]struct{}, len(windows))
    ids := make([]uint64, 0, len(windows))
    for _, rw := range windows {
        if _, ok := seen[rw.CourtID]; !ok {
            seen[rw.CourtID] = struct{}{}
            ids = append(ids, rw.CourtID)
        }
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    return ids
}

// slotWindows converts slot rows to pure windows, sorted by start time
// for deterministic conflict messages.
func slotWindows(slots []model.Slot) ([]Window, error) {
    windows := make([]Window, 0, len(slots))
    for _, s := range slots {
        w, err := ParseWindow(s.StartTime, s.EndTime)
        if err != nil {
            return nil, fmt.Errorf("slot %d: %w", s.ID, err)
        }
        windows = append(windows, w)
    }
    sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
    return windows, nil
}

func snapshot(venue *model.Venue, courts map[uint64]*model.Court, ids []uint64) model.VenueSnapshot {
    names := make([]string, 0, len(ids))
    for _, id := range ids {
        names = append(names, courts[id].Name)
    }
    return model.VenueSnapshot{VenueName: venue.Name, CourtNames: names}
}

func clock(minutes int) string {
    return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}
