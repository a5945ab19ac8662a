package reservation

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/court-reservation/internal/model"
)

// memStore is an in-memory Store.  A mutex serializes transactions the
// way SERIALIZABLE row locks would, and failures can be injected ahead
// of the next transactions to exercise the retry policy.
type memStore struct {
    mu       sync.Mutex
    venues   map[uint64]model.Venue
    courts   map[uint64]model.Court
    slots    []model.Slot
    nextID   uint64
    failures []error // consumed one per WithTx call before fn runs
    txCount  int
}

func newMemStore() *memStore {
    return &memStore{
        venues: map[uint64]model.Venue{
            1: {ID: 1, Name: "Arena One"},
        },
        courts: map[uint64]model.Court{
            10: {ID: 10, VenueID: 1, Name: "Court A"},
            11: {ID: 11, VenueID: 1, Name: "Court B"},
            20: {ID: 20, VenueID: 2, Name: "Elsewhere"},
        },
    }
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.txCount++
    if len(m.failures) > 0 {
        err := m.failures[0]
        m.failures = m.failures[1:]
        return err
    }
    tx := &memTx{store: m}
    if err := fn(tx); err != nil {
        return err
    }
    // Commit: the unique slot key fires here for rows staged past the
    // transactional check.
    for _, s := range tx.staged {
        for _, existing := range m.slots {
            if existing.CourtID == s.CourtID && existing.Date == s.Date &&
                existing.StartTime == s.StartTime && existing.EndTime == s.EndTime {
                return &mysql.MySQLError{Number: 1062, Message: "duplicate entry"}
            }
        }
    }
    m.slots = append(m.slots, tx.staged...)
    return nil
}

type memTx struct {
    store  *memStore
    staged []model.Slot
}

func (t *memTx) LockCourt(ctx context.Context, courtID uint64) (*model.Court, error) {
    c, ok := t.store.courts[courtID]
    if !ok {
        return nil, ErrCourtNotFound
    }
    return &c, nil
}

func (t *memTx) VenueByID(ctx context.Context, venueID uint64) (*model.Venue, error) {
    v, ok := t.store.venues[venueID]
    if !ok {
        return nil, ErrVenueNotFound
    }
    return &v, nil
}

func (t *memTx) ActiveSlots(ctx context.Context, courtID uint64, date string) ([]model.Slot, error) {
    var out []model.Slot
    for _, s := range t.store.slots {
        if s.CourtID == courtID && s.Date == date {
            out = append(out, s)
        }
    }
    return out, nil
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
    t.store.nextID++
    b.ID = t.store.nextID
    return nil
}

func (t *memTx) InsertSlots(ctx context.Context, slots []model.Slot) error {
    t.staged = append(t.staged, slots...)
    return nil
}

func newTestService(store Store) *Service {
    s := New(store, nil, 3, time.Millisecond)
    s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
    return s
}

func validRequest() CreateRequest {
    return CreateRequest{
        VenueID: 1,
        Date:    "2026-09-12",
        Windows: []RequestedWindow{
            {CourtID: 10, Window: Window{Start: 9 * 60, End: 10 * 60}},
        },
        Contact:    model.ContactSnapshot{Name: "Dewi", Email: "dewi@example.com"},
        TotalPrice: 150000,
        Currency:   "IDR",
    }
}

func TestCreateSuccess(t *testing.T) {
    store := newMemStore()
    svc := newTestService(store)

    res, err := svc.Create(context.Background(), validRequest())
    if err != nil {
        t.Fatalf("Create: %v", err)
    }
    if res.Booking.ID == 0 {
        t.Error("booking id not assigned")
    }
    if res.Booking.Reference == "" {
        t.Error("booking reference empty")
    }
    if res.Booking.Status != model.StatusPendingPayment {
        t.Errorf("status = %s, want %s", res.Booking.Status, model.StatusPendingPayment)
    }
    if res.Booking.PaymentStatus != model.PaymentPending {
        t.Errorf("payment status = %s, want %s", res.Booking.PaymentStatus, model.PaymentPending)
    }
    if res.Booking.Venue.VenueName != "Arena One" {
        t.Errorf("venue snapshot = %q", res.Booking.Venue.VenueName)
    }
    if len(res.Slots) != 1 {
        t.Fatalf("slots = %d, want 1", len(res.Slots))
    }
    if res.Slots[0].StartTime != "09:00" || res.Slots[0].EndTime != "10:00" {
        t.Errorf("slot window = %s-%s", res.Slots[0].StartTime, res.Slots[0].EndTime)
    }
    if res.Slots[0].BookingID == nil || *res.Slots[0].BookingID != res.Booking.ID {
        t.Error("slot not bound to booking")
    }
    if len(store.slots) != 1 {
        t.Errorf("committed slots = %d, want 1", len(store.slots))
    }
}

func TestCreateMultiCourt(t *testing.T) {
    store := newMemStore()
    svc := newTestService(store)

    req := validRequest()
    req.Windows = []RequestedWindow{
        {CourtID: 11, Window: Window{Start: 9 * 60, End: 10 * 60}},
        {CourtID: 10, Window: Window{Start: 9 * 60, End: 10 * 60}},
    }
    res, err := svc.Create(context.Background(), req)
    if err != nil {
        t.Fatalf("Create: %v", err)
    }
    if len(res.Slots) != 2 {
        t.Fatalf("slots = %d, want 2", len(res.Slots))
    }
    // Court names snapshot follows ascending court id order.
    want := []string{"Court A", "Court B"}
    for i, name := range res.Booking.Venue.CourtNames {
        if name != want[i] {
            t.Errorf("court snapshot[%d] = %q, want %q", i, name, want[i])
        }
    }
}

func TestCreateConflict(t *testing.T) {
    store := newMemStore()
    svc := newTestService(store)

    if _, err := svc.Create(context.Background(), validRequest()); err != nil {
        t.Fatalf("first Create: %v", err)
    }

    req := validRequest()
    req.Windows[0].Window = Window{Start: 9*60 + 30, End: 10*60 + 30}
    req.Contact = model.ContactSnapshot{Name: "Budi", Email: "budi@example.com"}

    _, err := svc.Create(context.Background(), req)
    var conflict *ConflictError
    if !errors.As(err, &conflict) {
        t.Fatalf("err = %v, want ConflictError", err)
    }
    if conflict.CourtID != 10 {
        t.Errorf("conflict court = %d, want 10", conflict.CourtID)
    }
    if got := conflict.Window.String(); got != "09:00-10:00" {
        t.Errorf("conflict window = %s, want 09:00-10:00", got)
    }
    if len(store.slots) != 1 {
        t.Errorf("committed slots = %d, want 1", len(store.slots))
    }
}

func TestCreateBackToBackAllowed(t *testing.T) {
    store := newMemStore()
    svc := newTestService(store)

    if _, err := svc.Create(context.Background(), validRequest()); err != nil {
        t.Fatalf("first Create: %v", err)
    }

    req := validRequest()
    req.Windows[0].Window = Window{Start: 10 * 60, End: 11 * 60}
    if _, err := svc.Create(context.Background(), req); err != nil {
        t.Fatalf("back-to-back Create: %v", err)
    }
}

func TestCreateRetriesTransientFailures(t *testing.T) {
    store := newMemStore()
    store.failures = []error{
        &mysql.MySQLError{Number: 1213, Message: "deadlock found"},
        &mysql.MySQLError{Number: 1205, Message: "lock wait timeout"},
    }
    svc := newTestService(store)

    if _, err := svc.Create(context.Background(), validRequest()); err != nil {
        t.Fatalf("Create after transient failures: %v", err)
    }
    if store.txCount != 3 {
        t.Errorf("transactions = %d, want 3", store.txCount)
    }
}

func TestCreateExhaustsRetryBudget(t *testing.T) {
    store := newMemStore()
    store.failures = []error{
        &mysql.MySQLError{Number: 1213},
        &mysql.MySQLError{Number: 1213},
        &mysql.MySQLError{Number: 1213},
    }
    svc := newTestService(store)

    _, err := svc.Create(context.Background(), validRequest())
    if !errors.Is(err, ErrTryAgain) {
        t.Fatalf("err = %v, want ErrTryAgain", err)
    }
}

func TestCreateNonRetryableFailure(t *testing.T) {
    store := newMemStore()
    boom := errors.New("connection reset")
    store.failures = []error{boom}
    svc := newTestService(store)

    _, err := svc.Create(context.Background(), validRequest())
    if !errors.Is(err, boom) {
        t.Fatalf("err = %v, want %v", err, boom)
    }
    if store.txCount != 1 {
        t.Errorf("transactions = %d, want 1", store.txCount)
    }
}

func TestCreateDuplicateKeyMapsToConflict(t *testing.T) {
    store := newMemStore()
    // The staged row passes the transactional check but the unique key
    // fires at commit, as if a concurrent writer slipped in between.
    store.slots = append(store.slots, model.Slot{
        CourtID: 10, Date: "2026-09-12", StartTime: "09:00", EndTime: "10:00",
        Status: model.SlotBooked,
    })
    svc := newTestService(&raceStore{memStore: store})

    _, err := svc.Create(context.Background(), validRequest())
    var conflict *ConflictError
    if !errors.As(err, &conflict) {
        t.Fatalf("err = %v, want ConflictError", err)
    }
}

// raceStore hides existing slots from the transactional check so the
// commit-time unique key is the only guard left.
type raceStore struct{ *memStore }

func (r *raceStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    tx := &blindTx{memTx: memTx{store: r.memStore}}
    if err := fn(tx); err != nil {
        return err
    }
    for _, s := range tx.staged {
        for _, existing := range r.slots {
            if existing.CourtID == s.CourtID && existing.Date == s.Date &&
                existing.StartTime == s.StartTime && existing.EndTime == s.EndTime {
                return &mysql.MySQLError{Number: 1062, Message: "duplicate entry"}
            }
        }
    }
    r.slots = append(r.slots, tx.staged...)
    return nil
}

type blindTx struct{ memTx }

func (t *blindTx) ActiveSlots(ctx context.Context, courtID uint64, date string) ([]model.Slot, error) {
    return nil, nil
}

func TestCreateValidation(t *testing.T) {
    svc := newTestService(newMemStore())
    ctx := context.Background()

    cases := []struct {
        name   string
        mutate func(*CreateRequest)
    }{
        {"missing venue", func(r *CreateRequest) { r.VenueID = 0 }},
        {"bad date", func(r *CreateRequest) { r.Date = "12-09-2026" }},
        {"no windows", func(r *CreateRequest) { r.Windows = nil }},
        {"zero court", func(r *CreateRequest) { r.Windows[0].CourtID = 0 }},
        {"reversed window", func(r *CreateRequest) { r.Windows[0].Window = Window{Start: 600, End: 540} }},
        {"intra-request overlap", func(r *CreateRequest) {
            r.Windows = append(r.Windows, RequestedWindow{CourtID: 10, Window: Window{Start: 9*60 + 30, End: 11 * 60}})
        }},
        {"no name", func(r *CreateRequest) { r.Contact.Name = "" }},
        {"no email or phone", func(r *CreateRequest) { r.Contact.Email = ""; r.Contact.Phone = "" }},
        {"zero price", func(r *CreateRequest) { r.TotalPrice = 0 }},
        {"no currency", func(r *CreateRequest) { r.Currency = "" }},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := validRequest()
            tc.mutate(&req)
            _, err := svc.Create(ctx, req)
            var verr *ValidationError
            if !errors.As(err, &verr) {
                t.Errorf("err = %v, want ValidationError", err)
            }
        })
    }
}

func TestCreateForeignCourtRejected(t *testing.T) {
    svc := newTestService(newMemStore())
    req := validRequest()
    req.Windows[0].CourtID = 20 // belongs to venue 2

    _, err := svc.Create(context.Background(), req)
    var verr *ValidationError
    if !errors.As(err, &verr) {
        t.Fatalf("err = %v, want ValidationError", err)
    }
}

// TestConcurrentCreateAtMostOneWins races two identical requests; the
// serialized store guarantees exactly one booking and one conflict.
func TestConcurrentCreateAtMostOneWins(t *testing.T) {
    store := newMemStore()
    svc := newTestService(store)

    var wg sync.WaitGroup
    errs := make([]error, 2)
    for i := 0; i < 2; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, errs[i] = svc.Create(context.Background(), validRequest())
        }(i)
    }
    wg.Wait()

    var successes, conflicts int
    for _, err := range errs {
        var conflict *ConflictError
        switch {
        case err == nil:
            successes++
        case errors.As(err, &conflict):
            conflicts++
        default:
            t.Errorf("unexpected error: %v", err)
        }
    }
    if successes != 1 || conflicts != 1 {
        t.Errorf("successes=%d conflicts=%d, want exactly one of each", successes, conflicts)
    }
    if len(store.slots) != 1 {
        t.Errorf("committed slots = %d, want 1", len(store.slots))
    }
}
