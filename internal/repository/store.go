package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/court-reservation/internal/model"
    "github.com/iliyamo/court-reservation/internal/service/reconcile"
    "github.com/iliyamo/court-reservation/internal/service/reservation"
)

// Store bundles the table repositories and runs transactional units of
// work for the domain services.  Every transaction runs at SERIALIZABLE
// so plain reads inside it take shared locks too.
type Store struct {
    db       *sql.DB
    venues   *VenueRepo
    slots    *SlotRepo
    bookings *BookingRepo
    payments *PaymentRepo
}

// NewStore returns a Store over the shared database handle.
func NewStore(db *sql.DB) *Store {
    return &Store{
        db:       db,
        venues:   NewVenueRepo(db),
        slots:    NewSlotRepo(db),
        bookings: NewBookingRepo(db),
        payments: NewPaymentRepo(db),
    }
}

// Venues returns the venue repository for plain reads.
func (s *Store) Venues() *VenueRepo { return s.venues }

// Slots returns the slot repository for plain reads.
func (s *Store) Slots() *SlotRepo { return s.slots }

// Bookings returns the booking repository for plain reads.
func (s *Store) Bookings() *BookingRepo { return s.bookings }

// Payments returns the payment repository.
func (s *Store) Payments() *PaymentRepo { return s.payments }

// inTx begins a SERIALIZABLE transaction, runs fn and commits, rolling
// back on any error or panic.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(tx); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// ReservationStore adapts the Store to the reservation service's
// transactional interface.
type ReservationStore struct{ *Store }

// NewReservationStore wraps the Store for the reservation orchestrator.
func NewReservationStore(s *Store) *ReservationStore { return &ReservationStore{Store: s} }

// WithTx runs fn inside one database transaction.
func (s *ReservationStore) WithTx(ctx context.Context, fn func(tx reservation.Tx) error) error {
    return s.inTx(ctx, func(tx *sql.Tx) error {
        return fn(&reservationTx{store: s.Store, tx: tx})
    })
}

// reservationTx is the per-transaction view handed to the orchestrator.
type reservationTx struct {
    store *Store
    tx    *sql.Tx
}

func (t *reservationTx) LockCourt(ctx context.Context, courtID uint64) (*model.Court, error) {
    return t.store.venues.LockCourtTx(ctx, t.tx, courtID)
}

func (t *reservationTx) VenueByID(ctx context.Context, venueID uint64) (*model.Venue, error) {
    return t.store.venues.VenueByIDTx(ctx, t.tx, venueID)
}

func (t *reservationTx) ActiveSlots(ctx context.Context, courtID uint64, date string) ([]model.Slot, error) {
    return t.store.slots.ActiveSlotsForUpdateTx(ctx, t.tx, courtID, date)
}

func (t *reservationTx) InsertBooking(ctx context.Context, b *model.Booking) error {
    return t.store.bookings.CreateTx(ctx, t.tx, b)
}

func (t *reservationTx) InsertSlots(ctx context.Context, slots []model.Slot) error {
    return t.store.slots.CreateBulkTx(ctx, t.tx, slots)
}

// ReconcileStore adapts the Store to the payment reconciler's
// transactional interface.
type ReconcileStore struct{ *Store }

// NewReconcileStore wraps the Store for the payment reconciler.
func NewReconcileStore(s *Store) *ReconcileStore { return &ReconcileStore{Store: s} }

// WithTx runs fn inside one database transaction.
func (s *ReconcileStore) WithTx(ctx context.Context, fn func(tx reconcile.Tx) error) error {
    return s.inTx(ctx, func(tx *sql.Tx) error {
        return fn(&reconcileTx{store: s.Store, tx: tx})
    })
}

// reconcileTx is the per-transaction view handed to the reconciler.
type reconcileTx struct {
    store *Store
    tx    *sql.Tx
}

func (t *reconcileTx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
    return t.store.bookings.GetForUpdateTx(ctx, t.tx, id)
}

// LockCourts takes the same court row locks the orchestrator takes, in
// the same ascending order, before the booking's slots are touched.
func (t *reconcileTx) LockCourts(ctx context.Context, bookingID uint64) error {
    ids, err := t.store.slots.CourtIDsByBookingTx(ctx, t.tx, bookingID)
    if err != nil {
        return err
    }
    for _, id := range ids {
        if _, err := t.store.venues.LockCourtTx(ctx, t.tx, id); err != nil {
            return err
        }
    }
    return nil
}

func (t *reconcileTx) SetBookingStatus(ctx context.Context, id uint64, status, paymentStatus string) error {
    return t.store.bookings.UpdateStatusTx(ctx, t.tx, id, status, paymentStatus)
}

func (t *reconcileTx) SetPaymentStatus(ctx context.Context, bookingID uint64, status string) error {
    return t.store.payments.UpdateStatusByBookingTx(ctx, t.tx, bookingID, status)
}

func (t *reconcileTx) AnnotateSession(ctx context.Context, bookingID uint64, sessionID, paymentIntentID string) error {
    return t.store.payments.AnnotateSessionTx(ctx, t.tx, bookingID, sessionID, paymentIntentID)
}

func (t *reconcileTx) ConfirmSlots(ctx context.Context, bookingID uint64) ([]model.Slot, error) {
    return t.store.slots.ConfirmByBookingTx(ctx, t.tx, bookingID)
}

func (t *reconcileTx) ReleaseSlots(ctx context.Context, bookingID uint64) ([]model.Slot, error) {
    return t.store.slots.DeleteByBookingTx(ctx, t.tx, bookingID)
}
