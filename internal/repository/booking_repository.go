package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/court-reservation/internal/model"
    "github.com/iliyamo/court-reservation/internal/service/reconcile"
)

// BookingRepo provides CRUD operations for bookings.  Bookings are the
// aggregate root for slots and the payment record.  They are never
// hard-deleted; lifecycle ends in a terminal status so cancelled and
// expired bookings remain for audit.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, venue_id, status, payment_status, total_price, currency,
       customer_name, customer_email, customer_phone,
       venue_name, court_names, DATE_FORMAT(booked_date, '%Y-%m-%d'), created_at, updated_at`

// scanBooking reads one bookingColumns row from any row scanner.
func scanBooking(row interface {
    Scan(dest ...interface{}) error
}) (*model.Booking, error) {
    var b model.Booking
    var courtNames string
    err := row.Scan(
        &b.ID, &b.Reference, &b.VenueID, &b.Status, &b.PaymentStatus, &b.TotalPrice, &b.Currency,
        &b.Contact.Name, &b.Contact.Email, &b.Contact.Phone,
        &b.Venue.VenueName, &courtNames, &b.Date, &b.CreatedAt, &b.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if courtNames != "" {
        b.Venue.CourtNames = strings.Split(courtNames, ", ")
    }
    return &b, nil
}

// CreateTx inserts a new booking within the caller's transaction,
// populates the generated ID and reads back DB-default fields
// (timestamps).  The caller must commit or roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `INSERT INTO bookings
        (reference, venue_id, status, payment_status, total_price, currency,
         customer_name, customer_email, customer_phone, venue_name, court_names, booked_date)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        b.Reference, b.VenueID, b.Status, b.PaymentStatus, b.TotalPrice, b.Currency,
        b.Contact.Name, b.Contact.Email, b.Contact.Phone,
        b.Venue.VenueName, strings.Join(b.Venue.CourtNames, ", "), b.Date,
    )
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    created, err := scanBooking(tx.QueryRowContext(ctx, sel, b.ID))
    if err != nil {
        return err
    }
    *b = *created
    return nil
}

// GetByID returns a booking by id, or reconcile.ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reconcile.ErrBookingNotFound
    }
    if err != nil {
        return nil, err
    }
    return b, nil
}

// GetForUpdateTx locks and returns a booking row inside the caller's
// transaction.  The row lock is the serialization point for concurrent
// reconciliations of the same booking.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
    b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reconcile.ErrBookingNotFound
    }
    if err != nil {
        return nil, err
    }
    return b, nil
}

// UpdateStatusTx sets both status axes of a booking.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status, paymentStatus string) error {
    const q = `UPDATE bookings SET status = ?, payment_status = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, status, paymentStatus, id)
    return err
}

// RecentByVenue returns bookings for a venue created at or after the
// given instant, newest first, excluding cancelled and expired ones.
// Feeds the duplicate submission detector.
func (r *BookingRepo) RecentByVenue(ctx context.Context, venueID uint64, since time.Time) ([]model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings
          WHERE venue_id = ? AND created_at >= ? AND status NOT IN (?, ?)
          ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, venueID,
        since.UTC().Format("2006-01-02 15:04:05"), model.StatusCancelled, model.StatusExpired)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ExpiredPending returns ids of bookings still awaiting payment that
// were created before the cutoff, oldest first.  Feeds the expiry
// sweeper; the actual transition happens per booking under the row
// lock, so a booking paid between this listing and the transition is
// left alone.
func (r *BookingRepo) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
    const q = `SELECT id FROM bookings
               WHERE status = ? AND payment_status = ? AND created_at < ?
               ORDER BY created_at ASC LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q,
        model.StatusPendingPayment, model.PaymentPending,
        cutoff.UTC().Format("2006-01-02 15:04:05"), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}
