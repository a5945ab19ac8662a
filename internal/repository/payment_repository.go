package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/court-reservation/internal/model"
)

// PaymentRepo provides data access to the payments table.  A payment
// row correlates a booking with its external checkout session.  Only
// the reconciler updates payment status.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, session_id, payment_intent_id, amount, currency, status, created_at, updated_at`

func scanPayment(row *sql.Row) (*model.Payment, error) {
    var p model.Payment
    var intentID sql.NullString
    err := row.Scan(&p.ID, &p.BookingID, &p.SessionID, &intentID, &p.Amount, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if intentID.Valid {
        p.PaymentIntentID = intentID.String
    }
    return &p, nil
}

// Create inserts a payment record for a freshly created checkout
// session and populates the generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments (booking_id, session_id, payment_intent_id, amount, currency, status)
               VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, p.BookingID, p.SessionID, p.PaymentIntentID, p.Amount, p.Currency, p.Status)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return nil
}

// LatestByBooking returns the newest payment record for a booking, or
// ErrPaymentNotFound.  A retrying customer may create a second
// session; the newest one is authoritative for polling.
func (r *PaymentRepo) LatestByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
    q := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ? ORDER BY id DESC LIMIT 1`
    p, err := scanPayment(r.db.QueryRowContext(ctx, q, bookingID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrPaymentNotFound
    }
    if err != nil {
        return nil, err
    }
    return p, nil
}

// BySessionID resolves a gateway session id to its payment record, or
// ErrPaymentNotFound.  Webhook events carry only the session id, so
// this is how an event finds its booking.
func (r *PaymentRepo) BySessionID(ctx context.Context, sessionID string) (*model.Payment, error) {
    q := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = ?`
    p, err := scanPayment(r.db.QueryRowContext(ctx, q, sessionID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrPaymentNotFound
    }
    if err != nil {
        return nil, err
    }
    return p, nil
}

// UpdateStatusByBookingTx sets the mirrored gateway status on every
// payment record of the booking within the caller's transaction.
func (r *PaymentRepo) UpdateStatusByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string) error {
    const q = `UPDATE payments SET status = ? WHERE booking_id = ?`
    _, err := tx.ExecContext(ctx, q, status, bookingID)
    return err
}

// AnnotateSessionTx stores gateway references on the booking's newest
// payment record.  Empty values leave the stored ones untouched, so an
// event without an intent id cannot erase a known one.
func (r *PaymentRepo) AnnotateSessionTx(ctx context.Context, tx *sql.Tx, bookingID uint64, sessionID, paymentIntentID string) error {
    const q = `UPDATE payments
               SET session_id = COALESCE(NULLIF(?, ''), session_id),
                   payment_intent_id = COALESCE(NULLIF(?, ''), payment_intent_id)
               WHERE booking_id = ?
               ORDER BY id DESC LIMIT 1`
    _, err := tx.ExecContext(ctx, q, sessionID, paymentIntentID, bookingID)
    return err
}
