package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/court-reservation/internal/model"
)

// SlotRepo provides data access to the slots table.  Slot rows exist
// only while they occupy a window: the orchestrator inserts them bound
// to a booking, the reconciler and sweeper delete them when the booking
// dies, so "a row exists" is the occupancy check.  A unique key on
// (court_id, date, start_time, end_time) sits beneath the transactional
// overlap check as a last-line guard.
type SlotRepo struct {
    db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, court_id, DATE_FORMAT(date, '%Y-%m-%d'), TIME_FORMAT(start_time, '%H:%i'), TIME_FORMAT(end_time, '%H:%i'), status, booking_id, created_at`

// scanSlots drains rows produced by a SELECT of slotColumns.
func scanSlots(rows *sql.Rows) ([]model.Slot, error) {
    defer rows.Close()
    var out []model.Slot
    for rows.Next() {
        var s model.Slot
        var bookingID sql.NullInt64
        if err := rows.Scan(&s.ID, &s.CourtID, &s.Date, &s.StartTime, &s.EndTime, &s.Status, &bookingID, &s.CreatedAt); err != nil {
            return nil, err
        }
        if bookingID.Valid {
            id := uint64(bookingID.Int64)
            s.BookingID = &id
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ActiveSlotsForUpdateTx reads and locks every slot row occupying the
// court on the given date.  The caller must already hold the court row
// lock; locking the slot rows as well keeps a concurrent reconciler
// from deleting them mid-check.
func (r *SlotRepo) ActiveSlotsForUpdateTx(ctx context.Context, tx *sql.Tx, courtID uint64, date string) ([]model.Slot, error) {
    q := `SELECT ` + slotColumns + ` FROM slots WHERE court_id = ? AND date = ? FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, courtID, date)
    if err != nil {
        return nil, err
    }
    return scanSlots(rows)
}

// CreateBulkTx inserts multiple slot rows in a single statement, each
// pre-bound to its booking.  Passing an empty slice has no effect.
func (r *SlotRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, slots []model.Slot) error {
    if len(slots) == 0 {
        return nil
    }
    query := `INSERT INTO slots (court_id, date, start_time, end_time, status, booking_id) VALUES `
    args := make([]interface{}, 0, len(slots)*6)
    for i, s := range slots {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?)"
        var bookingID interface{}
        if s.BookingID != nil {
            bookingID = *s.BookingID
        }
        args = append(args, s.CourtID, s.Date, s.StartTime, s.EndTime, s.Status, bookingID)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// ByBookingTx returns the slot rows bound to a booking.
func (r *SlotRepo) ByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Slot, error) {
    q := `SELECT ` + slotColumns + ` FROM slots WHERE booking_id = ? ORDER BY court_id, start_time`
    rows, err := tx.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    return scanSlots(rows)
}

// ByBooking is ByBookingTx outside a transaction, for display reads.
func (r *SlotRepo) ByBooking(ctx context.Context, bookingID uint64) ([]model.Slot, error) {
    q := `SELECT ` + slotColumns + ` FROM slots WHERE booking_id = ? ORDER BY court_id, start_time`
    rows, err := r.db.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    return scanSlots(rows)
}

// ByCourtDate returns the occupied windows for a court and date,
// ordered by start time.  Used by the availability endpoint; the
// result is advisory and may be cached.
func (r *SlotRepo) ByCourtDate(ctx context.Context, courtID uint64, date string) ([]model.Slot, error) {
    q := `SELECT ` + slotColumns + ` FROM slots WHERE court_id = ? AND date = ? ORDER BY start_time`
    rows, err := r.db.QueryContext(ctx, q, courtID, date)
    if err != nil {
        return nil, err
    }
    return scanSlots(rows)
}

// CourtIDsByBookingTx returns the distinct courts referenced by a
// booking's slots, in ascending order so callers can lock them in the
// same order the orchestrator does.
func (r *SlotRepo) CourtIDsByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error) {
    const q = `SELECT DISTINCT court_id FROM slots WHERE booking_id = ? ORDER BY court_id`
    rows, err := tx.QueryContext(ctx, q, bookingID)
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

// ConfirmByBookingTx marks a booking's slots permanently occupied and
// returns them.
func (r *SlotRepo) ConfirmByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Slot, error) {
    if _, err := tx.ExecContext(ctx, `UPDATE slots SET status = ? WHERE booking_id = ?`, model.SlotConfirmed, bookingID); err != nil {
        return nil, err
    }
    return r.ByBookingTx(ctx, tx, bookingID)
}

// DeleteByBookingTx removes a booking's slot rows, freeing the windows,
// and returns what was freed so callers can invalidate caches and
// build notifications.
func (r *SlotRepo) DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Slot, error) {
    freed, err := r.ByBookingTx(ctx, tx, bookingID)
    if err != nil {
        return nil, err
    }
    if len(freed) == 0 {
        return freed, nil
    }
    if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE booking_id = ?`, bookingID); err != nil {
        return nil, err
    }
    return freed, nil
}
