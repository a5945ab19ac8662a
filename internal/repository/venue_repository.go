package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/court-reservation/internal/model"
    "github.com/iliyamo/court-reservation/internal/service/reservation"
)

// VenueRepo provides read access to the venue/court catalog.  Catalog
// management lives in another service; this repo only validates
// referenced ids, snapshots display metadata and — critically — takes
// the court row locks that serialize every writer touching a court's
// slots.
type VenueRepo struct {
    db *sql.DB
}

// NewVenueRepo returns a VenueRepo bound to the given database.
func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{db: db} }

// GetVenue returns a venue by id, or reservation.ErrVenueNotFound.
func (r *VenueRepo) GetVenue(ctx context.Context, id uint64) (*model.Venue, error) {
    const q = `SELECT id, owner_id, name, created_at, updated_at FROM venues WHERE id = ?`
    var v model.Venue
    err := r.db.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.OwnerID, &v.Name, &v.CreatedAt, &v.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reservation.ErrVenueNotFound
    }
    if err != nil {
        return nil, err
    }
    return &v, nil
}

// GetCourt returns a court by id, or reservation.ErrCourtNotFound.
func (r *VenueRepo) GetCourt(ctx context.Context, id uint64) (*model.Court, error) {
    const q = `SELECT id, venue_id, name, created_at, updated_at FROM courts WHERE id = ?`
    var c model.Court
    err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.VenueID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reservation.ErrCourtNotFound
    }
    if err != nil {
        return nil, err
    }
    return &c, nil
}

// VenueByIDTx reads a venue inside the caller's transaction.
func (r *VenueRepo) VenueByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Venue, error) {
    const q = `SELECT id, owner_id, name, created_at, updated_at FROM venues WHERE id = ?`
    var v model.Venue
    err := tx.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.OwnerID, &v.Name, &v.CreatedAt, &v.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reservation.ErrVenueNotFound
    }
    if err != nil {
        return nil, err
    }
    return &v, nil
}

// LockCourtTx acquires a row lock on one court inside the caller's
// transaction and returns the locked row.  Callers must lock courts one
// at a time in ascending id order; locking them individually (rather
// than with an IN list) is what makes the acquisition order
// deterministic.
func (r *VenueRepo) LockCourtTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Court, error) {
    const q = `SELECT id, venue_id, name, created_at, updated_at FROM courts WHERE id = ? FOR UPDATE`
    var c model.Court
    err := tx.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.VenueID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reservation.ErrCourtNotFound
    }
    if err != nil {
        return nil, err
    }
    return &c, nil
}
