package model

import "time"

// Venue represents a bookable sports venue owned by a user.
// A venue contains one or more courts.  Catalog management of
// venues (creation, verification, ownership changes) lives
// outside this service; venues are read here only to validate
// referenced ids and to snapshot display metadata into a
// booking at creation time.
//
// Fields:
//  ID        – primary key identifier.
//  OwnerID   – user ID of the venue owner.
//  Name      – name of the venue.
//  CreatedAt – timestamp when the venue was created.
//  UpdatedAt – timestamp of last update.
type Venue struct {
    ID        uint64    // venues.id
    OwnerID   uint64    // venues.owner_id
    Name      string    // venues.name
    CreatedAt time.Time // venues.created_at
    UpdatedAt time.Time // venues.updated_at
}

// Court represents an individually schedulable unit inside a
// venue (for example one futsal court).  Every slot references
// exactly one court.  Court rows are the anchor for row locks:
// reservation, reconciliation and expiry transactions all lock
// the court row before touching its slots.
//
// Fields:
//  ID        – primary key identifier.
//  VenueID   – venue this court belongs to.
//  Name      – display name of the court (e.g. "Court A").
//  CreatedAt – timestamp when the court was created.
//  UpdatedAt – timestamp of last update.
type Court struct {
    ID        uint64    // courts.id
    VenueID   uint64    // courts.venue_id
    Name      string    // courts.name
    CreatedAt time.Time // courts.created_at
    UpdatedAt time.Time // courts.updated_at
}
