package model

import "time"

// Slot occupancy values.  SlotBooked rows are created bound to a
// booking inside the reservation transaction; SlotMaintenance
// rows have no booking and simply block the window.
const (
    SlotBooked      = "BOOKED"
    SlotConfirmed   = "CONFIRMED"
    SlotMaintenance = "MAINTENANCE"
)

// Slot is one concrete time window on one court.  A slot row
// exists only while it actually occupies the window: it is
// created already bound to its booking and deleted again when
// the booking is rejected, expires or is cancelled.  The core
// invariant of the whole engine is that no two slots for the
// same court may overlap on the same date.
//
// Times are half-open windows: a slot ending at 10:00 does not
// conflict with one starting at 10:00.
//
// Fields:
//  ID        – primary key identifier.
//  CourtID   – court the window is on.
//  Date      – date of the window ("2006-01-02", UTC).
//  StartTime – start of the window ("15:04", inclusive).
//  EndTime   – end of the window ("15:04", exclusive).
//  Status    – occupancy (see Slot* constants).
//  BookingID – owning booking; nil for maintenance windows.
//  CreatedAt – creation timestamp.
type Slot struct {
    ID        uint64    // slots.id
    CourtID   uint64    // slots.court_id
    Date      string    // slots.date
    StartTime string    // slots.start_time
    EndTime   string    // slots.end_time
    Status    string    // slots.status
    BookingID *uint64   // slots.booking_id (nullable)
    CreatedAt time.Time // slots.created_at
}
