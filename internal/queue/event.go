// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when payment capture confirms a booking.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
    BookingID   uint64   `json:"booking_id"`
    Reference   string   `json:"reference"`
    VenueID     uint64   `json:"venue_id"`
    VenueName   string   `json:"venue_name"`
    CourtNames  []string `json:"courts"`
    Date        string   `json:"date"`
    Windows     []string `json:"windows"`
    ContactName string   `json:"contact_name"`
    TotalPrice  int64    `json:"total_price"`
    Currency    string   `json:"currency"`
    ConfirmedAt string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a booking is closed without
// payment: a failed or expired checkout session, or the pending-payment
// deadline passing.
type BookingCancelledEvent struct {
    BookingID   uint64   `json:"booking_id"`
    Reference   string   `json:"reference"`
    VenueID     uint64   `json:"venue_id"`
    VenueName   string   `json:"venue_name"`
    CourtNames  []string `json:"courts"`
    Date        string   `json:"date"`
    Windows     []string `json:"windows"`
    ContactName string   `json:"contact_name"`
    Reason      string   `json:"reason"`
    ClosedAt    string   `json:"closed_at"`
}
