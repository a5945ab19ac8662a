package model

import "time"

// Payment record statuses mirroring the external gateway's
// session lifecycle.  Only the payment reconciler updates them.
const (
    PaymentRecordPending   = "PENDING"
    PaymentRecordSucceeded = "SUCCEEDED"
    PaymentRecordFailed    = "FAILED"
    PaymentRecordExpired   = "EXPIRED"
)

// Payment tracks the correlation between a booking and its
// external checkout session.  In steady state a booking has at
// most one payment record; a retrying customer may transiently
// create a second session, in which case the newest record wins.
//
// Fields:
//  ID              – primary key identifier.
//  BookingID       – booking this payment belongs to.
//  SessionID       – gateway checkout session id.
//  PaymentIntentID – gateway payment intent id, once known.
//  Amount          – amount in the smallest currency unit.
//  Currency        – ISO currency code.
//  Status          – gateway-mirrored status (PaymentRecord*).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Payment struct {
    ID              uint64    // payments.id
    BookingID       uint64    // payments.booking_id
    SessionID       string    // payments.session_id
    PaymentIntentID string    // payments.payment_intent_id
    Amount          int64     // payments.amount
    Currency        string    // payments.currency
    Status          string    // payments.status
    CreatedAt       time.Time // payments.created_at
    UpdatedAt       time.Time // payments.updated_at
}
