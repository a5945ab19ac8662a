package model

import "time"

// Booking lifecycle statuses.  A booking starts in
// StatusPendingPayment and moves to exactly one of the other
// states; it is never hard-deleted so cancelled and expired
// bookings remain for audit.
const (
    StatusPendingPayment = "PENDING_PAYMENT"
    StatusConfirmed      = "CONFIRMED"
    StatusCancelled      = "CANCELLED"
    StatusExpired        = "EXPIRED"
    StatusCompleted      = "COMPLETED"
)

// Payment statuses tracked on the booking itself.  They mirror
// the gateway lifecycle as observed by the reconciler.
const (
    PaymentPending  = "PENDING"
    PaymentPaid     = "PAID"
    PaymentFailed   = "FAILED"
    PaymentRefunded = "REFUNDED"
    PaymentExpired  = "EXPIRED"
)

// ContactSnapshot captures the customer's contact details at
// booking time.  It is a copy, not a live reference to any user
// account, because guest bookings are allowed and the booking
// must stay displayable even if an account is later removed.
//
// Fields:
//  Name  – customer display name.
//  Email – customer email address.
//  Phone – customer phone number.
type ContactSnapshot struct {
    Name  string // bookings.customer_name
    Email string // bookings.customer_email
    Phone string // bookings.customer_phone
}

// VenueSnapshot captures venue and court display metadata at
// booking time.  Keeping it denormalized means the booking can
// be rendered even if the catalog entry is edited or deleted
// afterwards.
//
// Fields:
//  VenueName  – name of the venue at booking time.
//  CourtNames – names of the booked courts at booking time.
type VenueSnapshot struct {
    VenueName  string   // bookings.venue_name
    CourtNames []string // bookings.court_names (comma separated in DB)
}

// Booking records a reservation request and its lifecycle.  It
// aggregates one or more slots created in the same transaction
// and at most one payment record.  Status transitions are driven
// by the reservation orchestrator (creation), the payment
// reconciler (confirmation/cancellation) and the expiry sweeper
// (expiration).
//
// Fields:
//  ID            – primary key identifier.
//  Reference     – opaque reference shown to the customer.
//  VenueID       – venue the booking belongs to.
//  Status        – booking status (see Status* constants).
//  PaymentStatus – payment status (see Payment* constants).
//  TotalPrice    – total price in the smallest currency unit.
//  Currency      – ISO currency code (e.g. "IDR").
//  Contact       – customer contact snapshot.
//  Venue         – venue/court display snapshot.
//  Date          – booked date ("2006-01-02", UTC).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Booking struct {
    ID            uint64          // bookings.id
    Reference     string          // bookings.reference
    VenueID       uint64          // bookings.venue_id
    Status        string          // bookings.status
    PaymentStatus string          // bookings.payment_status
    TotalPrice    int64           // bookings.total_price
    Currency      string          // bookings.currency
    Contact       ContactSnapshot // contact snapshot columns
    Venue         VenueSnapshot   // venue snapshot columns
    Date          string          // bookings.booked_date
    CreatedAt     time.Time       // bookings.created_at
    UpdatedAt     time.Time       // bookings.updated_at
}
