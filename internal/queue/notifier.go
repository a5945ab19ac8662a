package queue

import (
    "context"
    "log"
    "time"

    "github.com/iliyamo/court-reservation/internal/model"
)

// Notifier turns reconciled booking transitions into broker events.
// Publish failures are logged and swallowed: the state transition has
// already committed, so notification is best-effort.
type Notifier struct {
    pub *Publisher
}

// NewNotifier returns a Notifier over the given publisher.
func NewNotifier(pub *Publisher) *Notifier { return &Notifier{pub: pub} }

// BookingConfirmed publishes a confirmation event for the booking.
func (n *Notifier) BookingConfirmed(ctx context.Context, b *model.Booking, slots []model.Slot) {
    ev := BookingConfirmedEvent{
        BookingID:   b.ID,
        Reference:   b.Reference,
        VenueID:     b.VenueID,
        VenueName:   b.Venue.VenueName,
        CourtNames:  b.Venue.CourtNames,
        Date:        b.Date,
        Windows:     slotWindows(slots),
        ContactName: b.Contact.Name,
        TotalPrice:  b.TotalPrice,
        Currency:    b.Currency,
        ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
    }
    if err := n.pub.PublishBookingConfirmed(ctx, ev); err != nil {
        log.Printf("notifier: booking confirmed publish failed: booking=%d err=%v", b.ID, err)
    }
}

// BookingCancelled publishes a cancellation event for the booking.
func (n *Notifier) BookingCancelled(ctx context.Context, b *model.Booking, slots []model.Slot, reason string) {
    ev := BookingCancelledEvent{
        BookingID:   b.ID,
        Reference:   b.Reference,
        VenueID:     b.VenueID,
        VenueName:   b.Venue.VenueName,
        CourtNames:  b.Venue.CourtNames,
        Date:        b.Date,
        Windows:     slotWindows(slots),
        ContactName: b.Contact.Name,
        Reason:      reason,
        ClosedAt:    time.Now().UTC().Format(time.RFC3339),
    }
    if err := n.pub.PublishBookingCancelled(ctx, ev); err != nil {
        log.Printf("notifier: booking cancelled publish failed: booking=%d err=%v", b.ID, err)
    }
}

func slotWindows(slots []model.Slot) []string {
    out := make([]string, 0, len(slots))
    for _, s := range slots {
        out = append(out, s.StartTime+"-"+s.EndTime)
    }
    return out
}
