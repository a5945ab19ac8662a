package reservation

import (
    "context"
    "strings"
    "time"

    "github.com/iliyamo/court-reservation/internal/model"
)

// DuplicateStore looks up recent bookings for the duplicate detector.
// It runs outside the orchestrator's transaction because the check is
// advisory, not authoritative.
type DuplicateStore interface {
    // RecentByVenue returns bookings for the venue created at or after
    // the given instant, newest first, excluding cancelled and expired
    // ones.
    RecentByVenue(ctx context.Context, venueID uint64, since time.Time) ([]model.Booking, error)
}

// Detector is the duplicate submission detector.  It protects users who
// double-click a submit action by spotting a just-created booking with
// the same venue, date, contact identity and (within a tolerance) the
// same price, without requiring a client-side idempotency key.  It
// produces false negatives by design and must never block a
// legitimately distinct booking, so any lookup error is swallowed by
// the caller and treated as "no duplicate".
type Detector struct {
    store        DuplicateStore
    window       time.Duration
    tolerancePct float64
    now          func() time.Time
}

// NewDetector builds a Detector.  Non-positive window or tolerance fall
// back to the defaults (30 seconds, 1%).
func NewDetector(store DuplicateStore, window time.Duration, tolerancePct float64) *Detector {
    if window <= 0 {
        window = 30 * time.Second
    }
    if tolerancePct <= 0 {
        tolerancePct = 1.0
    }
    return &Detector{store: store, window: window, tolerancePct: tolerancePct, now: time.Now}
}

// Find returns a recent booking that looks like a duplicate of the
// request, or nil when none matches.  A match requires the same venue
// and date, a fuzzy contact identity match and a total price within the
// configured tolerance.
func (d *Detector) Find(ctx context.Context, req CreateRequest) (*model.Booking, error) {
    recent, err := d.store.RecentByVenue(ctx, req.VenueID, d.now().UTC().Add(-d.window))
    if err != nil {
        return nil, err
    }
    for i := range recent {
        b := &recent[i]
        if b.Date != req.Date {
            continue
        }
        if !contactMatches(b.Contact, req.Contact) {
            continue
        }
        if !priceWithinTolerance(b.TotalPrice, req.TotalPrice, d.tolerancePct) {
            continue
        }
        return b, nil
    }
    return nil, nil
}

// contactMatches fuzzily compares contact identities: a normalized
// email or phone match is enough. Two non-empty values that differ are
// positive evidence of distinct customers and veto the match outright;
// the case-insensitive name comparison is only a last resort when
// neither side offers a comparable email or phone.
func contactMatches(a, b model.ContactSnapshot) bool {
    if ae, be := normalizeEmail(a.Email), normalizeEmail(b.Email); ae != "" && be != "" {
        return ae == be
    }
    if ap, bp := normalizePhone(a.Phone), normalizePhone(b.Phone); ap != "" && bp != "" {
        return ap == bp
    }
    an, bn := strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)
    return an != "" && strings.EqualFold(an, bn)
}

func normalizeEmail(s string) string {
    return strings.ToLower(strings.TrimSpace(s))
}

// normalizePhone strips everything but digits so "+62 812-3456" and
// "628123456" compare equal.
func normalizePhone(s string) string {
    var b strings.Builder
    for _, r := range s {
        if r >= '0' && r <= '9' {
            b.WriteRune(r)
        }
    }
    return b.String()
}

// priceWithinTolerance reports whether candidate is within pct percent
// of requested, absorbing floating rounding or partial-fee differences.
func priceWithinTolerance(candidate, requested int64, pct float64) bool {
    diff := candidate - requested
    if diff < 0 {
        diff = -diff
    }
    limit := float64(requested) * pct / 100.0
    return float64(diff) <= limit
}
