package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/court-reservation/internal/gateway"
    "github.com/iliyamo/court-reservation/internal/model"
    "github.com/iliyamo/court-reservation/internal/repository"
    "github.com/iliyamo/court-reservation/internal/service/reconcile"
    "github.com/iliyamo/court-reservation/internal/service/reservation"
)

// BookingHandler serves booking creation, lookup and manual payment
// synchronisation.  Bookings are made by guests, so no authentication
// middleware runs in front of these routes; the rate limiter is the
// only gate.
type BookingHandler struct {
    Reservations *reservation.Service
    Detector     *reservation.Detector
    Reconciler   *reconcile.Service
    Store        *repository.Store
    Gateway      *gateway.Client

    SuccessURL      string
    CancelURL       string
    PendingDeadline time.Duration
}

// NewBookingHandler constructs a BookingHandler.  The core dependencies
// must be non-nil; Detector and Gateway may be nil to disable duplicate
// checks and checkout creation respectively.
func NewBookingHandler(res *reservation.Service, det *reservation.Detector, rec *reconcile.Service, store *repository.Store, gw *gateway.Client, successURL, cancelURL string, deadline time.Duration) *BookingHandler {
    if res == nil || rec == nil || store == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{
        Reservations:    res,
        Detector:        det,
        Reconciler:      rec,
        Store:           store,
        Gateway:         gw,
        SuccessURL:      successURL,
        CancelURL:       cancelURL,
        PendingDeadline: deadline,
    }
}

// createBody is the request payload for POST /v1/venues/:id/reservations.
type createBody struct {
    Date    string `json:"date"`
    Windows []struct {
        CourtID uint64 `json:"court_id"`
        Start   string `json:"start"`
        End     string `json:"end"`
    } `json:"windows"`
    Contact struct {
        Name  string `json:"name"`
        Email string `json:"email"`
        Phone string `json:"phone"`
    } `json:"contact"`
    TotalPrice int64  `json:"total_price"`
    Currency   string `json:"currency"`
}

// Create handles POST /v1/venues/:id/reservations.  It validates the
// request, short-circuits duplicate submissions, creates the booking
// and its slots atomically, then opens a checkout session for the
// customer to pay.  Responses:
//
//   201 – booking created; body carries the booking and checkout URL.
//   200 – a just-created matching booking exists; it is returned
//         instead of creating a second one.
//   400 – malformed input.
//   409 – a requested window overlaps an active slot.
//   503 – transient contention; the client should retry.
func (h *BookingHandler) Create(c echo.Context) error {
    venueID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || venueID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    var body createBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    req := reservation.CreateRequest{
        VenueID: venueID,
        Date:    body.Date,
        Contact: model.ContactSnapshot{
            Name:  body.Contact.Name,
            Email: body.Contact.Email,
            Phone: body.Contact.Phone,
        },
        TotalPrice: body.TotalPrice,
        Currency:   body.Currency,
    }
    for _, w := range body.Windows {
        win, err := reservation.ParseWindow(w.Start, w.End)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        req.Windows = append(req.Windows, reservation.RequestedWindow{CourtID: w.CourtID, Window: win})
    }

    ctx := c.Request().Context()

    // Duplicate submissions (double-clicked submit) get the original
    // booking back instead of a conflict.  Detector errors are
    // swallowed: the check is advisory and must never block a booking.
    if h.Detector != nil {
        if dup, err := h.Detector.Find(ctx, req); err == nil && dup != nil {
            return c.JSON(http.StatusOK, echo.Map{
                "duplicate": true,
                "booking":   bookingView(dup),
            })
        }
    }

    res, err := h.Reservations.Create(ctx, req)
    if err != nil {
        var verr *reservation.ValidationError
        if errors.As(err, &verr) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Msg})
        }
        var conflict *reservation.ConflictError
        if errors.As(err, &conflict) {
            return c.JSON(http.StatusConflict, echo.Map{
                "error":    "window not available",
                "court_id": conflict.CourtID,
                "window":   conflict.Window.String(),
            })
        }
        if errors.Is(err, reservation.ErrTryAgain) {
            c.Response().Header().Set("Retry-After", "1")
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, please retry"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
    }

    checkoutURL := ""
    if h.Gateway != nil {
        session, err := h.Gateway.CreateSession(ctx, gateway.CreateSessionParams{
            Amount:      res.Booking.TotalPrice,
            Currency:    res.Booking.Currency,
            Reference:   res.Booking.Reference,
            Description: res.Booking.Venue.VenueName + " " + res.Booking.Date,
            SuccessURL:  h.SuccessURL,
            CancelURL:   h.CancelURL,
            ExpiresIn:   h.PendingDeadline,
        })
        if err != nil {
            // The booking is committed and will be expired by the
            // sweeper if never paid.  Report the gateway failure so the
            // client can retry checkout via payment sync.
            c.Logger().Errorf("checkout session failed for booking %d: %v", res.Booking.ID, err)
        } else {
            checkoutURL = session.URL
            payment := model.Payment{
                BookingID: res.Booking.ID,
                SessionID: session.ID,
                Amount:    res.Booking.TotalPrice,
                Currency:  res.Booking.Currency,
                Status:    model.PaymentRecordPending,
            }
            if err := h.Store.Payments().Create(ctx, &payment); err != nil {
                c.Logger().Errorf("payment record failed for booking %d: %v", res.Booking.ID, err)
            }
        }
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "booking":      bookingView(&res.Booking),
        "slots":        slotViews(res.Slots),
        "checkout_url": checkoutURL,
    })
}

// Get handles GET /v1/bookings/:id.  It returns the booking with its
// slots, or 404.
func (h *BookingHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()
    booking, err := h.Store.Bookings().GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, reconcile.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
    }
    slots, err := h.Store.Slots().ByBooking(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "booking": bookingView(booking),
        "slots":   slotViews(slots),
    })
}

// SyncPayment handles POST /v1/bookings/:id/payment/sync.  It polls the
// gateway for the booking's newest checkout session and reconciles the
// observed state, covering lost webhook deliveries.  Returns the
// booking after reconciliation.
func (h *BookingHandler) SyncPayment(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    if h.Gateway == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment gateway not configured"})
    }
    ctx := c.Request().Context()

    payment, err := h.Store.Payments().LatestByBooking(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrPaymentNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "no payment session for booking"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch payment"})
    }

    session, err := h.Gateway.GetSession(ctx, payment.SessionID)
    if err != nil {
        if errors.Is(err, gateway.ErrSessionNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "checkout session not found"})
        }
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "gateway unavailable"})
    }

    observed, ok := observedFromSession(session)
    if !ok {
        // Session still open: nothing to reconcile yet.
        booking, err := h.Store.Bookings().GetByID(ctx, id)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
        }
        return c.JSON(http.StatusOK, echo.Map{"booking": bookingView(booking), "changed": false})
    }

    out, err := h.Reconciler.ApplyPaymentStatus(ctx, reconcile.Update{
        BookingID:       id,
        Observed:        observed,
        SessionID:       session.ID,
        PaymentIntentID: session.PaymentIntentID,
        Source:          reconcile.SourceSync,
    })
    if err != nil {
        if errors.Is(err, reconcile.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reconcile payment"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "booking": bookingView(&out.Booking),
        "changed": out.Changed,
    })
}

// Cancel handles POST /v1/bookings/:id/cancel.  A guest may abandon a
// booking before paying; the slots are released immediately instead of
// waiting for the session to expire.  Bookings that already reached a
// terminal state are returned unchanged, so a cancel racing a webhook
// capture cannot undo a confirmation.
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()

    out, err := h.Reconciler.ApplyPaymentStatus(ctx, reconcile.Update{
        BookingID: id,
        Observed:  reconcile.ObservedFailed,
        Source:    reconcile.SourceManual,
    })
    if err != nil {
        if errors.Is(err, reconcile.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "booking": bookingView(&out.Booking),
        "changed": out.Changed,
    })
}

// observedFromSession maps a polled gateway session to the reconciler's
// observed payment state.  Open sessions map to nothing.
func observedFromSession(s *gateway.Session) (reconcile.Observed, bool) {
    switch {
    case s.PaymentStatus == gateway.SessionPaid:
        return reconcile.ObservedCaptured, true
    case s.Status == gateway.SessionExpired:
        return reconcile.ObservedSessionExpired, true
    case s.Status == gateway.SessionComplete:
        return reconcile.ObservedCompletedUnpaid, true
    default:
        return "", false
    }
}

// bookingView renders a booking for JSON responses.
func bookingView(b *model.Booking) echo.Map {
    return echo.Map{
        "id":             b.ID,
        "reference":      b.Reference,
        "venue_id":       b.VenueID,
        "venue_name":     b.Venue.VenueName,
        "courts":         b.Venue.CourtNames,
        "date":           b.Date,
        "status":         b.Status,
        "payment_status": b.PaymentStatus,
        "total_price":    b.TotalPrice,
        "currency":       b.Currency,
        "customer_name":  b.Contact.Name,
        "created_at":     b.CreatedAt.UTC().Format(time.RFC3339),
    }
}

// slotViews renders slot rows for JSON responses.
func slotViews(slots []model.Slot) []echo.Map {
    out := make([]echo.Map, 0, len(slots))
    for _, s := range slots {
        out = append(out, echo.Map{
            "court_id": s.CourtID,
            "date":     s.Date,
            "start":    s.StartTime,
            "end":      s.EndTime,
            "status":   s.Status,
        })
    }
    return out
}
