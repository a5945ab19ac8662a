package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/court-reservation/internal/cache"
    "github.com/iliyamo/court-reservation/internal/model"
    "github.com/iliyamo/court-reservation/internal/repository"
    "github.com/iliyamo/court-reservation/internal/service/reservation"
)

// AvailabilityHandler serves the read side: which windows of a court
// are occupied on a date.  Responses may come from the advisory Redis
// cache; the slot table is authoritative and callers must expect a
// subsequent booking to still be rejected with 409.
type AvailabilityHandler struct {
    Venues *repository.VenueRepo
    Slots  *repository.SlotRepo
    Cache  *cache.Availability
}

// NewAvailabilityHandler constructs an AvailabilityHandler.  Cache may
// be nil when Redis is not available.
func NewAvailabilityHandler(venues *repository.VenueRepo, slots *repository.SlotRepo, c *cache.Availability) *AvailabilityHandler {
    if venues == nil || slots == nil {
        panic("nil repository passed to NewAvailabilityHandler")
    }
    return &AvailabilityHandler{Venues: venues, Slots: slots, Cache: c}
}

// Get handles GET /v1/courts/:id/availability?date=YYYY-MM-DD.  It
// returns the occupied windows of the court on that date.
func (h *AvailabilityHandler) Get(c echo.Context) error {
    courtID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || courtID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid court id"})
    }
    date := c.QueryParam("date")
    if _, err := time.Parse("2006-01-02", date); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query parameter must be YYYY-MM-DD"})
    }
    ctx := c.Request().Context()

    if _, err := h.Venues.GetCourt(ctx, courtID); err != nil {
        if errors.Is(err, reservation.ErrCourtNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "court not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    var slots []model.Slot
    cached := false
    if h.Cache != nil {
        slots, cached = h.Cache.Get(ctx, courtID, date)
    }
    if !cached {
        slots, err = h.Slots.ByCourtDate(ctx, courtID, date)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
        }
        if h.Cache != nil {
            h.Cache.Set(ctx, courtID, date, slots)
        }
    }

    occupied := make([]echo.Map, 0, len(slots))
    for _, s := range slots {
        occupied = append(occupied, echo.Map{
            "start":  s.StartTime,
            "end":    s.EndTime,
            "status": s.Status,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{
        "court_id": courtID,
        "date":     date,
        "occupied": occupied,
        "cached":   cached,
    })
}
