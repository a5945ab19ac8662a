package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/court-reservation/internal/handler"
)

// RegisterRoutes registers the health check on the provided Echo
// instance.  This endpoint is used by load balancers and monitoring
// systems to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the reservation API.  All routes are
// public: bookings are made by guests and the payment gateway
// authenticates itself with the webhook signature.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, a *handler.AvailabilityHandler, w *handler.WebhookHandler) {
    // Create a reservation on one or more courts of a venue.
    e.POST("/v1/venues/:id/reservations", b.Create)
    // Fetch a booking with its slots.
    e.GET("/v1/bookings/:id", b.Get)
    // Release an unpaid booking without waiting for session expiry.
    e.POST("/v1/bookings/:id/cancel", b.Cancel)
    // Poll the gateway and reconcile the booking's payment state.
    // Covers lost webhook deliveries.
    e.POST("/v1/bookings/:id/payment/sync", b.SyncPayment)
    // Occupied windows of a court on a date.  May be served from the
    // advisory cache.
    e.GET("/v1/courts/:id/availability", a.Get)
    // Payment gateway webhook deliveries.
    e.POST("/v1/payments/webhook", w.Receive)
}
