package handler

import (
    "errors"
    "io"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/court-reservation/internal/gateway"
    "github.com/iliyamo/court-reservation/internal/repository"
    "github.com/iliyamo/court-reservation/internal/service/reconcile"
)

// signatureHeader carries the gateway's HMAC of the raw request body.
const signatureHeader = "X-Webhook-Signature"

// WebhookHandler receives payment gateway webhook deliveries and feeds
// them to the reconciler.  The gateway retries deliveries until it sees
// a 2xx, so the handler only returns non-2xx when a retry could help:
// bad signatures and malformed payloads get 400 and are never retried
// into success, while reconciliation failures get 500 so the delivery
// comes back.
type WebhookHandler struct {
    Secret     string
    Payments   *repository.PaymentRepo
    Reconciler *reconcile.Service
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(secret string, payments *repository.PaymentRepo, rec *reconcile.Service) *WebhookHandler {
    if payments == nil || rec == nil {
        panic("nil dependency passed to NewWebhookHandler")
    }
    return &WebhookHandler{Secret: secret, Payments: payments, Reconciler: rec}
}

// Receive handles POST /v1/payments/webhook.
func (h *WebhookHandler) Receive(c echo.Context) error {
    body, err := io.ReadAll(c.Request().Body)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
    }

    ev, err := gateway.ParseEvent(h.Secret, body, c.Request().Header.Get(signatureHeader))
    if err != nil {
        if errors.Is(err, gateway.ErrBadSignature) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
        }
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
    }

    observed, ok := observedFromEvent(ev)
    if !ok {
        // Unknown event types are acknowledged so the gateway stops
        // redelivering them.
        return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
    }

    ctx := c.Request().Context()
    payment, err := h.Payments.BySessionID(ctx, ev.Session.ID)
    if err != nil {
        if errors.Is(err, repository.ErrPaymentNotFound) {
            // A session this service never opened; acknowledge and log.
            c.Logger().Warnf("webhook for unknown session %s (%s)", ev.Session.ID, ev.Type)
            return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve session"})
    }

    out, err := h.Reconciler.ApplyPaymentStatus(ctx, reconcile.Update{
        BookingID:       payment.BookingID,
        Observed:        observed,
        SessionID:       ev.Session.ID,
        PaymentIntentID: ev.Session.PaymentIntentID,
        Source:          reconcile.SourceWebhook,
    })
    if err != nil {
        if errors.Is(err, reconcile.ErrBookingNotFound) {
            c.Logger().Warnf("webhook session %s references missing booking %d", ev.Session.ID, payment.BookingID)
            return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to apply payment status"})
    }

    return c.JSON(http.StatusOK, echo.Map{
        "received": true,
        "changed":  out.Changed,
    })
}

// observedFromEvent maps a webhook event to the reconciler's observed
// payment state.  Unrecognised event types map to nothing.
func observedFromEvent(ev *gateway.Event) (reconcile.Observed, bool) {
    switch ev.Type {
    case gateway.EventSessionCompleted:
        if ev.Session.PaymentStatus == gateway.SessionPaid {
            return reconcile.ObservedCaptured, true
        }
        // Completed but unpaid: async payment methods settle later.
        return reconcile.ObservedCompletedUnpaid, true
    case gateway.EventAsyncPaymentSucceeded, gateway.EventPaymentSucceeded:
        return reconcile.ObservedCaptured, true
    case gateway.EventSessionExpired:
        return reconcile.ObservedSessionExpired, true
    case gateway.EventPaymentFailed:
        return reconcile.ObservedFailed, true
    default:
        return "", false
    }
}
