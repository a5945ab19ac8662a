package gateway

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
)

var (
    ErrBadSignature = errors.New("gateway: webhook signature mismatch")
    ErrBadPayload   = errors.New("gateway: malformed webhook payload")
)

// Webhook event types delivered by the gateway.
const (
    EventSessionCompleted      = "checkout.session.completed"
    EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
    EventSessionExpired        = "checkout.session.expired"
    EventPaymentSucceeded      = "payment_intent.succeeded"
    EventPaymentFailed         = "payment_intent.payment_failed"
)

// Event is one verified webhook delivery.
type Event struct {
    ID      string  `json:"id"`
    Type    string  `json:"type"`
    Session Session `json:"data"`
}

// Sign computes the hex HMAC-SHA256 of payload under the shared webhook
// secret.  Exported so tests and local tooling can forge deliveries.
func Sign(secret string, payload []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(payload)
    return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent verifies the delivery signature and decodes the event.
// The signature is checked over the raw body before any decoding, with
// a constant-time compare.
func ParseEvent(secret string, payload []byte, signature string) (*Event, error) {
    want := Sign(secret, payload)
    if !hmac.Equal([]byte(want), []byte(signature)) {
        return nil, ErrBadSignature
    }

    var ev Event
    if err := json.Unmarshal(payload, &ev); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
    }
    if ev.Type == "" || ev.Session.ID == "" {
        return nil, ErrBadPayload
    }
    return &ev, nil
}
