// Package gateway provides a minimal HTTP client and webhook codec for
// the hosted-checkout payment gateway.
package gateway

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/google/uuid"
)

var (
    ErrSessionNotFound    = errors.New("gateway: session not found")
    ErrUnexpectedResponse = errors.New("gateway: unexpected response")
)

// Session payment states reported by the gateway.
const (
    SessionPaid   = "paid"
    SessionUnpaid = "unpaid"
)

// Session lifecycle states reported by the gateway.
const (
    SessionOpen     = "open"
    SessionComplete = "complete"
    SessionExpired  = "expired"
)

// Session is the gateway's view of one checkout attempt.
type Session struct {
    ID              string `json:"id"`
    URL             string `json:"url"`
    Status          string `json:"status"`
    PaymentStatus   string `json:"payment_status"`
    PaymentIntentID string `json:"payment_intent"`
    AmountTotal     int64  `json:"amount_total"`
    Currency        string `json:"currency"`
}

// CreateSessionParams describes the checkout session to open.
type CreateSessionParams struct {
    Amount      int64
    Currency    string
    Reference   string
    Description string
    SuccessURL  string
    CancelURL   string
    ExpiresIn   time.Duration
}

// Client is a lightweight gateway HTTP client.
type Client struct {
    baseURL    string
    apiKey     string
    httpClient *http.Client
}

// New creates a Client for the given gateway endpoint.
func New(baseURL, apiKey string) *Client {
    return &Client{
        baseURL:    baseURL,
        apiKey:     apiKey,
        httpClient: &http.Client{Timeout: 30 * time.Second},
    }
}

// CreateSession opens a hosted checkout session and returns it.  Each
// call carries a fresh idempotency key, so a network retry by the HTTP
// layer cannot open two sessions.
func (c *Client) CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error) {
    body := map[string]any{
        "amount":      p.Amount,
        "currency":    p.Currency,
        "reference":   p.Reference,
        "description": p.Description,
        "success_url": p.SuccessURL,
        "cancel_url":  p.CancelURL,
    }
    if p.ExpiresIn > 0 {
        body["expires_at"] = time.Now().Add(p.ExpiresIn).Unix()
    }

    var s Session
    if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", uuid.NewString(), body, &s); err != nil {
        return nil, fmt.Errorf("gateway create session: %w", err)
    }
    if s.ID == "" || s.URL == "" {
        return nil, ErrUnexpectedResponse
    }
    return &s, nil
}

// GetSession fetches the current state of a checkout session.  Used by
// the manual sync endpoint when webhook delivery is in doubt.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
    var s Session
    err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, "", nil, &s)
    if err != nil {
        return nil, fmt.Errorf("gateway get session: %w", err)
    }
    if s.ID == "" {
        return nil, ErrUnexpectedResponse
    }
    return &s, nil
}

// do sends a JSON request to baseURL+path and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
    var reader *bytes.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil {
            return fmt.Errorf("marshal request: %w", err)
        }
        reader = bytes.NewReader(b)
    } else {
        reader = bytes.NewReader(nil)
    }

    req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
    if err != nil {
        return fmt.Errorf("create request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Accept", "application/json")
    req.Header.Set("Authorization", "Bearer "+c.apiKey)
    if idempotencyKey != "" {
        req.Header.Set("Idempotency-Key", idempotencyKey)
    }

    res, err := c.httpClient.Do(req)
    if err != nil {
        return fmt.Errorf("do request: %w", err)
    }
    defer res.Body.Close()

    if res.StatusCode == http.StatusNotFound {
        return ErrSessionNotFound
    }
    if res.StatusCode < 200 || res.StatusCode >= 300 {
        return fmt.Errorf("%w (status=%d)", ErrUnexpectedResponse, res.StatusCode)
    }
    if err := json.NewDecoder(res.Body).Decode(out); err != nil {
        return fmt.Errorf("decode response: %w", err)
    }
    return nil
}
