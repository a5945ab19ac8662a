package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses the duration-valued tuning knobs
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// timing knobs of the booking engine.
type Config struct {
    Env    string // application environment (e.g. "dev", "prod")
    Port   string // HTTP port to listen on
    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address
    DBPort string // database port number
    DBName string // database name

    AMQPURL string // RabbitMQ broker URL (optional, empty disables events)

    GatewayBaseURL       string // payment gateway API base URL
    GatewayAPIKey        string // payment gateway secret API key
    GatewayWebhookSecret string // shared secret for webhook signature checks
    CheckoutSuccessURL   string // where the gateway sends the customer after paying
    CheckoutCancelURL    string // where the gateway sends the customer after abandoning

    PendingDeadline time.Duration // how long a booking may stay unpaid before expiry
    SweepInterval   time.Duration // how often the expiry sweeper scans
    SweepBatch      int           // max bookings expired per sweep pass

    RetryAttempts int           // max attempts for a booking transaction
    RetryBackoff  time.Duration // base backoff between booking retries

    DupWindow       time.Duration // lookback window for duplicate submission checks
    DupTolerancePct float64       // price tolerance (percent) for duplicate matching

    AvailabilityTTL time.Duration // TTL for cached availability entries
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Tuning knobs fall
// back to defaults when unset.
func Load() Config {
    return Config{
        Env:    must("APP_ENV"),  // environment (dev/test/prod)
        Port:   must("APP_PORT"), // port to bind the HTTP server
        DBUser: must("DB_USER"),  // database user
        DBPass: os.Getenv("DB_PASS"),
        DBHost: must("DB_HOST"),
        DBPort: must("DB_PORT"),
        DBName: must("DB_NAME"),

        AMQPURL: firstenv("RABBITMQ_URL", "AMQP_URL"),

        GatewayBaseURL:       must("GATEWAY_BASE_URL"),
        GatewayAPIKey:        must("GATEWAY_API_KEY"),
        GatewayWebhookSecret: must("GATEWAY_WEBHOOK_SECRET"),
        CheckoutSuccessURL:   must("CHECKOUT_SUCCESS_URL"),
        CheckoutCancelURL:    must("CHECKOUT_CANCEL_URL"),

        PendingDeadline: envDur("PENDING_PAYMENT_DEADLINE", 15*time.Minute),
        SweepInterval:   envDur("SWEEP_INTERVAL", time.Minute),
        SweepBatch:      envInt("SWEEP_BATCH", 100),

        RetryAttempts: envInt("BOOKING_RETRY_ATTEMPTS", 3),
        RetryBackoff:  envDur("BOOKING_RETRY_BACKOFF", 100*time.Millisecond),

        DupWindow:       envDur("DUPLICATE_WINDOW", 30*time.Second),
        DupTolerancePct: envFloat("DUPLICATE_PRICE_TOLERANCE_PCT", 1.0),

        AvailabilityTTL: envDur("AVAILABILITY_CACHE_TTL", 30*time.Second),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// firstenv returns the first non-empty value among the given variables.
func firstenv(keys ...string) string {
    for _, k := range keys {
        if v := os.Getenv(k); v != "" {
            return v
        }
    }
    return ""
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envFloat(k string, d float64) float64 {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if f, err := strconv.ParseFloat(v, 64); err == nil {
        return f
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
