package main // Entry point package

import (
    "context"
    "log"
    "log/slog"
    "os"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/court-reservation/internal/cache"
    "github.com/iliyamo/court-reservation/internal/config"
    "github.com/iliyamo/court-reservation/internal/database"
    "github.com/iliyamo/court-reservation/internal/gateway"
    "github.com/iliyamo/court-reservation/internal/handler"
    "github.com/iliyamo/court-reservation/internal/middleware"
    "github.com/iliyamo/court-reservation/internal/queue"
    "github.com/iliyamo/court-reservation/internal/router"
    "github.com/iliyamo/court-reservation/internal/service/reconcile"
    "github.com/iliyamo/court-reservation/internal/service/reservation"
    "github.com/iliyamo/court-reservation/internal/service/sweeper"

    "github.com/iliyamo/court-reservation/internal/repository"
)

func main() {
    _ = godotenv.Load() // .env is optional; real env vars win
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is optional: a nil client disables the availability cache
    // and the rate limiter, and the slot table stays authoritative.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable; availability cache and rate limiting disabled")
    }
    avail := cache.NewAvailability(rdb, cfg.AvailabilityTTL)

    store := repository.NewStore(db)

    gw := gateway.New(cfg.GatewayBaseURL, cfg.GatewayAPIKey)

    // The broker is optional too: with no URL configured, lifecycle
    // events are skipped and no consumer runs.
    var notifier reconcile.Notifier
    if cfg.AMQPURL != "" {
        notifier = queue.NewNotifier(queue.NewPublisher(cfg.AMQPURL))
    } else {
        log.Println("rabbitmq not configured; booking event publishing disabled")
    }

    logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

    reservations := reservation.New(repository.NewReservationStore(store), avail, cfg.RetryAttempts, cfg.RetryBackoff)
    detector := reservation.NewDetector(store.Bookings(), cfg.DupWindow, cfg.DupTolerancePct)
    reconciler := reconcile.New(repository.NewReconcileStore(store), notifier, avail, logger)

    // Background expiry sweeper: bookings that never paid get expired
    // and their windows freed.
    sw := sweeper.New(store.Bookings(), reconciler, cfg.SweepInterval, cfg.PendingDeadline, cfg.SweepBatch, logger)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go sw.Run(ctx)

    // Background consumer turns lifecycle events into notification log
    // lines; it reconnects on broker failure.
    if cfg.AMQPURL != "" {
        go func() {
            if err := queue.StartBookingConsumer(cfg.AMQPURL); err != nil {
                log.Printf("booking consumer stopped: %v", err)
            }
        }()
    }

    e := echo.New()
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    router.RegisterRoutes(e)
    router.RegisterBooking(e,
        handler.NewBookingHandler(reservations, detector, reconciler, store, gw,
            cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, cfg.PendingDeadline),
        handler.NewAvailabilityHandler(store.Venues(), store.Slots(), avail),
        handler.NewWebhookHandler(cfg.GatewayWebhookSecret, store.Payments(), reconciler),
    )

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
