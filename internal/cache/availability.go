// Package cache holds the advisory Redis cache for court availability.
// The slot table is always authoritative; cached entries only shortcut
// read traffic and are dropped after every write that touches them.
package cache

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/court-reservation/internal/model"
)

// Availability caches the occupied slots of one court on one date.
// A nil Redis client disables the cache entirely; every method becomes
// a no-op miss so the server runs without Redis.
type Availability struct {
    rdb *redis.Client
    ttl time.Duration
}

// NewAvailability returns an Availability cache. rdb may be nil.
func NewAvailability(rdb *redis.Client, ttl time.Duration) *Availability {
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    return &Availability{rdb: rdb, ttl: ttl}
}

func key(courtID uint64, date string) string {
    return fmt.Sprintf("availability:%d:%s", courtID, date)
}

// Get returns the cached occupied slots and true on a hit.  Redis
// errors count as misses.
func (a *Availability) Get(ctx context.Context, courtID uint64, date string) ([]model.Slot, bool) {
    if a.rdb == nil {
        return nil, false
    }
    raw, err := a.rdb.Get(ctx, key(courtID, date)).Bytes()
    if err != nil {
        if err != redis.Nil {
            log.Printf("availability cache: get failed: %v", err)
        }
        return nil, false
    }
    var slots []model.Slot
    if err := json.Unmarshal(raw, &slots); err != nil {
        log.Printf("availability cache: corrupt entry dropped: %v", err)
        a.InvalidateAvailability(ctx, courtID, date)
        return nil, false
    }
    return slots, true
}

// Set stores the occupied slots for a court/date with the configured TTL.
func (a *Availability) Set(ctx context.Context, courtID uint64, date string, slots []model.Slot) {
    if a.rdb == nil {
        return
    }
    raw, err := json.Marshal(slots)
    if err != nil {
        return
    }
    if err := a.rdb.Set(ctx, key(courtID, date), raw, a.ttl).Err(); err != nil {
        log.Printf("availability cache: set failed: %v", err)
    }
}

// InvalidateAvailability drops the cached entry for a court/date.
// Called after any committed write that changed the court's slots.
func (a *Availability) InvalidateAvailability(ctx context.Context, courtID uint64, date string) {
    if a.rdb == nil {
        return
    }
    if err := a.rdb.Del(ctx, key(courtID, date)).Err(); err != nil {
        log.Printf("availability cache: invalidate failed: %v", err)
    }
}
