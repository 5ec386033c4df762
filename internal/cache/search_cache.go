// Package cache implements the Redis-backed search result cache.
//
// Cached entries are the full pre-filter journey list for a (source,
// destination, date) key, including the per-journey seat availability
// computed at cache time. Filters, sorts and limits are applied by the
// search engine on every request, never baked into the cached value.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ankit/flywise/internal/model"
)

// ErrCacheMiss is returned when no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

const searchKeyPrefix = "journeys:"

// JourneyView is the cacheable projection of one journey in a search
// result. AvailableSeats is a snapshot taken at cache-fill time and may
// lag the store by up to the cache TTL.
type JourneyView struct {
	ID             uuid.UUID   `json:"id"`
	Legs           []model.Leg `json:"legs"`
	Source         string      `json:"source"`
	Destination    string      `json:"destination"`
	DepartureTime  time.Time   `json:"departure_time"`
	ArrivalTime    time.Time   `json:"arrival_time"`
	DurationMin    int         `json:"duration_min"`
	LayoverCount   int         `json:"layover_count"`
	TotalPrice     float64     `json:"total_price"`
	AvailableSeats int         `json:"available_seats"`
}

// SearchCache stores pre-filter journey lists keyed by route and date.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache creates a search cache with the given TTL.
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

// Key returns the cache key for a route and UTC date.
func Key(src, dst string, date time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", searchKeyPrefix, src, dst, date.UTC().Format("2006-01-02"))
}

// Get returns the cached journey list, ErrCacheMiss when absent.
func (c *SearchCache) Get(ctx context.Context, src, dst string, date time.Time) ([]JourneyView, error) {
	raw, err := c.client.Get(ctx, Key(src, dst, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("search cache get: %w", err)
	}
	var views []JourneyView
	if err := json.Unmarshal(raw, &views); err != nil {
		// A corrupt entry behaves like a miss; the caller refills it.
		return nil, ErrCacheMiss
	}
	return views, nil
}

// Set stores the journey list under the route/date key with the cache
// TTL. Empty results are cached too so absent routes do not hammer the
// store.
func (c *SearchCache) Set(ctx context.Context, src, dst string, date time.Time, views []JourneyView) error {
	if views == nil {
		views = []JourneyView{}
	}
	raw, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("search cache set: marshal: %w", err)
	}
	if err := c.client.Set(ctx, Key(src, dst, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("search cache set: %w", err)
	}
	return nil
}

// InvalidateRoute deletes every cached date for the route, so new
// journeys become visible before the TTL lapses. Uses SCAN rather than
// KEYS to stay safe on a busy instance.
func (c *SearchCache) InvalidateRoute(ctx context.Context, src, dst string) error {
	pattern := fmt.Sprintf("%s%s:%s:*", searchKeyPrefix, src, dst)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("invalidate route %s-%s: %w", src, dst, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("invalidate route %s-%s: scan: %w", src, dst, err)
	}
	return nil
}
