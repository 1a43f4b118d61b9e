package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/geckopulse/engine/internal/store"
)

// DefaultFloorTTL is how long a fetched floor price is served.
const DefaultFloorTTL = 60 * time.Second

// FloorQuote is a raw floor price as returned by the provider.
type FloorQuote struct {
	Lamports float64
	Raw      json.RawMessage
}

// FloorFetcher fetches the current collection floor.
type FloorFetcher interface {
	FetchFloor(ctx context.Context) (FloorQuote, error)
}

// FloorCache holds the single process-wide floor snapshot.
type FloorCache struct {
	fetcher FloorFetcher
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	snapshot  *store.FloorSnapshot
	fetchedAt time.Time

	group singleflight.Group
}

// NewFloorCache creates a floor cache. A nil fetcher means no collection is
// configured and Floor always reports absent.
func NewFloorCache(fetcher FloorFetcher, ttl time.Duration, now func() time.Time) *FloorCache {
	if ttl <= 0 {
		ttl = DefaultFloorTTL
	}
	if now == nil {
		now = time.Now
	}
	return &FloorCache{fetcher: fetcher, ttl: ttl, now: now}
}

// Floor returns the cached snapshot while it is younger than the TTL and
// refetches otherwise. A failed refetch reports absent; the expired value is
// never served.
func (c *FloorCache) Floor(ctx context.Context) (*store.FloorSnapshot, bool) {
	if c.fetcher == nil {
		return nil, false
	}

	if snap, ok := c.fresh(); ok {
		return snap, true
	}

	v, err, _ := c.group.Do("floor", func() (interface{}, error) {
		// Another caller may have refreshed while we waited on the group.
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}

		quote, err := c.fetcher.FetchFloor(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		priceSOL, _ := decimal.NewFromFloat(quote.Lamports).
			Div(decimal.NewFromInt(store.LamportsPerSOL)).
			Float64()
		snap := &store.FloorSnapshot{PriceSOL: priceSOL, Raw: quote.Raw}

		c.mu.Lock()
		c.snapshot = snap
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		slog.Warn("floor_fetch_failed", "error", err)
		return nil, false
	}
	return v.(*store.FloorSnapshot), true
}

func (c *FloorCache) fresh() (*store.FloorSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot, true
}
