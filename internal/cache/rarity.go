package cache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/geckopulse/engine/internal/store"
)

const (
	// DefaultRarityTTL is how long a rank is served per mint.
	DefaultRarityTTL = time.Hour

	// FallbackCollectionSize is the percentile denominator used when no
	// watch list is configured.
	FallbackCollectionSize = 10000

	rarityCapacity = 10000
)

// RarityFetcher fetches the rarity rank of a mint.
type RarityFetcher interface {
	FetchRank(ctx context.Context, mint string) (int, error)
}

// RarityCache caches rarity per mint, each entry with its own expiry.
type RarityCache struct {
	fetcher RarityFetcher
	total   func() int
	items   *ttlcache.Cache[string, store.RaritySnapshot]
}

// NewRarityCache creates a rarity cache. A nil fetcher means no provider key
// is configured. total returns the collection size used for percentiles;
// zero falls back to FallbackCollectionSize.
func NewRarityCache(fetcher RarityFetcher, ttl time.Duration, total func() int) *RarityCache {
	if ttl <= 0 {
		ttl = DefaultRarityTTL
	}
	if total == nil {
		total = func() int { return 0 }
	}
	return &RarityCache{
		fetcher: fetcher,
		total:   total,
		items: ttlcache.New[string, store.RaritySnapshot](
			ttlcache.WithTTL[string, store.RaritySnapshot](ttl),
			ttlcache.WithCapacity[string, store.RaritySnapshot](rarityCapacity),
			ttlcache.WithDisableTouchOnHit[string, store.RaritySnapshot](),
		),
	}
}

// Rarity returns the rank snapshot for mint. Failures are not cached.
func (c *RarityCache) Rarity(ctx context.Context, mint string) (*store.RaritySnapshot, bool) {
	if c.fetcher == nil || isPlaceholderMint(mint) {
		return nil, false
	}

	if item := c.items.Get(mint); item != nil {
		snap := item.Value()
		return &snap, true
	}

	rank, err := c.fetcher.FetchRank(ctx, mint)
	if err != nil {
		slog.Warn("rarity_fetch_failed", "mint", mint, "error", err)
		return nil, false
	}

	total := c.total()
	if total <= 0 {
		total = FallbackCollectionSize
	}
	snap := store.RaritySnapshot{
		Rank:       rank,
		Percentile: float64(rank) / float64(total) * 100,
	}
	c.items.Set(mint, snap, ttlcache.DefaultTTL)
	return &snap, true
}

// Len returns the number of cached, unexpired mints.
func (c *RarityCache) Len() int {
	c.items.DeleteExpired()
	return c.items.Len()
}

func isPlaceholderMint(mint string) bool {
	return mint == "" || strings.HasPrefix(mint, store.UnknownValue)
}
