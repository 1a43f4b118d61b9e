package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/geckopulse/engine/internal/store"
)

// DefaultMetadataCapacity is the number of mints kept in the metadata cache.
const DefaultMetadataCapacity = 500

// MetadataFetcher resolves off-chain display metadata for a mint.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, mint string) (store.MetadataEntry, error)
}

// Stats counts read-through outcomes.
type Stats struct {
	Hits   uint64
	Misses uint64
	Errors uint64
}

// MetadataCache is a read-through, FIFO-bounded cache of mint metadata.
type MetadataCache struct {
	fetcher MetadataFetcher

	mu      sync.RWMutex
	entries *FIFO[string, store.MetadataEntry]

	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

// NewMetadataCache creates a cache of at most capacity mints backed by fetcher.
func NewMetadataCache(fetcher MetadataFetcher, capacity int) *MetadataCache {
	return &MetadataCache{
		fetcher: fetcher,
		entries: NewFIFO[string, store.MetadataEntry](capacity),
	}
}

// GetOrFetch returns cached metadata for mint, fetching and storing it on a
// miss. ok is false when nothing could be resolved.
func (c *MetadataCache) GetOrFetch(ctx context.Context, mint string) (store.MetadataEntry, bool) {
	if mint == "" {
		return store.MetadataEntry{}, false
	}

	c.mu.RLock()
	entry, ok := c.entries.Get(mint)
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return entry, true
	}
	c.misses.Add(1)

	if c.fetcher == nil {
		return store.MetadataEntry{}, false
	}

	v, err, _ := c.group.Do(mint, func() (interface{}, error) {
		// Waiters from other requests share this call, so it must outlive
		// the caller that started it.
		fetched, err := c.fetcher.FetchMetadata(context.WithoutCancel(ctx), mint)
		if err != nil {
			return store.MetadataEntry{}, err
		}
		if !fetched.Empty() {
			c.store(mint, fetched)
		}
		return fetched, nil
	})
	if err != nil {
		c.errors.Add(1)
		if !errors.Is(err, context.Canceled) {
			slog.Warn("metadata_fetch_failed", "mint", mint, "error", err)
		}
		return store.MetadataEntry{}, false
	}

	fetched := v.(store.MetadataEntry)
	if fetched.Empty() {
		return store.MetadataEntry{}, false
	}
	return fetched, true
}

// Enrich merges cached or freshly fetched metadata into nft. Records that
// are already enriched are returned unchanged and never trigger a fetch; any
// failure returns nft as given.
func (c *MetadataCache) Enrich(ctx context.Context, nft store.NftInfo) store.NftInfo {
	if nft.Enriched() || nft.Mint == "" {
		return nft
	}

	entry, ok := c.GetOrFetch(ctx, nft.Mint)
	if !ok {
		return nft
	}
	return entry.Apply(nft)
}

func (c *MetadataCache) store(mint string, entry store.MetadataEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if evicted, ok := c.entries.Put(mint, entry); ok {
		slog.Debug("metadata_cache_evicted", "mint", evicted)
	}
}

// Contains reports whether mint is cached.
func (c *MetadataCache) Contains(mint string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Contains(mint)
}

// Len returns the number of cached mints.
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Stats returns hit/miss/error counters.
func (c *MetadataCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}
