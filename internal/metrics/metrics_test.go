package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geckopulse/engine/internal/cache"
	"github.com/geckopulse/engine/internal/store"
)

func TestTrackerFeedsAreBoundedMostRecentFirst(t *testing.T) {
	tr := NewTracker(nil)

	for i := 0; i < FeedSize+5; i++ {
		tr.RecordSale(store.RecentSale{Name: fmt.Sprintf("sale-%d", i), Timestamp: fmt.Sprint(i)})
		tr.RecordListing(store.RecentListing{Name: fmt.Sprintf("listing-%d", i)})
	}

	sales := tr.RecentSales()
	require.Len(t, sales, FeedSize)
	assert.Equal(t, fmt.Sprintf("sale-%d", FeedSize+4), sales[0].Name)
	assert.Equal(t, "sale-5", sales[FeedSize-1].Name)

	listings := tr.RecentListings()
	require.Len(t, listings, FeedSize)
	assert.Equal(t, fmt.Sprintf("listing-%d", FeedSize+4), listings[0].Name)

	assert.Equal(t, fmt.Sprint(FeedSize+4), tr.LastEventTime())
}

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker(nil)
	tr.IncrementSeen()
	tr.IncrementSeen()
	tr.IncrementSent()

	seen, sent := tr.Counts()
	assert.Equal(t, int64(2), seen)
	assert.Equal(t, int64(1), sent)
}

func TestTrackerSnapshotCopies(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(func() time.Time { return clock })

	tr.RecordSale(store.RecentSale{Name: "a"})
	clock = clock.Add(10 * time.Second)
	tr.RecordSale(store.RecentSale{Name: "b"})

	snap := tr.Snapshot()
	snap.RecentSales[0].Name = "mutated"

	assert.Equal(t, "b", tr.RecentSales()[0].Name)
	assert.Equal(t, 10*time.Second, snap.Uptime)
	assert.InDelta(t, 0.2, snap.EventRate, 1e-9)
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.ObserveAccepted(store.KindSale)
	c.ObserveDrop(DropDuplicate)
	c.ObserveDrop(DropDuplicate)
	c.ObserveDelivery(store.KindSale, nil)
	c.ObserveDelivery(store.KindSale, errors.New("telegram down"))
	c.SetVolume(12.5, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventsAccepted.WithLabelValues(store.KindSale)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.EventsDropped.WithLabelValues(DropDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AlertsSent.WithLabelValues(store.KindSale)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DeliveryFailures.WithLabelValues(store.KindSale)))
	assert.Equal(t, 12.5, testutil.ToFloat64(c.Volume24h))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Sales24h))
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveAccepted(store.KindSale)
		c.ObserveDrop(DropMint)
		c.ObserveDelivery(store.KindListing, nil)
		c.ObserveBatch(3, 0.1)
		c.SetVolume(1, 1)
		c.SetWatchMints(2)
		c.RegisterCacheStats("metadata", func() cache.Stats { return cache.Stats{} })
	})
}

func TestHandlerExposesCacheStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	c.RegisterCacheStats("metadata", func() cache.Stats { return cache.Stats{Hits: 7, Misses: 2} })

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `geckopulse_cache_hits_total{cache="metadata"} 7`))
	assert.True(t, strings.Contains(string(body), `geckopulse_cache_misses_total{cache="metadata"} 2`))
}
