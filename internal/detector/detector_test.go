package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/store"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func sol(v float64) int64 { return int64(v * store.LamportsPerSOL) }

func TestSaleTags(t *testing.T) {
	floor50 := &store.FloorSnapshot{PriceSOL: 50}

	tests := []struct {
		name     string
		lamports int64
		floor    *store.FloorSnapshot
		whaleSOL float64
		sweep    int
		expected []string
	}{
		{"whale and above floor boundary", sol(60), floor50, 50, 0, []string{"Whale", "Above Floor"}},
		{"under floor boundary", sol(49), floor50, 50, 0, []string{"Under Floor"}},
		{"near floor", 50_500_000_000, floor50, 100, 0, []string{"Near Floor"}},
		{"near floor and whale", 50_500_000_000, floor50, 50, 0, []string{"Whale", "Near Floor"}},
		{"whale threshold inclusive", sol(50), nil, 50, 0, []string{"Whale"}},
		{"no floor no floor tag", sol(10), nil, 50, 0, nil},
		{"zero floor treated as unknown", sol(10), &store.FloorSnapshot{}, 50, 0, nil},
		{"sweep appended last", sol(49), floor50, 50, 3, []string{"Under Floor", "Sweep x3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SaleTags(tt.lamports, true, tt.floor, tt.whaleSOL, tt.sweep))
		})
	}
}

func TestSaleTagsWithoutAmount(t *testing.T) {
	tags := SaleTags(0, false, &store.FloorSnapshot{PriceSOL: 50}, 50, 4)
	assert.Equal(t, []string{"Sweep x4"}, tags)
}

func TestRollingVolume24h(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	// Capacity above the event count isolates the time horizon from the cap.
	w := NewSalesWindow(100_000, clock.Now)

	for ts := 0; ts <= 86500; ts++ {
		clock.t = time.Unix(int64(ts), 0)
		require.True(t, w.Record(float64(ts), 1.0, "buyer"))
	}

	volume, count := w.RollingVolume24h()
	// Entries at t < 100 are gone; t = 100 sits exactly on the inclusive boundary.
	assert.Equal(t, 86401, count)
	assert.Equal(t, 86401.0, volume)

	entries := w.Entries()
	assert.Equal(t, 100.0, entries[0].EventTime)
	assert.Equal(t, 86401, w.Len())
}

func TestRollingVolume24hAtDefaultCapacity(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	w := NewSalesWindow(DefaultWindowCapacity, clock.Now)

	for ts := 0; ts <= 86500; ts++ {
		clock.t = time.Unix(int64(ts), 0)
		w.Record(float64(ts), 1.0, "buyer")
	}

	volume, count := w.RollingVolume24h()
	assert.Equal(t, DefaultWindowCapacity, count, "the cap bounds the window before the 24h horizon does")
	assert.Equal(t, float64(DefaultWindowCapacity), volume)
	assert.Equal(t, float64(86500-DefaultWindowCapacity+1), w.Entries()[0].EventTime)
}

func TestRollingVolumeRoundsToCents(t *testing.T) {
	clock := &stepClock{t: time.Unix(1_000, 0)}
	w := NewSalesWindow(DefaultWindowCapacity, clock.Now)
	w.Record(990, 0.111, "a")
	w.Record(995, 0.222, "b")

	volume, count := w.RollingVolume24h()
	assert.Equal(t, 2, count)
	assert.Equal(t, 0.33, volume)
}

func TestSalesWindowCapacity(t *testing.T) {
	clock := &stepClock{t: time.Unix(10_000, 0)}
	w := NewSalesWindow(DefaultWindowCapacity, clock.Now)

	for i := 0; i < DefaultWindowCapacity+5; i++ {
		w.Record(float64(9_000+i%500), 1, "b")
	}
	assert.Equal(t, DefaultWindowCapacity, w.Len())
}

func TestSalesWindowStaysOrdered(t *testing.T) {
	clock := &stepClock{t: time.Unix(1_000, 0)}
	w := NewSalesWindow(DefaultWindowCapacity, clock.Now)

	for _, ts := range []float64{900, 950, 920, 990, 900} {
		w.Record(ts, 1, "b")
	}

	entries := w.Entries()
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].EventTime, entries[i].EventTime)
	}
}

func TestSalesWindowRejectsUnresolvable(t *testing.T) {
	w := NewSalesWindow(DefaultWindowCapacity, nil)
	assert.False(t, w.Record(float64(time.Now().Unix()), 1, ""))
	assert.False(t, w.Record(float64(time.Now().Unix()), -1, "b"))
	assert.Zero(t, w.Len())
}

func newTestDetector(clock *stepClock) *Detector {
	cfg := &config.Config{
		WhaleSOL:    50,
		SweepCount:  3,
		SweepWindow: 120 * time.Second,
	}
	return NewDetector(cfg, NewSalesWindow(DefaultWindowCapacity, clock.Now))
}

func TestDetectorSweep(t *testing.T) {
	clock := &stepClock{t: time.Unix(1_700_000_000, 0)}
	d := newTestDetector(clock)

	buy := func(buyer string) []string {
		nft := store.NftInfo{Buyer: buyer, AmountLamports: sol(1), HasAmount: true}
		tags := d.Tags(nft, nil)
		d.RecordSale(nft, clock.t)
		clock.t = clock.t.Add(10 * time.Second)
		return tags
	}

	assert.Empty(t, buy("B"))
	assert.Empty(t, buy("B"))
	assert.Equal(t, []string{"Sweep x3"}, buy("B"))

	// A different buyer inside the same window gets no sweep tag.
	assert.Empty(t, buy("C"))
}

func TestDetectorSweepWindowExpires(t *testing.T) {
	clock := &stepClock{t: time.Unix(1_700_000_000, 0)}
	d := newTestDetector(clock)

	for i := 0; i < 2; i++ {
		d.RecordSale(store.NftInfo{Buyer: "B", AmountLamports: sol(1), HasAmount: true}, clock.t)
	}

	assert.Equal(t, 3, d.DetectSweep("B"))

	clock.t = clock.t.Add(121 * time.Second)
	assert.Zero(t, d.DetectSweep("B"))
	assert.Zero(t, d.DetectSweep(""))
}

func TestDetectorRecordSaleNeedsAmount(t *testing.T) {
	clock := &stepClock{t: time.Unix(1_700_000_000, 0)}
	d := newTestDetector(clock)

	assert.False(t, d.RecordSale(store.NftInfo{Buyer: "B"}, clock.t))
	assert.True(t, d.RecordSale(store.NftInfo{Buyer: "B", AmountLamports: 12_340_000_000, HasAmount: true}, clock.t))

	volume, count := d.RollingVolume24h()
	assert.Equal(t, 1, count)
	assert.Equal(t, 12.34, volume)
}
