package detector

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geckopulse/engine/internal/store"
)

const (
	// VolumeWindow is the span of the rolling volume aggregate.
	VolumeWindow = 24 * time.Hour

	// DefaultWindowCapacity caps the number of retained sales regardless of age.
	DefaultWindowCapacity = 2000
)

// SalesWindow is a time-ordered log of recent sales. Entries are kept sorted
// by event time and only ever removed from the front.
type SalesWindow struct {
	mu       sync.RWMutex
	entries  []store.SaleWindowEntry
	capacity int
	maxAge   float64 // seconds
	now      func() time.Time
}

// NewSalesWindow creates a window retaining at most capacity entries no
// older than VolumeWindow.
func NewSalesWindow(capacity int, now func() time.Time) *SalesWindow {
	if capacity < 1 {
		capacity = DefaultWindowCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &SalesWindow{
		entries:  make([]store.SaleWindowEntry, 0, min(capacity, 256)),
		capacity: capacity,
		maxAge:   VolumeWindow.Seconds(),
		now:      now,
	}
}

// Record appends a sale and prunes. Sales without a buyer or with a negative
// price are ignored. It reports whether the sale was appended.
func (w *SalesWindow) Record(eventTime, priceSOL float64, buyer string) bool {
	if buyer == "" || priceSOL < 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entry := store.SaleWindowEntry{EventTime: eventTime, PriceSOL: priceSOL, Buyer: buyer}
	n := len(w.entries)
	if n == 0 || w.entries[n-1].EventTime <= eventTime {
		w.entries = append(w.entries, entry)
	} else {
		// Late arrival: insert after every entry with the same or earlier time.
		i := sort.Search(n, func(i int) bool { return w.entries[i].EventTime > eventTime })
		w.entries = append(w.entries, store.SaleWindowEntry{})
		copy(w.entries[i+1:], w.entries[i:])
		w.entries[i] = entry
	}

	if over := len(w.entries) - w.capacity; over > 0 {
		w.entries = w.entries[over:]
	}

	w.pruneLocked(w.nowSeconds())
	return true
}

// Prune drops entries older than the volume window relative to now.
func (w *SalesWindow) Prune(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(epochSeconds(now))
}

// pruneLocked must be called with the write lock held.
func (w *SalesWindow) pruneLocked(now float64) {
	cutoff := now - w.maxAge

	validIdx := sort.Search(len(w.entries), func(i int) bool {
		return w.entries[i].EventTime >= cutoff
	})
	if validIdx == 0 {
		return
	}

	// Copy down so the backing array does not grow without bound.
	remaining := copy(w.entries, w.entries[validIdx:])
	clear(w.entries[remaining:])
	w.entries = w.entries[:remaining]
}

// RollingVolume24h returns the summed price (rounded to 2 decimals) and the
// count of sales inside the last 24 hours.
func (w *SalesWindow) RollingVolume24h() (float64, int) {
	now := w.nowSeconds()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)

	cutoff := now - w.maxAge
	total := decimal.Zero
	count := 0
	for _, e := range w.entries {
		if e.EventTime >= cutoff {
			total = total.Add(decimal.NewFromFloat(e.PriceSOL))
			count++
		}
	}

	volume, _ := total.Round(2).Float64()
	return volume, count
}

// CountBuyer counts retained sales by buyer with event time inside the
// trailing span.
func (w *SalesWindow) CountBuyer(buyer string, span time.Duration) int {
	if buyer == "" {
		return 0
	}

	cutoff := w.nowSeconds() - span.Seconds()

	w.mu.RLock()
	defer w.mu.RUnlock()

	count := 0
	for _, e := range w.entries {
		if e.EventTime >= cutoff && e.Buyer == buyer {
			count++
		}
	}
	return count
}

// Len returns the number of retained entries.
func (w *SalesWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Entries returns a copy of the retained entries, oldest first.
func (w *SalesWindow) Entries() []store.SaleWindowEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]store.SaleWindowEntry(nil), w.entries...)
}

func (w *SalesWindow) nowSeconds() float64 {
	return epochSeconds(w.now())
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
