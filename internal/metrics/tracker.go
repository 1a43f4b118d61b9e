// Package metrics tracks pipeline counters and recent-event feeds, and
// exports them to Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/geckopulse/engine/internal/store"
)

// FeedSize is the number of recent sales and listings retained for display.
const FeedSize = 40

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	Seen           int64
	Sent           int64
	LastEventTime  string
	RecentSales    []store.RecentSale
	RecentListings []store.RecentListing
	EventRate      float64 // accepted events per second over the last minute
	Uptime         time.Duration
}

// Tracker provides thread-safe counters and bounded recent-event feeds.
type Tracker struct {
	mu              sync.RWMutex
	seen            int64
	sent            int64
	lastEventTime   string
	recentSales     []store.RecentSale    // most recent first
	recentListings  []store.RecentListing // most recent first
	startTime       time.Time
	eventTimestamps []time.Time
	now             func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		recentSales:     make([]store.RecentSale, 0, FeedSize),
		recentListings:  make([]store.RecentListing, 0, FeedSize),
		startTime:       now(),
		eventTimestamps: make([]time.Time, 0, 256),
		now:             now,
	}
}

// IncrementSeen counts a classified event.
func (m *Tracker) IncrementSeen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen++
}

// IncrementSent counts a delivered alert.
func (m *Tracker) IncrementSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

// RecordSale pushes a sale onto the recent-sales feed.
func (m *Tracker) RecordSale(sale store.RecentSale) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recentSales = pushFront(m.recentSales, sale)
	m.lastEventTime = sale.Timestamp
	m.markEventLocked()
}

// RecordListing pushes a listing onto the recent-listings feed.
func (m *Tracker) RecordListing(listing store.RecentListing) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recentListings = pushFront(m.recentListings, listing)
	m.markEventLocked()
}

// markEventLocked keeps the last 60 seconds of accepted-event times.
func (m *Tracker) markEventLocked() {
	now := m.now()
	m.eventTimestamps = append(m.eventTimestamps, now)

	cutoff := now.Add(-60 * time.Second)
	validIdx := 0
	for validIdx < len(m.eventTimestamps) && !m.eventTimestamps[validIdx].After(cutoff) {
		validIdx++
	}
	if validIdx > 0 {
		m.eventTimestamps = append(m.eventTimestamps[:0], m.eventTimestamps[validIdx:]...)
	}
}

// Counts returns the seen and sent counters.
func (m *Tracker) Counts() (seen, sent int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seen, m.sent
}

// LastEventTime returns the timestamp of the last recorded sale, or "".
func (m *Tracker) LastEventTime() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastEventTime
}

// RecentSales returns a copy of the sales feed, most recent first.
func (m *Tracker) RecentSales() []store.RecentSale {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.RecentSale(nil), m.recentSales...)
}

// RecentListings returns a copy of the listings feed, most recent first.
func (m *Tracker) RecentListings() []store.RecentListing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.RecentListing(nil), m.recentListings...)
}

// Snapshot returns a point-in-time copy of the tracker.
func (m *Tracker) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	rate := 0.0
	if len(m.eventTimestamps) > 0 {
		if elapsed := now.Sub(m.eventTimestamps[0]).Seconds(); elapsed > 0 {
			rate = float64(len(m.eventTimestamps)) / elapsed
		}
	}

	return Snapshot{
		Seen:           m.seen,
		Sent:           m.sent,
		LastEventTime:  m.lastEventTime,
		RecentSales:    append([]store.RecentSale(nil), m.recentSales...),
		RecentListings: append([]store.RecentListing(nil), m.recentListings...),
		EventRate:      rate,
		Uptime:         now.Sub(m.startTime),
	}
}

// pushFront prepends item and trims the feed to FeedSize.
func pushFront[T any](feed []T, item T) []T {
	if len(feed) < FeedSize {
		feed = append(feed, item)
	}
	copy(feed[1:], feed[:len(feed)-1])
	feed[0] = item
	return feed
}
