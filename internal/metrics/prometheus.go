package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geckopulse/engine/internal/cache"
)

const namespace = "geckopulse"

// Drop reasons reported by the pipeline.
const (
	DropDuplicate = "duplicate"
	DropSource    = "source"
	DropMint      = "mint"
)

// Collectors holds the Prometheus instruments. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	EventsAccepted   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	AlertsSent       *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	BatchSize        prometheus.Histogram
	Volume24h        prometheus.Gauge
	Sales24h         prometheus.Gauge
	WatchMints       prometheus.Gauge

	factory promauto.Factory
}

// NewCollectors registers all instruments with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		EventsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_accepted_total",
			Help:      "Events that passed classification, dedup and filters, by kind",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_dropped_total",
			Help:      "Classified events dropped before enrichment, by reason",
		}, []string{"reason"}),
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "sent_total",
			Help:      "Alerts delivered to the notifier, by kind",
		}, []string{"kind"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "delivery_failures_total",
			Help:      "Alerts the notifier failed to deliver, by kind",
		}, []string{"kind"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one webhook batch",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_size",
			Help:      "Number of events per webhook batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		Volume24h: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "volume_24h_sol",
			Help:      "Rolling 24h sales volume in SOL",
		}),
		Sales24h: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "count_24h",
			Help:      "Rolling 24h sales count",
		}),
		WatchMints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "watch_mints",
			Help:      "Number of mints on the watch list",
		}),
		factory: factory,
	}
}

// RegisterCacheStats exports a cache's hit/miss/error counters.
func (c *Collectors) RegisterCacheStats(name string, stats func() cache.Stats) {
	if c == nil {
		return
	}

	labels := prometheus.Labels{"cache": name}
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "cache",
		Name:        "hits_total",
		Help:        "Cache lookups served from memory",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Hits) })
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "cache",
		Name:        "misses_total",
		Help:        "Cache lookups that required a fetch",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Misses) })
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "cache",
		Name:        "fetch_errors_total",
		Help:        "Failed cache fetches",
		ConstLabels: labels,
	}, func() float64 { return float64(stats().Errors) })
}

// ObserveAccepted counts an accepted event.
func (c *Collectors) ObserveAccepted(kind string) {
	if c == nil {
		return
	}
	c.EventsAccepted.WithLabelValues(kind).Inc()
}

// ObserveDrop counts a dropped event.
func (c *Collectors) ObserveDrop(reason string) {
	if c == nil {
		return
	}
	c.EventsDropped.WithLabelValues(reason).Inc()
}

// ObserveDelivery counts a delivery attempt outcome.
func (c *Collectors) ObserveDelivery(kind string, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.DeliveryFailures.WithLabelValues(kind).Inc()
		return
	}
	c.AlertsSent.WithLabelValues(kind).Inc()
}

// ObserveBatch records a processed batch.
func (c *Collectors) ObserveBatch(size int, seconds float64) {
	if c == nil {
		return
	}
	c.BatchSize.Observe(float64(size))
	c.BatchDuration.Observe(seconds)
}

// SetVolume updates the rolling volume gauges.
func (c *Collectors) SetVolume(volume float64, count int) {
	if c == nil {
		return
	}
	c.Volume24h.Set(volume)
	c.Sales24h.Set(float64(count))
}

// SetWatchMints updates the watch-list size gauge.
func (c *Collectors) SetWatchMints(n int) {
	if c == nil {
		return
	}
	c.WatchMints.Set(float64(n))
}

// Handler returns an HTTP handler for the /metrics endpoint of reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
