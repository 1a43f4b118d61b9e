package pipeline

import "github.com/geckopulse/engine/internal/config"

// WebhookPath is the route the webhook intake is mounted on.
const WebhookPath = "/webhook/helius"

// Status is the operator view of the pipeline.
type Status struct {
	SalesSeen       int64    `json:"sales_seen"`
	SalesSent       int64    `json:"sales_sent"`
	LastEventTime   string   `json:"last_event_time"`
	WatchSources    []string `json:"watch_sources"`
	WatchMintsCount int      `json:"watch_mints_count"`
	MintlistURL     string   `json:"mintlist_url"`
	Volume24h       float64  `json:"volume_24h"`
	Sales24h        int      `json:"sales_24h"`
}

// Status builds a status snapshot. The volume aggregate prunes the window
// first.
func (p *Pipeline) Status() Status {
	seen, sent := p.tracker.Counts()
	volume, count := p.detector.RollingVolume24h()
	p.collectors.SetVolume(volume, count)

	last := p.tracker.LastEventTime()
	if last == "" {
		last = "No sales yet"
	}
	mintlist := p.cfg.WatchMintlistURL
	if mintlist == "" {
		mintlist = "Not set"
	}

	return Status{
		SalesSeen:       seen,
		SalesSent:       sent,
		LastEventTime:   last,
		WatchSources:    p.sources.Sorted(),
		WatchMintsCount: p.mints.Len(),
		MintlistURL:     mintlist,
		Volume24h:       volume,
		Sales24h:        count,
	}
}

// ConfigSnapshot returns the masked configuration view.
func (p *Pipeline) ConfigSnapshot() config.Snapshot {
	return p.cfg.Snapshot(p.mints.Len(), WebhookPath)
}
