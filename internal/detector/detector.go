// Package detector classifies sales and keeps the rolling sales window they
// are measured against.
package detector

import (
	"time"

	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/store"
)

// Detector applies the whale, floor and sweep rules to sales.
type Detector struct {
	whaleSOL    float64
	sweepCount  int
	sweepWindow time.Duration
	window      *SalesWindow
}

// NewDetector creates a Detector reading thresholds from cfg and measuring
// sweeps against window.
func NewDetector(cfg *config.Config, window *SalesWindow) *Detector {
	return &Detector{
		whaleSOL:    cfg.WhaleSOL,
		sweepCount:  cfg.SweepCount,
		sweepWindow: cfg.SweepWindow,
		window:      window,
	}
}

// DetectSweep returns how many purchases buyer has made within the sweep
// window counting the sale being classified, or 0 below the threshold.
// It must run before that sale is recorded; the window only holds prior
// purchases at that point.
func (d *Detector) DetectSweep(buyer string) int {
	if buyer == "" {
		return 0
	}

	count := d.window.CountBuyer(buyer, d.sweepWindow) + 1
	if count >= d.sweepCount {
		return count
	}
	return 0
}

// Tags classifies a sale against the floor snapshot and buyer history.
func (d *Detector) Tags(nft store.NftInfo, floor *store.FloorSnapshot) []string {
	return SaleTags(nft.AmountLamports, nft.HasAmount, floor, d.whaleSOL, d.DetectSweep(nft.Buyer))
}

// RecordSale appends a classified sale to the window. Sales without an
// amount are not recorded.
func (d *Detector) RecordSale(nft store.NftInfo, eventTime time.Time) bool {
	if !nft.HasAmount {
		return false
	}
	return d.window.Record(epochSeconds(eventTime), LamportsToSOL(nft.AmountLamports), nft.Buyer)
}

// RollingVolume24h returns the 24h sales volume and count.
func (d *Detector) RollingVolume24h() (float64, int) {
	return d.window.RollingVolume24h()
}

// Window exposes the underlying sales window.
func (d *Detector) Window() *SalesWindow {
	return d.window
}
