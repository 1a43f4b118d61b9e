// Package pipeline runs webhook events through dedup, filtering, enrichment,
// tagging, delivery and recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/geckopulse/engine/internal/alert"
	"github.com/geckopulse/engine/internal/cache"
	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/detector"
	"github.com/geckopulse/engine/internal/ingest"
	"github.com/geckopulse/engine/internal/metrics"
	"github.com/geckopulse/engine/internal/store"
)

// TimeLayout renders event times that arrived without a timestamp.
const TimeLayout = "2006-01-02 15:04:05 UTC"

// ErrNoNotifier is returned by the simulate operations when delivery is not
// configured. The simulated event is still recorded.
var ErrNoNotifier = errors.New("notifier not configured")

// Result is the outcome of one webhook batch.
type Result struct {
	Received int `json:"received"`
	Sent     int `json:"sent"`
}

// Options carries the collaborators of a Pipeline. Nil fields get unconfigured
// defaults.
type Options struct {
	Signatures *cache.SignatureRing
	Metadata   *cache.MetadataCache
	Floor      *cache.FloorCache
	Rarity     *cache.RarityCache
	Detector   *detector.Detector
	Tracker    *metrics.Tracker
	Collectors *metrics.Collectors
	Notifier   alert.Notifier
	Sources    *ingest.WatchList
	Mints      *ingest.WatchList
	HTTPClient *http.Client
	Now        func() time.Time
}

// Pipeline owns the caches and feeds of the sales engine.
type Pipeline struct {
	cfg        *config.Config
	signatures *cache.SignatureRing
	metadata   *cache.MetadataCache
	floor      *cache.FloorCache
	rarity     *cache.RarityCache
	detector   *detector.Detector
	tracker    *metrics.Tracker
	collectors *metrics.Collectors
	notifier   alert.Notifier
	sources    *ingest.WatchList
	mints      *ingest.WatchList
	httpClient *http.Client
	now        func() time.Time

	// saleMu keeps sweep counting and window appends atomic per sale.
	saleMu sync.Mutex
}

// New creates a Pipeline.
func New(cfg *config.Config, opts Options) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		signatures: opts.Signatures,
		metadata:   opts.Metadata,
		floor:      opts.Floor,
		rarity:     opts.Rarity,
		detector:   opts.Detector,
		tracker:    opts.Tracker,
		collectors: opts.Collectors,
		notifier:   opts.Notifier,
		sources:    opts.Sources,
		mints:      opts.Mints,
		httpClient: opts.HTTPClient,
		now:        opts.Now,
	}

	if p.now == nil {
		p.now = time.Now
	}
	if p.sources == nil {
		p.sources = ingest.NewSourceList(cfg.WatchSources)
	}
	if p.mints == nil {
		p.mints = ingest.NewWatchList(cfg.WatchMints)
	}
	if p.signatures == nil {
		p.signatures = cache.NewSignatureRing(cache.DefaultSignatureCapacity)
	}
	if p.metadata == nil {
		p.metadata = cache.NewMetadataCache(nil, cache.DefaultMetadataCapacity)
	}
	if p.floor == nil {
		p.floor = cache.NewFloorCache(nil, cache.DefaultFloorTTL, p.now)
	}
	if p.rarity == nil {
		p.rarity = cache.NewRarityCache(nil, cache.DefaultRarityTTL, p.mints.Len)
	}
	if p.detector == nil {
		p.detector = detector.NewDetector(cfg, detector.NewSalesWindow(detector.DefaultWindowCapacity, p.now))
	}
	if p.tracker == nil {
		p.tracker = metrics.NewTracker(p.now)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}

	p.collectors.SetWatchMints(p.mints.Len())
	return p
}

// ProcessBatch runs each event of a batch in order and reports how many were
// received and delivered.
func (p *Pipeline) ProcessBatch(ctx context.Context, batchID string, events []store.RawEvent) Result {
	start := p.now()
	log := slog.With("batch_id", batchID)

	result := Result{Received: len(events)}
	for _, event := range events {
		if p.processEvent(ctx, log, event) {
			result.Sent++
		}
	}

	volume, count := p.detector.RollingVolume24h()
	p.collectors.SetVolume(volume, count)
	p.collectors.ObserveBatch(len(events), p.now().Sub(start).Seconds())

	log.Info("webhook_batch_processed",
		"received", result.Received,
		"sent", result.Sent,
		"duration", p.now().Sub(start),
	)
	return result
}

// processEvent reports whether the event was delivered.
func (p *Pipeline) processEvent(ctx context.Context, log *slog.Logger, event store.RawEvent) bool {
	kind := ingest.Classify(event.Type)
	if kind == "" {
		return false
	}
	p.tracker.IncrementSeen()

	signature := ingest.Signature(event)
	if signature != "" && p.signatures.SeenBefore(signature) {
		log.Debug("event_duplicate", "signature", signature)
		p.collectors.ObserveDrop(metrics.DropDuplicate)
		return false
	}

	if !p.sources.Allows(event.Source) {
		log.Debug("event_source_filtered", "source", event.Source, "signature", signature)
		p.collectors.ObserveDrop(metrics.DropSource)
		return false
	}

	nft := ingest.ExtractNftInfo(event)
	if !p.mints.Allows(nft.Mint) {
		log.Debug("event_mint_filtered", "mint", nft.Mint, "signature", signature)
		p.collectors.ObserveDrop(metrics.DropMint)
		return false
	}

	p.collectors.ObserveAccepted(kind)
	enriched := p.metadata.Enrich(ctx, nft)
	eventTime := ingest.ParseEventTime(event, p.now())
	rawTime := ingest.RawTimeString(event)
	if rawTime == "" {
		rawTime = p.now().UTC().Format(TimeLayout)
	}

	if kind == store.KindSale {
		a := p.tagSale(ctx, enriched, eventTime)
		delivered := p.deliver(ctx, log, a) == nil
		p.tracker.RecordSale(recentSale(a, rawTime))
		return delivered
	}

	a := store.Alert{Kind: store.KindListing, NFT: enriched, EventTime: eventTime}
	delivered := false
	if p.cfg.SendListingAlerts {
		delivered = p.deliver(ctx, log, a) == nil
	}
	p.tracker.RecordListing(recentListing(a, rawTime))
	return delivered
}

// tagSale computes tags against the current floor and the buyer's prior
// purchases, then appends the sale to the window.
func (p *Pipeline) tagSale(ctx context.Context, nft store.NftInfo, eventTime time.Time) store.Alert {
	floor, _ := p.floor.Floor(ctx)
	rarity, _ := p.rarity.Rarity(ctx, nft.Mint)

	p.saleMu.Lock()
	tags := p.detector.Tags(nft, floor)
	p.detector.RecordSale(nft, eventTime)
	p.saleMu.Unlock()

	return store.Alert{
		Kind:      store.KindSale,
		NFT:       nft,
		Tags:      tags,
		Floor:     floor,
		Rarity:    rarity,
		EventTime: eventTime,
	}
}

// deliver hands a to the notifier. Only delivered sales count toward the
// sent total; listings are reported per batch but not counted there.
func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, a store.Alert) error {
	if p.notifier == nil {
		log.Debug("alert_not_delivered", "reason", "notifier not configured", "mint", a.NFT.Mint)
		return ErrNoNotifier
	}

	err := p.notifier.Notify(ctx, a)
	p.collectors.ObserveDelivery(a.Kind, err)
	if err != nil {
		log.Warn("alert_delivery_failed",
			"kind", a.Kind,
			"mint", a.NFT.Mint,
			"signature", a.NFT.Signature,
			"error", err,
		)
		return err
	}

	if a.Kind == store.KindSale {
		p.tracker.IncrementSent()
	}
	log.Info("alert_sent", "kind", a.Kind, "mint", a.NFT.Mint, "tags", a.Tags)
	return nil
}

// ReloadMintlist fetches the configured mint list and merges it into the
// watch list. It returns the number of newly added mints.
func (p *Pipeline) ReloadMintlist(ctx context.Context) (int, error) {
	url := p.cfg.WatchMintlistURL
	if url == "" {
		return 0, ingest.ErrNotConfigured
	}

	mints, err := ingest.FetchMintList(ctx, p.httpClient, url)
	if err != nil {
		return 0, fmt.Errorf("load mintlist %s: %w", url, err)
	}

	added := p.mints.Add(mints...)
	p.collectors.SetWatchMints(p.mints.Len())
	slog.Info("mintlist_loaded", "url", url, "mints", len(mints), "added", added, "watch_mints", p.mints.Len())
	return added, nil
}

// Tracker exposes the counters and recent-event feeds.
func (p *Pipeline) Tracker() *metrics.Tracker {
	return p.tracker
}

// WatchMints returns the current mint watch-list size.
func (p *Pipeline) WatchMints() int {
	return p.mints.Len()
}

func recentSale(a store.Alert, timestamp string) store.RecentSale {
	nft := a.NFT
	return store.RecentSale{
		Name:        orUnknown(nft.Name, store.UnknownNFT),
		Mint:        orUnknown(nft.Mint, store.UnknownValue),
		Price:       alert.FormatPrice(nft.AmountLamports, nft.HasAmount, store.UnknownValue),
		Marketplace: orUnknown(nft.Marketplace, store.UnknownValue),
		Buyer:       orUnknown(nft.Buyer, store.UnknownValue),
		Seller:      orUnknown(nft.Seller, store.UnknownValue),
		Signature:   orUnknown(nft.Signature, store.UnknownValue),
		Timestamp:   timestamp,
		Image:       nft.Image,
		Traits:      nonNil(nft.Traits),
		Collection:  nft.Collection,
		Tags:        nonNil(a.Tags),
	}
}

func recentListing(a store.Alert, timestamp string) store.RecentListing {
	nft := a.NFT
	return store.RecentListing{
		Name:        orUnknown(nft.Name, store.UnknownNFT),
		Mint:        orUnknown(nft.Mint, store.UnknownValue),
		Price:       alert.FormatPrice(nft.AmountLamports, nft.HasAmount, store.UnknownValue),
		Marketplace: orUnknown(nft.Marketplace, store.UnknownValue),
		Seller:      orUnknown(nft.Seller, store.UnknownValue),
		Signature:   orUnknown(nft.Signature, store.UnknownValue),
		Timestamp:   timestamp,
		Image:       nft.Image,
		Traits:      nonNil(nft.Traits),
		Collection:  nft.Collection,
	}
}

func orUnknown(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
