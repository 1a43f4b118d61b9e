package pipeline

import (
	"context"
	"crypto/rand"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/geckopulse/engine/internal/store"
)

const (
	simMint   = "SimMint111111111111111111111111111111111"
	simSeller = "SimSeller11111111111111111111111111111111"
	simBuyer  = "SimBuyer1111111111111111111111111111111111"

	simSaleLamports    = 12_340_000_000
	simListingLamports = 9_990_000_000
)

// SimulateSale records a synthetic sale of the first watched mint and
// delivers it. The sale skips dedup and filters but is enriched, tagged and
// recorded like a real one. The returned error is the delivery outcome.
func (p *Pipeline) SimulateSale(ctx context.Context) (store.Alert, error) {
	now := p.now()
	nft := store.NftInfo{
		Mint:           p.simulatedMint(),
		Name:           "Galactic Gecko #4242",
		Seller:         simSeller,
		Buyer:          simBuyer,
		AmountLamports: simSaleLamports,
		HasAmount:      true,
		Marketplace:    "TENSOR",
		Signature:      randomSignature(),
		Description:    "Simulated Tensor sale for preview.",
	}

	enriched := p.metadata.Enrich(ctx, nft)
	a := p.tagSale(ctx, enriched, now)
	p.tracker.RecordSale(recentSale(a, now.UTC().Format(TimeLayout)))

	return a, p.deliver(ctx, simLogger(), a)
}

// SimulateListing records a synthetic listing. It is delivered only when
// listing alerts are enabled.
func (p *Pipeline) SimulateListing(ctx context.Context) (store.Alert, error) {
	now := p.now()
	nft := store.NftInfo{
		Mint:           p.simulatedMint(),
		Name:           "Galactic Gecko #6060",
		Seller:         simSeller,
		AmountLamports: simListingLamports,
		HasAmount:      true,
		Marketplace:    "TENSOR",
		Signature:      randomSignature(),
		Description:    "Simulated Tensor listing for preview.",
	}

	a := store.Alert{Kind: store.KindListing, NFT: p.metadata.Enrich(ctx, nft), EventTime: now}
	p.tracker.RecordListing(recentListing(a, now.UTC().Format(TimeLayout)))

	if !p.cfg.SendListingAlerts {
		return a, nil
	}
	return a, p.deliver(ctx, simLogger(), a)
}

func (p *Pipeline) simulatedMint() string {
	if mint := p.mints.First(); mint != "" {
		return mint
	}
	return simMint
}

func simLogger() *slog.Logger {
	return slog.With("batch_id", "sim-"+uuid.NewString())
}

// randomSignature returns a base58 string shaped like a transaction signature.
func randomSignature() string {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "SimSig" + uuid.NewString()
	}
	return base58.Encode(buf)
}
