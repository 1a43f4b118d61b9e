// Package alert formats sale and listing alerts and delivers them.
package alert

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/geckopulse/engine/internal/store"
)

const (
	OfficialURL  = "https://galacticgeckos.io/"
	CommunityURL = "https://linktr.ee/GalacticGeckoSpaceGarage"

	maxDisplayTraits = 3
)

var lamportsPerSOL = decimal.NewFromInt(store.LamportsPerSOL)

var tagEmoji = map[string]string{
	store.TagWhale:      "🐋",
	store.TagUnderFloor: "🟢",
	store.TagAboveFloor: "🔥",
	store.TagNearFloor:  "🟡",
	store.TagSweep:      "🧹",
}

// FormatSale renders the HTML body of a sale alert.
func FormatSale(a store.Alert) string {
	nft := a.NFT
	name := orDefault(nft.Name, store.UnknownNFT)
	mint := orDefault(nft.Mint, "Unknown mint")
	signature := orDefault(nft.Signature, "Unknown signature")

	lines := []string{
		"<b>🦎 GeckoPulse • Tensor Sale</b>",
		"<b>" + h(name) + "</b>",
	}
	if nft.Collection != "" {
		lines = append(lines, "Collection: "+h(nft.Collection))
	}

	lines = append(lines, "Price: <b>"+h(FormatPrice(nft.AmountLamports, nft.HasAmount, "Unknown price"))+"</b>")
	if len(a.Tags) > 0 {
		lines = append(lines, h(FormatTags(a.Tags)))
	}
	if line := floorLine(nft, a.Floor); line != "" {
		lines = append(lines, h(line))
	}
	if a.Rarity != nil && a.Rarity.Rank > 0 {
		lines = append(lines, h(fmt.Sprintf("Rarity: Top %.1f%% (#%d)", a.Rarity.Percentile, a.Rarity.Rank)))
	}

	lines = append(lines,
		"Marketplace: "+h(orDefault(nft.Marketplace, "Unknown marketplace")),
		"Mint: <code>"+h(Shorten(mint))+"</code>",
		"Buyer: <code>"+h(Shorten(orDefault(nft.Buyer, "Unknown buyer")))+"</code>",
		"Seller: <code>"+h(Shorten(orDefault(nft.Seller, "Unknown seller")))+"</code>",
	)

	return finish(lines, nft, mint, signature)
}

// FormatListing renders the HTML body of a listing alert.
func FormatListing(a store.Alert) string {
	nft := a.NFT
	mint := orDefault(nft.Mint, "Unknown mint")
	signature := orDefault(nft.Signature, "Unknown signature")

	lines := []string{
		"<b>🦎 GeckoPulse • New Listing</b>",
		"<b>" + h(orDefault(nft.Name, store.UnknownNFT)) + "</b>",
	}
	if nft.Collection != "" {
		lines = append(lines, "Collection: "+h(nft.Collection))
	}

	lines = append(lines,
		"Listed: <b>"+h(FormatPrice(nft.AmountLamports, nft.HasAmount, "Unknown price"))+"</b>",
		"Marketplace: "+h(orDefault(nft.Marketplace, "Unknown marketplace")),
		"Mint: <code>"+h(Shorten(mint))+"</code>",
		"Seller: <code>"+h(Shorten(orDefault(nft.Seller, "Unknown seller")))+"</code>",
	)

	return finish(lines, nft, mint, signature)
}

// Format dispatches on the alert kind.
func Format(a store.Alert) string {
	if a.Kind == store.KindListing {
		return FormatListing(a)
	}
	return FormatSale(a)
}

func finish(lines []string, nft store.NftInfo, mint, signature string) string {
	if len(nft.Traits) > 0 {
		traits := nft.Traits
		if len(traits) > maxDisplayTraits {
			traits = traits[:maxDisplayTraits]
		}
		escaped := make([]string, len(traits))
		for i, t := range traits {
			escaped[i] = h(t)
		}
		lines = append(lines, "Traits: "+strings.Join(escaped, " · "))
	}

	lines = append(lines,
		fmt.Sprintf(`<a href="%s">View on Tensor</a> · <a href="%s">Solscan</a>`, h(TensorURL(mint)), h(SolscanURL(mint, signature))),
		fmt.Sprintf(`<a href="%s">Official Site</a> · <a href="%s">Community Links</a>`, h(OfficialURL), h(CommunityURL)),
	)

	if nft.Description != "" {
		lines = append(lines, "Note: "+h(nft.Description))
	}

	return strings.Join(lines, "\n")
}

// floorLine renders "Floor: 50.00 SOL (+20.0%)" or "".
func floorLine(nft store.NftInfo, floor *store.FloorSnapshot) string {
	if floor == nil || floor.PriceSOL <= 0 || !nft.HasAmount || nft.AmountLamports == 0 {
		return ""
	}

	price := decimal.NewFromInt(nft.AmountLamports).Div(lamportsPerSOL)
	floorSOL := decimal.NewFromFloat(floor.PriceSOL)
	delta, _ := price.Sub(floorSOL).Div(floorSOL).Mul(decimal.NewFromInt(100)).Float64()

	return fmt.Sprintf("Floor: %s SOL (%+.1f%%)", floorSOL.StringFixed(2), delta)
}

// FormatPrice renders a lamport amount as "12.5000 SOL".
func FormatPrice(lamports int64, ok bool, unknown string) string {
	if !ok {
		return unknown
	}
	return decimal.NewFromInt(lamports).Div(lamportsPerSOL).StringFixed(4) + " SOL"
}

// FormatTags decorates tags with their emoji and joins them.
func FormatTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		key := tag
		if strings.HasPrefix(tag, store.TagSweep) {
			key = store.TagSweep
		}
		if emoji, ok := tagEmoji[key]; ok {
			out = append(out, emoji+" "+tag)
			continue
		}
		out = append(out, tag)
	}
	return strings.Join(out, " ")
}

// Shorten abbreviates an address as "AbCd…WxYz". Placeholders and short
// values are returned unchanged.
func Shorten(value string) string {
	const left, right = 4, 4
	if value == "" || strings.HasPrefix(value, store.UnknownValue) {
		return value
	}
	if len(value) <= left+right+3 {
		return value
	}
	return value[:left] + "…" + value[len(value)-right:]
}

// TensorURL links to the item page, or the marketplace root for placeholders.
func TensorURL(mint string) string {
	if mint == "" || strings.HasPrefix(mint, store.UnknownValue) {
		return "https://www.tensor.trade/"
	}
	return "https://www.tensor.trade/item/" + mint
}

// SolscanURL prefers the transaction, then the token.
func SolscanURL(mint, signature string) string {
	switch {
	case signature != "" && !strings.HasPrefix(signature, store.UnknownValue):
		return "https://solscan.io/tx/" + signature
	case mint != "" && !strings.HasPrefix(mint, store.UnknownValue):
		return "https://solscan.io/token/" + mint
	default:
		return "https://solscan.io/"
	}
}

func h(s string) string {
	return html.EscapeString(s)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
