// Package store provides the data models shared by the event pipeline.
package store

import (
	"encoding/json"
	"strings"
	"time"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Event kinds accepted by the pipeline.
const (
	KindSale    = "SALE"
	KindListing = "LISTING"
)

// Sale tags, in the order the tagger emits them.
const (
	TagWhale      = "Whale"
	TagUnderFloor = "Under Floor"
	TagAboveFloor = "Above Floor"
	TagNearFloor  = "Near Floor"
	TagSweep      = "Sweep" // rendered as "Sweep x{count}"
)

// Placeholder values used when a field is missing from the webhook.
const (
	UnknownValue = "Unknown"
	UnknownNFT   = "Unknown NFT"
)

// RawEvent is one enhanced-transaction record as delivered by the webhook.
// It is never mutated after parsing.
type RawEvent struct {
	// Type is the webhook event type, e.g. NFT_SALE or NFT_LISTING
	Type string `json:"type"`

	// Source is the marketplace that produced the event (e.g. TENSOR)
	Source string `json:"source"`

	// Signature is the transaction signature (may be empty)
	Signature string `json:"signature"`

	// Description is the free-form summary supplied by the webhook
	Description string `json:"description"`

	// Timestamp is epoch seconds/millis or an ISO-8601 string
	Timestamp json.RawMessage `json:"timestamp"`

	// Time is a fallback timestamp field used by some producers
	Time json.RawMessage `json:"time"`

	Events struct {
		NFT *NFTEvent `json:"nft"`
	} `json:"events"`
}

// NFTEvent is the nested nft sub-record of a RawEvent.
type NFTEvent struct {
	Seller       string       `json:"seller"`
	Buyer        string       `json:"buyer"`
	Amount       *json.Number `json:"amount"`
	Price        *json.Number `json:"price"`
	ListingPrice *json.Number `json:"listingPrice"`
	Signature    string       `json:"signature"`
	NFTs         []NFTToken   `json:"nfts"`
}

// NFTToken identifies a single token inside an NFTEvent.
type NFTToken struct {
	Mint string `json:"mint"`
	Name string `json:"name"`
}

// NftInfo is the working projection of a RawEvent. Enrichment fills Image,
// Traits and Collection.
type NftInfo struct {
	Mint           string   `json:"mint"`
	Name           string   `json:"name"`
	Seller         string   `json:"seller"`
	Buyer          string   `json:"buyer"`
	AmountLamports int64    `json:"amount_lamports"`
	HasAmount      bool     `json:"has_amount"`
	Marketplace    string   `json:"marketplace"`
	Signature      string   `json:"signature"`
	Description    string   `json:"description"`
	Image          string   `json:"image,omitempty"`
	Traits         []string `json:"traits,omitempty"`
	Collection     string   `json:"collection,omitempty"`
}

// Enriched reports whether the record already carries display metadata.
func (n NftInfo) Enriched() bool {
	return n.Image != "" || len(n.Traits) > 0
}

// MetadataEntry is the cached result of a metadata fetch for one mint.
type MetadataEntry struct {
	Name       string
	Image      string
	Traits     []string
	Collection string
}

// Empty reports whether the entry carries no usable attribute.
func (m MetadataEntry) Empty() bool {
	return m.Name == "" && m.Image == "" && len(m.Traits) == 0 && m.Collection == ""
}

// Apply merges the entry into nft. Present cached fields win over the
// record's own values.
func (m MetadataEntry) Apply(nft NftInfo) NftInfo {
	if m.Name != "" {
		nft.Name = m.Name
	}
	if m.Image != "" {
		nft.Image = m.Image
	}
	if len(m.Traits) > 0 {
		nft.Traits = append([]string(nil), m.Traits...)
	}
	if m.Collection != "" {
		nft.Collection = m.Collection
	}
	return nft
}

// FloorSnapshot is the collection floor price at the time it was fetched.
type FloorSnapshot struct {
	PriceSOL float64         `json:"price_sol"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// RaritySnapshot is the rarity rank of a single mint.
type RaritySnapshot struct {
	Rank       int     `json:"rank"`
	Percentile float64 `json:"percentile"`
}

// SaleWindowEntry is one recorded sale in the sliding window.
type SaleWindowEntry struct {
	EventTime float64 // epoch seconds
	PriceSOL  float64
	Buyer     string
}

// RecentSale is the display snapshot of a recorded sale.
type RecentSale struct {
	Name        string   `json:"name"`
	Mint        string   `json:"mint"`
	Price       string   `json:"price"`
	Marketplace string   `json:"marketplace"`
	Buyer       string   `json:"buyer"`
	Seller      string   `json:"seller"`
	Signature   string   `json:"signature"`
	Timestamp   string   `json:"timestamp"`
	Image       string   `json:"image,omitempty"`
	Traits      []string `json:"traits"`
	Collection  string   `json:"collection,omitempty"`
	Tags        []string `json:"tags"`
}

// RecentListing is the display snapshot of a recorded listing.
type RecentListing struct {
	Name        string   `json:"name"`
	Mint        string   `json:"mint"`
	Price       string   `json:"price"`
	Marketplace string   `json:"marketplace"`
	Seller      string   `json:"seller"`
	Signature   string   `json:"signature"`
	Timestamp   string   `json:"timestamp"`
	Image       string   `json:"image,omitempty"`
	Traits      []string `json:"traits"`
	Collection  string   `json:"collection,omitempty"`
}

// Alert is an enriched, tagged event handed to the notifier.
type Alert struct {
	// Kind is KindSale or KindListing
	Kind string

	// NFT is the enriched record
	NFT NftInfo

	// Tags is set for sales only
	Tags []string

	// Floor and Rarity are nil when unavailable
	Floor  *FloorSnapshot
	Rarity *RaritySnapshot

	// EventTime is the parsed event timestamp
	EventTime time.Time
}

// HasSpecialTag reports whether the alert carries a Whale, Sweep or Above
// Floor tag.
func (a Alert) HasSpecialTag() bool {
	for _, tag := range a.Tags {
		switch {
		case tag == TagWhale, tag == TagAboveFloor:
			return true
		case strings.HasPrefix(tag, TagSweep):
			return true
		}
	}
	return false
}
