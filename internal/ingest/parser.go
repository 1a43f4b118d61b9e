// Package ingest parses webhook batches and fetches the off-chain data the
// pipeline enriches them with.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/geckopulse/engine/internal/store"
)

// ErrNotList is returned when a webhook body is valid JSON but not an array.
var ErrNotList = errors.New("expected list payload")

// ParseBatch decodes a webhook body into raw events. Array elements that are
// not objects are skipped.
func ParseBatch(data []byte) ([]store.RawEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("failed to unmarshal batch: invalid json")
		}
		return nil, ErrNotList
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}

	events := make([]store.RawEvent, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}

		var event store.RawEvent
		if err := json.Unmarshal(item, &event); err != nil {
			// A malformed record is irrelevant input, not a batch failure.
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// Classify maps a webhook event type to store.KindSale or store.KindListing.
// Any other type yields "".
func Classify(eventType string) string {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "NFT_SALE", "SALE":
		return store.KindSale
	case "NFT_LISTING", "LISTING":
		return store.KindListing
	default:
		return ""
	}
}

// Signature returns the top-level signature, falling back to the nested nft
// event signature.
func Signature(event store.RawEvent) string {
	if event.Signature != "" {
		return event.Signature
	}
	if event.Events.NFT != nil {
		return event.Events.NFT.Signature
	}
	return ""
}

// ExtractNftInfo projects a raw event onto the fields the pipeline works with.
func ExtractNftInfo(event store.RawEvent) store.NftInfo {
	info := store.NftInfo{
		Marketplace: event.Source,
		Signature:   Signature(event),
		Description: event.Description,
	}

	nft := event.Events.NFT
	if nft == nil {
		return info
	}

	info.Seller = nft.Seller
	info.Buyer = nft.Buyer
	if len(nft.NFTs) > 0 {
		info.Mint = nft.NFTs[0].Mint
		info.Name = nft.NFTs[0].Name
	}

	// An explicit amount wins even when it is zero. Only a missing amount
	// falls back, and a zero price defers to listingPrice.
	candidate := nft.Amount
	if candidate == nil {
		candidate = nft.Price
		if isZeroNumber(candidate) {
			candidate = nft.ListingPrice
		}
	}
	info.AmountLamports, info.HasAmount = parseLamports(candidate)

	return info
}

// parseLamports reads a lamport amount. Any parseable number counts.
func parseLamports(n *json.Number) (int64, bool) {
	if n == nil || *n == "" {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

func isZeroNumber(n *json.Number) bool {
	if n == nil || *n == "" {
		return true
	}
	f, err := n.Float64()
	return err == nil && f == 0
}

// ParseEventTime resolves the event timestamp from "timestamp" then "time".
// It falls back to now when neither parses.
func ParseEventTime(event store.RawEvent, now time.Time) time.Time {
	for _, raw := range []json.RawMessage{event.Timestamp, event.Time} {
		if t, ok := parseRawTime(raw); ok {
			return t
		}
	}
	return now
}

// RawTimeString renders the original timestamp value for display, or "".
func RawTimeString(event store.RawEvent) string {
	for _, raw := range []json.RawMessage{event.Timestamp, event.Time} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		return string(raw)
	}
	return ""
}

func parseRawTime(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseTimestamp(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return parseTimestamp(n.String())
	}
	return time.Time{}, false
}

// parseTimestamp tries epoch seconds, epoch milliseconds and the common
// string layouts.
func parseTimestamp(v string) (time.Time, bool) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05 MST",
		"2006-01-02 15:04:05",
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f > 1e12 {
			return time.UnixMilli(int64(f)), true
		}
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*float64(time.Second))), true
	}

	for _, format := range formats {
		if t, err := time.Parse(format, v); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
