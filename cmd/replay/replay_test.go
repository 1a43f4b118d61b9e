package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geckopulse/engine/internal/config"
)

func replayConfig() *config.Config {
	return &config.Config{
		WhaleSOL:     50,
		SweepCount:   3,
		SweepWindow:  120 * time.Second,
		WatchSources: []string{"tensor"},
		FetchTimeout: time.Second,
	}
}

func salePayload(t *testing.T) []byte {
	t.Helper()
	base := int64(1_700_000_000)

	var events []map[string]any
	add := func(sig, buyer string, lamports, ts int64) {
		events = append(events, map[string]any{
			"type":      "NFT_SALE",
			"source":    "TENSOR",
			"signature": sig,
			"timestamp": ts,
			"events": map[string]any{"nft": map[string]any{
				"buyer":  buyer,
				"seller": "S",
				"amount": lamports,
				"nfts":   []map[string]any{{"mint": "M-" + sig, "name": "Gecko " + sig}},
			}},
		})
	}

	// Three quick buys by one wallet, then one outside the sweep window.
	add("a", "B", 1_000_000_000, base)
	add("b", "B", 1_000_000_000, base+10)
	add("c", "B", 1_000_000_000, base+20)
	add("d", "B", 1_000_000_000, base+500)
	add("e", "W", 75_000_000_000, base+600)
	add("e", "W", 75_000_000_000, base+600)

	raw, err := json.Marshal(events)
	require.NoError(t, err)
	return raw
}

func TestReplayFollowsEventClock(t *testing.T) {
	result, err := replay(context.Background(), replayConfig(), salePayload(t))
	require.NoError(t, err)

	assert.Equal(t, 6, result.Stats.Events)
	assert.Equal(t, int64(6), result.Stats.Seen)
	require.Equal(t, 5, result.Stats.Alerts, "duplicate signature is dropped")

	assert.Empty(t, result.Alerts[1].Tags)
	assert.Equal(t, []string{"Sweep x3"}, result.Alerts[2].Tags)
	assert.Empty(t, result.Alerts[3].Tags, "outside the sweep window")
	assert.Equal(t, []string{"Whale"}, result.Alerts[4].Tags)

	assert.Equal(t, 2, result.Stats.Tagged)
	assert.Equal(t, 5, result.Stats.Sales24h)
	assert.Equal(t, 79.0, result.Stats.Volume24h)
}

func TestReplayRejectsNonList(t *testing.T) {
	_, err := replay(context.Background(), replayConfig(), []byte(`{"type": "NFT_SALE"}`))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	result, err := replay(context.Background(), replayConfig(), salePayload(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	render(&buf, result, true)
	out := buf.String()

	assert.Contains(t, out, "Sweep x3")
	assert.Contains(t, out, "75.0000 SOL")
	assert.NotContains(t, out, "Gecko a")
	assert.Contains(t, out, fmt.Sprintf("%.2f SOL", 79.0))
}

func TestReplayAcceptsBatchList(t *testing.T) {
	single := salePayload(t)
	batches := []byte("[" + string(single) + ", []]")

	result, err := replay(context.Background(), replayConfig(), batches)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Stats.Events)
	assert.Equal(t, 5, result.Stats.Alerts)

	_, err = replay(context.Background(), replayConfig(), []byte(`[[{"type": "NFT_SALE"}], {"type": "x"}]`))
	assert.Error(t, err)
}
