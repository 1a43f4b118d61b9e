package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geckopulse/engine/internal/store"
)

func sampleSale() store.Alert {
	return store.Alert{
		Kind: store.KindSale,
		NFT: store.NftInfo{
			Mint:           "GeckoMint1111111111111111111111111111111111",
			Name:           "Gecko <#1>",
			Seller:         "SellerAddr99999999999999999999999999999999",
			Buyer:          "BuyerAddr888888888888888888888888888888888",
			AmountLamports: 60_000_000_000,
			HasAmount:      true,
			Marketplace:    "TENSOR",
			Signature:      "5igSig",
			Traits:         []string{"Background: Blue", "Eyes: Laser", "Hat: Crown", "Skin: Gold"},
			Collection:     "Galactic Geckos",
		},
		Tags:   []string{store.TagWhale, store.TagAboveFloor, "Sweep x3"},
		Floor:  &store.FloorSnapshot{PriceSOL: 50},
		Rarity: &store.RaritySnapshot{Rank: 250, Percentile: 2.5},
	}
}

func TestFormatSale(t *testing.T) {
	msg := FormatSale(sampleSale())

	assert.Contains(t, msg, "<b>🦎 GeckoPulse • Tensor Sale</b>")
	assert.Contains(t, msg, "<b>Gecko &lt;#1&gt;</b>")
	assert.Contains(t, msg, "Collection: Galactic Geckos")
	assert.Contains(t, msg, "Price: <b>60.0000 SOL</b>")
	assert.Contains(t, msg, "🐋 Whale 🔥 Above Floor 🧹 Sweep x3")
	assert.Contains(t, msg, "Floor: 50.00 SOL (+20.0%)")
	assert.Contains(t, msg, "Rarity: Top 2.5% (#250)")
	assert.Contains(t, msg, "Buyer: <code>Buye…8888</code>")
	assert.Contains(t, msg, "Traits: Background: Blue · Eyes: Laser · Hat: Crown")
	assert.NotContains(t, msg, "Skin: Gold")
	assert.Contains(t, msg, `href="https://solscan.io/tx/5igSig"`)
	assert.Contains(t, msg, `href="https://www.tensor.trade/item/GeckoMint1111111111111111111111111111111111"`)
	assert.NotContains(t, msg, "Note:")
}

func TestFormatSaleWithoutOptionalData(t *testing.T) {
	msg := FormatSale(store.Alert{Kind: store.KindSale})

	assert.Contains(t, msg, "<b>Unknown NFT</b>")
	assert.Contains(t, msg, "Price: <b>Unknown price</b>")
	assert.Contains(t, msg, "Mint: <code>Unknown mint</code>")
	assert.Contains(t, msg, `href="https://www.tensor.trade/"`)
	assert.Contains(t, msg, `href="https://solscan.io/"`)
	assert.NotContains(t, msg, "Floor:")
	assert.NotContains(t, msg, "Rarity:")
}

func TestFormatListing(t *testing.T) {
	a := sampleSale()
	a.Kind = store.KindListing
	a.NFT.AmountLamports = 3_250_000_000
	a.NFT.Description = "listed on tensor"

	msg := Format(a)
	assert.Contains(t, msg, "New Listing")
	assert.Contains(t, msg, "Listed: <b>3.2500 SOL</b>")
	assert.Contains(t, msg, "Note: listed on tensor")
	assert.NotContains(t, msg, "Buyer:")
	assert.NotContains(t, msg, "Whale")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abcd…wxyz", Shorten("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "short", Shorten("short"))
	assert.Equal(t, "Unknown buyer", Shorten("Unknown buyer"))
	assert.Equal(t, "", Shorten(""))
}

func TestSolscanURL(t *testing.T) {
	assert.Equal(t, "https://solscan.io/tx/sig", SolscanURL("mint", "sig"))
	assert.Equal(t, "https://solscan.io/token/mint", SolscanURL("mint", "Unknown signature"))
	assert.Equal(t, "https://solscan.io/", SolscanURL("", ""))
}

type capturedCall struct {
	method  string
	payload map[string]any
}

func newTelegramServer(t *testing.T, ok bool) (*httptest.Server, *[]capturedCall) {
	t.Helper()
	var calls []capturedCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		calls = append(calls, capturedCall{method: parts[len(parts)-1], payload: payload})

		if ok {
			w.Write([]byte(`{"ok": true}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTelegramNotifierPicksMethod(t *testing.T) {
	srv, calls := newTelegramServer(t, true)
	ctx := context.Background()

	withGIF := NewTelegramNotifier("tok", "chat", "https://gif/alert.gif", srv.URL, time.Second)
	plain := NewTelegramNotifier("tok", "chat", "", srv.URL, time.Second)

	special := sampleSale()
	require.NoError(t, withGIF.Notify(ctx, special))

	special.NFT.Image = "https://img/1.png"
	require.NoError(t, plain.Notify(ctx, special))

	quiet := sampleSale()
	quiet.Tags = []string{store.TagNearFloor}
	require.NoError(t, withGIF.Notify(ctx, quiet))

	require.Len(t, *calls, 3)
	assert.Equal(t, "sendAnimation", (*calls)[0].method)
	assert.Equal(t, "https://gif/alert.gif", (*calls)[0].payload["animation"])
	assert.Equal(t, "HTML", (*calls)[0].payload["parse_mode"])

	assert.Equal(t, "sendPhoto", (*calls)[1].method)
	assert.Equal(t, "https://img/1.png", (*calls)[1].payload["photo"])

	assert.Equal(t, "sendMessage", (*calls)[2].method)
	assert.Equal(t, true, (*calls)[2].payload["disable_web_page_preview"])
	assert.Equal(t, "chat", (*calls)[2].payload["chat_id"])
}

func TestTelegramNotifierErrors(t *testing.T) {
	srv, _ := newTelegramServer(t, false)

	err := NewTelegramNotifier("tok", "chat", "", srv.URL, time.Second).Notify(context.Background(), sampleSale())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	err = NewTelegramNotifier("", "chat", "", srv.URL, time.Second).Notify(context.Background(), sampleSale())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTelegramNotifierHidesTokenOnTransportError(t *testing.T) {
	n := NewTelegramNotifier("secret-token", "chat", "", "http://127.0.0.1:1", 200*time.Millisecond)
	err := n.SendText(context.Background(), "ping")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}
