package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geckopulse/engine/internal/cache"
	"github.com/geckopulse/engine/internal/store"
)

const (
	// HeliusRPCURL is the Helius mainnet JSON-RPC endpoint
	HeliusRPCURL = "https://mainnet.helius-rpc.com/"
	// TensorAPIURL is the Tensor REST API base
	TensorAPIURL = "https://api.tensor.so"
	// HowRareAPIURL is the HowRare REST API base
	HowRareAPIURL = "https://api.howrare.is"

	// MaxTraits is the number of off-chain attributes kept per mint
	MaxTraits = 4
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON performs a GET and decodes a JSON body into out. It returns the raw
// body alongside.
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return body, nil
}

// NormalizeURI rewrites ipfs:// and ar:// URIs to public HTTP gateways.
func NormalizeURI(uri string) string {
	switch {
	case uri == "":
		return ""
	case strings.HasPrefix(uri, "ipfs://"):
		return "https://ipfs.io/ipfs/" + strings.TrimLeft(strings.TrimPrefix(uri, "ipfs://"), "/")
	case strings.HasPrefix(uri, "ar://"):
		return "https://arweave.net/" + strings.TrimLeft(strings.TrimPrefix(uri, "ar://"), "/")
	default:
		return uri
	}
}

// HeliusClient resolves mint metadata through the Helius DAS getAsset call
// and the asset's off-chain JSON.
type HeliusClient struct {
	apiKey string
	rpcURL string
	client *http.Client
}

// NewHeliusClient creates a metadata client. An empty rpcURL selects the
// mainnet endpoint.
func NewHeliusClient(apiKey, rpcURL string, timeout time.Duration) *HeliusClient {
	if rpcURL == "" {
		rpcURL = HeliusRPCURL
	}
	return &HeliusClient{apiKey: apiKey, rpcURL: rpcURL, client: newHTTPClient(timeout)}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type assetResponse struct {
	Result *struct {
		Content struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
			Links struct {
				Image string `json:"image"`
			} `json:"links"`
			Files   []json.RawMessage `json:"files"`
			JSONURI string            `json:"json_uri"`
		} `json:"content"`
	} `json:"result"`
}

type offchainMetadata struct {
	Image      string          `json:"image"`
	ImageURL   string          `json:"image_url"`
	Attributes []offchainTrait `json:"attributes"`
	Collection json.RawMessage `json:"collection"`
}

type offchainTrait struct {
	TraitType string `json:"trait_type"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
}

// FetchMetadata implements cache.MetadataFetcher.
func (c *HeliusClient) FetchMetadata(ctx context.Context, mint string) (store.MetadataEntry, error) {
	if c.apiKey == "" {
		return store.MetadataEntry{}, ErrNotConfigured
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  "getAsset",
		Params:  map[string]any{"id": mint},
	})
	if err != nil {
		return store.MetadataEntry{}, fmt.Errorf("encode request failed: %w", err)
	}

	endpoint := c.rpcURL + "?api-key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return store.MetadataEntry{}, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return store.MetadataEntry{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return store.MetadataEntry{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var asset assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return store.MetadataEntry{}, fmt.Errorf("decode failed: %w", err)
	}
	if asset.Result == nil {
		return store.MetadataEntry{}, nil
	}

	content := asset.Result.Content
	entry := store.MetadataEntry{
		Name:  content.Metadata.Name,
		Image: NormalizeURI(coalesce(content.Links.Image, firstFileURI(content.Files))),
	}

	jsonURI := NormalizeURI(content.JSONURI)
	if jsonURI == "" {
		return entry, nil
	}

	var offchain offchainMetadata
	if _, err := getJSON(ctx, c.client, jsonURI, nil, &offchain); err != nil {
		// The on-chain part is still usable without the off-chain document.
		slog.Warn("offchain_metadata_fetch_failed", "mint", mint, "uri", jsonURI, "error", err)
		return entry, nil
	}

	if entry.Image == "" {
		entry.Image = NormalizeURI(coalesce(offchain.Image, offchain.ImageURL))
	}
	entry.Traits = formatTraits(offchain.Attributes)
	entry.Collection = collectionName(offchain.Collection)

	return entry, nil
}

// firstFileURI reads files[0] as either {"uri": ...} or a bare string.
func firstFileURI(files []json.RawMessage) string {
	if len(files) == 0 {
		return ""
	}

	var file struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(files[0], &file); err == nil {
		return file.URI
	}

	var s string
	if err := json.Unmarshal(files[0], &s); err == nil {
		return s
	}
	return ""
}

func formatTraits(attrs []offchainTrait) []string {
	var traits []string
	for i, attr := range attrs {
		if i >= MaxTraits {
			break
		}
		name := coalesce(attr.TraitType, attr.Type)
		if name == "" || attr.Value == nil {
			continue
		}
		traits = append(traits, fmt.Sprintf("%s: %v", name, attr.Value))
	}
	return traits
}

// collectionName accepts {"name": ...} or a bare string.
func collectionName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// TensorClient reads the collection floor from Tensor.
type TensorClient struct {
	collectionID string
	baseURL      string
	client       *http.Client
}

// NewTensorClient creates a floor client for collectionID.
func NewTensorClient(collectionID, baseURL string, timeout time.Duration) *TensorClient {
	if baseURL == "" {
		baseURL = TensorAPIURL
	}
	return &TensorClient{collectionID: collectionID, baseURL: strings.TrimRight(baseURL, "/"), client: newHTTPClient(timeout)}
}

// FetchFloor implements cache.FloorFetcher. The "price" field is in lamports.
func (c *TensorClient) FetchFloor(ctx context.Context) (cache.FloorQuote, error) {
	if c.collectionID == "" {
		return cache.FloorQuote{}, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/sol/collections/%s/floor", c.baseURL, url.PathEscape(c.collectionID))

	var data struct {
		Price *float64 `json:"price"`
	}
	body, err := getJSON(ctx, c.client, endpoint, nil, &data)
	if err != nil {
		return cache.FloorQuote{}, fmt.Errorf("tensor floor: %w", err)
	}
	if data.Price == nil {
		return cache.FloorQuote{}, fmt.Errorf("tensor floor: missing price")
	}

	return cache.FloorQuote{Lamports: *data.Price, Raw: body}, nil
}

// HowRareClient reads per-mint rarity ranks.
type HowRareClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHowRareClient creates a rarity client.
func NewHowRareClient(apiKey, baseURL string, timeout time.Duration) *HowRareClient {
	if baseURL == "" {
		baseURL = HowRareAPIURL
	}
	return &HowRareClient{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: newHTTPClient(timeout)}
}

// FetchRank implements cache.RarityFetcher.
func (c *HowRareClient) FetchRank(ctx context.Context, mint string) (int, error) {
	if c.apiKey == "" {
		return 0, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/v0.1/rarity/%s", c.baseURL, url.PathEscape(mint))
	header := http.Header{}
	header.Set("X-HOWRARE-API-KEY", c.apiKey)

	var data struct {
		Result struct {
			Data *struct {
				Rank *float64 `json:"rank"`
			} `json:"data"`
		} `json:"result"`
	}
	if _, err := getJSON(ctx, c.client, endpoint, header, &data); err != nil {
		return 0, fmt.Errorf("howrare rarity: %w", err)
	}
	if data.Result.Data == nil || data.Result.Data.Rank == nil || *data.Result.Data.Rank <= 0 {
		return 0, fmt.Errorf("howrare rarity: no rank for %s", mint)
	}

	return int(*data.Result.Data.Rank), nil
}
