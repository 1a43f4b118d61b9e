package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultFetchTimeout bounds every outbound fetch.
const DefaultFetchTimeout = 15 * time.Second

var (
	// ErrUnsupportedMintlist is returned when a mint list document has none
	// of the accepted shapes or yields no mints.
	ErrUnsupportedMintlist = errors.New("unsupported mintlist format")

	// ErrNotConfigured is returned by fetch clients missing their API key or id.
	ErrNotConfigured = errors.New("fetcher not configured")
)

// FetchMintList downloads a mint list and extracts its mint addresses.
func FetchMintList(ctx context.Context, client *http.Client, url string) ([]string, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mintlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode mintlist: %w", err)
	}

	mints := ExtractMints(doc)
	if len(mints) == 0 {
		return nil, ErrUnsupportedMintlist
	}

	return mints, nil
}

// ExtractMints accepts a plain array of ids, an array of objects with a
// "mint" field, or an object wrapping either under "mints", "result" or
// "data" (checked in that order).
func ExtractMints(doc any) []string {
	switch v := doc.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
		if _, isObject := v[0].(map[string]any); isObject {
			var found []string
			for _, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if mint := stringify(obj["mint"]); mint != "" {
					found = append(found, mint)
				}
			}
			return found
		}

		found := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				found = append(found, s)
			}
		}
		return found

	case map[string]any:
		for _, key := range []string{"mints", "result", "data"} {
			if inner, ok := v[key]; ok {
				return ExtractMints(inner)
			}
		}
	}

	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
