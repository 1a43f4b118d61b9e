package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/geckopulse/engine/internal/alert"
	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/ingest"
	"github.com/geckopulse/engine/internal/pipeline"
	"github.com/geckopulse/engine/internal/store"
)

// recorder is a notifier that keeps every alert instead of sending it.
type recorder struct {
	mu     sync.Mutex
	alerts []store.Alert
}

func (r *recorder) Notify(_ context.Context, a store.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

// ReplayStats summarizes one replay run.
type ReplayStats struct {
	Events    int     `json:"events"`
	Seen      int64   `json:"seen"`
	Alerts    int     `json:"alerts"`
	Tagged    int     `json:"tagged"`
	Sales24h  int     `json:"sales_24h"`
	Volume24h float64 `json:"volume_24h"`
}

// ReplayResult is the outcome of a replay run.
type ReplayResult struct {
	Stats  ReplayStats   `json:"stats"`
	Alerts []store.Alert `json:"alerts"`
}

// parseBatches accepts a single webhook payload or a list of them and
// flattens the events in delivery order.
func parseBatches(payload []byte) ([]store.RawEvent, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, ingest.ErrNotList
	}
	if len(items) == 0 || !bytes.HasPrefix(bytes.TrimSpace(items[0]), []byte("[")) {
		return ingest.ParseBatch(payload)
	}

	var events []store.RawEvent
	for i, item := range items {
		batch, err := ingest.ParseBatch(item)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		events = append(events, batch...)
	}
	return events, nil
}

// replay feeds payload through a pipeline one event at a time. The clock
// follows the event timestamps so windows behave as they did live.
func replay(ctx context.Context, cfg *config.Config, payload []byte) (ReplayResult, error) {
	events, err := parseBatches(payload)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("parse payload: %w", err)
	}

	var clock time.Time
	rec := &recorder{}
	p := pipeline.New(cfg, pipeline.Options{
		Notifier: rec,
		Now:      func() time.Time { return clock },
	})

	batchID := "replay-" + uuid.NewString()
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return ReplayResult{}, err
		}
		switch t := ingest.ParseEventTime(event, time.Time{}); {
		case t.IsZero() && clock.IsZero():
			clock = time.Now()
		case t.After(clock):
			clock = t
		}
		p.ProcessBatch(ctx, batchID, []store.RawEvent{event})
	}

	status := p.Status()
	result := ReplayResult{
		Stats: ReplayStats{
			Events:    len(events),
			Seen:      status.SalesSeen,
			Alerts:    len(rec.alerts),
			Sales24h:  status.Sales24h,
			Volume24h: status.Volume24h,
		},
		Alerts: rec.alerts,
	}
	for _, a := range rec.alerts {
		if len(a.Tags) > 0 {
			result.Stats.Tagged++
		}
	}
	return result, nil
}

// render prints the alerts and the summary as tables.
func render(w io.Writer, result ReplayResult, taggedOnly bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Time", "Kind", "NFT", "Price", "Buyer", "Tags"})

	for _, a := range result.Alerts {
		if taggedOnly && len(a.Tags) == 0 {
			continue
		}
		t.AppendRow(table.Row{
			a.EventTime.UTC().Format(time.RFC3339),
			a.Kind,
			orDash(a.NFT.Name),
			alert.FormatPrice(a.NFT.AmountLamports, a.NFT.HasAmount, "-"),
			alert.Shorten(orDash(a.NFT.Buyer)),
			strings.Join(a.Tags, ", "),
		})
	}
	t.Render()

	s := table.NewWriter()
	s.SetOutputMirror(w)
	s.AppendHeader(table.Row{"Events", "Seen", "Alerts", "Tagged", "Sales 24h", "Volume 24h"})
	s.AppendRow(table.Row{
		result.Stats.Events,
		result.Stats.Seen,
		result.Stats.Alerts,
		result.Stats.Tagged,
		result.Stats.Sales24h,
		fmt.Sprintf("%.2f SOL", result.Stats.Volume24h),
	})
	s.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
