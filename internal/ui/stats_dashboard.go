package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/geckopulse/engine/internal/metrics"
	"github.com/geckopulse/engine/internal/pipeline"
)

// StatsDashboardView displays counters and rolling volume.
type StatsDashboardView struct {
	textView *tview.TextView
}

// NewStatsDashboardView creates a new stats dashboard view.
func NewStatsDashboardView() *StatsDashboardView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Stats Dashboard ").SetBorder(true)

	return &StatsDashboardView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *StatsDashboardView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the stats display.
func (v *StatsDashboardView) Update(snapshot metrics.Snapshot, status pipeline.Status) {
	v.textView.Clear()
	fmt.Fprint(v.textView, statsText(snapshot, status))
}

func statsText(snapshot metrics.Snapshot, status pipeline.Status) string {
	deliveryPct := 0.0
	if snapshot.Seen > 0 {
		deliveryPct = float64(snapshot.Sent) / float64(snapshot.Seen) * 100
	}

	return fmt.Sprintf(`[yellow]System Status[-]
Uptime: %s
Last event: %s

[yellow]Events[-]
Seen: %d
Alerts sent: %d (%.1f%%)
Rate: %.2f events/sec

[yellow]Last 24h[-]
Sales: %d
Volume: %.2f SOL
`,
		formatDuration(snapshot.Uptime),
		status.LastEventTime,
		snapshot.Seen,
		snapshot.Sent,
		deliveryPct,
		snapshot.EventRate,
		status.Sales24h,
		status.Volume24h,
	)
}

// WatchOverviewView shows what the pipeline is filtering on.
type WatchOverviewView struct {
	textView *tview.TextView
}

// NewWatchOverviewView creates a new watch overview view.
func NewWatchOverviewView() *WatchOverviewView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	textView.SetTitle(" Watch List ").SetBorder(true)

	return &WatchOverviewView{textView: textView}
}

// Widget returns the tview primitive.
func (v *WatchOverviewView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the watch overview.
func (v *WatchOverviewView) Update(status pipeline.Status) {
	v.textView.Clear()

	sources := strings.Join(status.WatchSources, ", ")
	if sources == "" {
		sources = "all"
	}
	mints := "all"
	if status.WatchMintsCount > 0 {
		mints = fmt.Sprintf("%d", status.WatchMintsCount)
	}

	fmt.Fprintf(v.textView, `[yellow]Sources[-]
%s

[yellow]Mints[-]
%s

[yellow]Mint list[-]
%s
`, sources, mints, status.MintlistURL)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
