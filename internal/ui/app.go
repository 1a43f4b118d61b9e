// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/geckopulse/engine/internal/metrics"
	"github.com/geckopulse/engine/internal/pipeline"
)

// Source is what the dashboard reads on every refresh.
type Source interface {
	Status() pipeline.Status
	Tracker() *metrics.Tracker
}

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	watchOverview  *WatchOverviewView
	tagAlerts      *TagAlertsView
	recentSales    *RecentSalesView
	recentListings *RecentListingsView
	statsDashboard *StatsDashboardView
	topBuyers      *TopBuyersView

	source  Source
	refresh time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application reading from source every refresh.
func NewApp(source Source, refresh time.Duration) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}

	app := &App{
		app:     tview.NewApplication(),
		source:  source,
		refresh: refresh,
		ctx:     ctx,
		cancel:  cancel,
	}

	app.watchOverview = NewWatchOverviewView()
	app.tagAlerts = NewTagAlertsView()
	app.recentSales = NewRecentSalesView()
	app.recentListings = NewRecentListingsView()
	app.statsDashboard = NewStatsDashboardView()
	app.topBuyers = NewTopBuyersView()

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// setupLayout creates the panel layout.
func (a *App) setupLayout() {
	// Top row: Watch List (left) | Tagged Sales (right)
	topRow := tview.NewFlex().
		AddItem(a.watchOverview.Widget(), 0, 1, false).
		AddItem(a.tagAlerts.Widget(), 0, 2, false)

	// Middle row: Recent Sales | Recent Listings
	middleRow := tview.NewFlex().
		AddItem(a.recentSales.Widget(), 0, 3, false).
		AddItem(a.recentListings.Widget(), 0, 2, false)

	// Bottom row: Stats Dashboard (left) | Top Buyers (right)
	bottomRow := tview.NewFlex().
		AddItem(a.statsDashboard.Widget(), 0, 1, false).
		AddItem(a.topBuyers.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 0, 2, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.redraw()
				return nil
			}
		}
		return event
	})
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// Done is closed once the application stops.
func (a *App) Done() <-chan struct{} {
	return a.ctx.Done()
}

// updateLoop periodically refreshes views from the source.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.redraw()
		}
	}
}

func (a *App) redraw() {
	snapshot := a.source.Tracker().Snapshot()
	status := a.source.Status()

	a.app.QueueUpdateDraw(func() {
		a.apply(snapshot, status)
	})
}

// apply pushes one snapshot into every view.
func (a *App) apply(snapshot metrics.Snapshot, status pipeline.Status) {
	a.watchOverview.Update(status)
	a.tagAlerts.Update(snapshot.RecentSales)
	a.recentSales.Update(snapshot.RecentSales)
	a.recentListings.Update(snapshot.RecentListings)
	a.statsDashboard.Update(snapshot, status)
	a.topBuyers.Update(snapshot.RecentSales)
}
