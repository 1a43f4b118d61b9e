package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/geckopulse/engine/internal/store"
)

var (
	salesHeaders    = []string{"Time", "NFT", "Price", "Buyer", "Seller", "Tags"}
	listingsHeaders = []string{"Time", "NFT", "Listed", "Seller", "Market"}
)

// RecentSalesView displays the recent sales feed, most recent first.
type RecentSalesView struct {
	table *tview.Table
}

// NewRecentSalesView creates a new recent sales view.
func NewRecentSalesView() *RecentSalesView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)
	table.SetTitle(" Recent Sales ").SetBorder(true)
	setHeader(table, salesHeaders)

	return &RecentSalesView{table: table}
}

// Widget returns the tview primitive.
func (v *RecentSalesView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table from sales.
func (v *RecentSalesView) Update(sales []store.RecentSale) {
	v.table.Clear()
	setHeader(v.table, salesHeaders)

	for i, sale := range sales {
		row := i + 1
		cells := []string{
			clock(sale.Timestamp),
			truncate(sale.Name, 24),
			sale.Price,
			truncateAddress(sale.Buyer),
			truncateAddress(sale.Seller),
			strings.Join(sale.Tags, ", "),
		}
		for col, text := range cells {
			cell := tview.NewTableCell(text).SetAlign(tview.AlignLeft)
			if col == 5 && len(sale.Tags) > 0 {
				cell.SetTextColor(tcell.ColorYellow)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Recent Sales (%d) ", len(sales)))
}

// RecentListingsView displays the recent listings feed.
type RecentListingsView struct {
	table *tview.Table
}

// NewRecentListingsView creates a new recent listings view.
func NewRecentListingsView() *RecentListingsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)
	table.SetTitle(" Recent Listings ").SetBorder(true)
	setHeader(table, listingsHeaders)

	return &RecentListingsView{table: table}
}

// Widget returns the tview primitive.
func (v *RecentListingsView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table from listings.
func (v *RecentListingsView) Update(listings []store.RecentListing) {
	v.table.Clear()
	setHeader(v.table, listingsHeaders)

	for i, listing := range listings {
		cells := []string{
			clock(listing.Timestamp),
			truncate(listing.Name, 24),
			listing.Price,
			truncateAddress(listing.Seller),
			listing.Marketplace,
		}
		for col, text := range cells {
			v.table.SetCell(i+1, col, tview.NewTableCell(text).SetAlign(tview.AlignLeft))
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Recent Listings (%d) ", len(listings)))
}

func setHeader(table *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}
}

// clock extracts HH:MM:SS from a feed timestamp, falling back to the raw
// value for shapes it does not recognize.
func clock(ts string) string {
	if i := strings.IndexAny(ts, "T "); i >= 0 && len(ts) >= i+9 {
		return ts[i+1 : i+9]
	}
	return ts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// truncateAddress truncates a wallet address for display.
func truncateAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
