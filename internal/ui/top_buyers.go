package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rivo/tview"
	"github.com/shopspring/decimal"

	"github.com/geckopulse/engine/internal/store"
)

// BuyerActivity aggregates the recent purchases of one wallet.
type BuyerActivity struct {
	Buyer     string
	Purchases int
	Volume    decimal.Decimal
}

// TopBuyersView ranks wallets in the recent sales feed by volume.
type TopBuyersView struct {
	table *tview.Table
}

var buyersHeaders = []string{"Buyer", "Buys", "Volume"}

// NewTopBuyersView creates a new top buyers view.
func NewTopBuyersView() *TopBuyersView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)
	table.SetTitle(" Top Buyers ").SetBorder(true)
	setHeader(table, buyersHeaders)

	return &TopBuyersView{table: table}
}

// Widget returns the tview primitive.
func (v *TopBuyersView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the ranking from sales.
func (v *TopBuyersView) Update(sales []store.RecentSale) {
	v.table.Clear()
	setHeader(v.table, buyersHeaders)

	buyers := topBuyers(sales, 10)
	if len(buyers) == 0 {
		v.table.SetCell(1, 0, tview.NewTableCell("No data yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1))
		return
	}

	for i, b := range buyers {
		row := i + 1
		v.table.SetCell(row, 0, tview.NewTableCell(truncateAddress(b.Buyer)).SetAlign(tview.AlignLeft))
		v.table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%d", b.Purchases)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 2, tview.NewTableCell(b.Volume.StringFixed(2)+" SOL").SetAlign(tview.AlignRight))
	}
}

// topBuyers groups sales by buyer and orders them by volume, then purchase
// count, then address. Unknown buyers are skipped.
func topBuyers(sales []store.RecentSale, limit int) []BuyerActivity {
	byBuyer := make(map[string]*BuyerActivity)
	for _, sale := range sales {
		if sale.Buyer == "" || sale.Buyer == store.UnknownValue {
			continue
		}
		activity, ok := byBuyer[sale.Buyer]
		if !ok {
			activity = &BuyerActivity{Buyer: sale.Buyer}
			byBuyer[sale.Buyer] = activity
		}
		activity.Purchases++
		if price, ok := parsePrice(sale.Price); ok {
			activity.Volume = activity.Volume.Add(price)
		}
	}

	out := make([]BuyerActivity, 0, len(byBuyer))
	for _, activity := range byBuyer {
		out = append(out, *activity)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Volume.Cmp(out[j].Volume); c != 0 {
			return c > 0
		}
		if out[i].Purchases != out[j].Purchases {
			return out[i].Purchases > out[j].Purchases
		}
		return out[i].Buyer < out[j].Buyer
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// parsePrice reads a feed price such as "12.3400 SOL".
func parsePrice(price string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSuffix(price, " SOL"))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
