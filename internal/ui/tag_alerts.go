package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/geckopulse/engine/internal/store"
)

// TagAlertsView lists recent sales that earned at least one tag.
type TagAlertsView struct {
	list     *tview.List
	maxItems int
}

// NewTagAlertsView creates a new tag alerts view.
func NewTagAlertsView() *TagAlertsView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" 🦎 Tagged Sales ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	return &TagAlertsView{
		list:     list,
		maxItems: 20,
	}
}

// Widget returns the tview primitive.
func (v *TagAlertsView) Widget() tview.Primitive {
	return v.list
}

// Update rebuilds the list from the recent sales feed.
func (v *TagAlertsView) Update(sales []store.RecentSale) {
	v.list.Clear()

	tagged := taggedSales(sales, v.maxItems)
	if len(tagged) == 0 {
		v.list.AddItem("No tagged sales yet", "", 0, nil)
		v.list.SetTitle(" 🦎 Tagged Sales ")
		return
	}

	for _, sale := range tagged {
		main, secondary := formatTaggedSale(sale)
		v.list.AddItem(main, secondary, 0, nil)
	}
	v.list.SetTitle(fmt.Sprintf(" 🦎 Tagged Sales (%d) ", len(tagged)))
}

// taggedSales keeps at most limit sales carrying tags, in feed order.
func taggedSales(sales []store.RecentSale, limit int) []store.RecentSale {
	out := make([]store.RecentSale, 0, limit)
	for _, sale := range sales {
		if len(sale.Tags) == 0 {
			continue
		}
		out = append(out, sale)
		if len(out) == limit {
			break
		}
	}
	return out
}

func formatTaggedSale(sale store.RecentSale) (string, string) {
	icons := make([]string, 0, len(sale.Tags))
	for _, tag := range sale.Tags {
		icons = append(icons, tagIcon(tag))
	}

	main := fmt.Sprintf("%s %s %s", clock(sale.Timestamp), strings.Join(icons, ""), strings.Join(sale.Tags, ", "))
	secondary := fmt.Sprintf("%s | %s | Buyer: %s", truncate(sale.Name, 28), sale.Price, truncateAddress(sale.Buyer))
	return main, secondary
}

func tagIcon(tag string) string {
	switch {
	case tag == store.TagWhale:
		return "🐋"
	case tag == store.TagUnderFloor:
		return "🟢"
	case tag == store.TagAboveFloor:
		return "🔥"
	case tag == store.TagNearFloor:
		return "🟡"
	case strings.HasPrefix(tag, store.TagSweep):
		return "🧹"
	default:
		return "❓"
	}
}
