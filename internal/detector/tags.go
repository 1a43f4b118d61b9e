package detector

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/geckopulse/engine/internal/store"
)

var (
	lamportsPerSOL  = decimal.NewFromInt(store.LamportsPerSOL)
	underFloorRatio = decimal.RequireFromString("0.98")
	aboveFloorRatio = decimal.RequireFromString("1.2")
)

// SaleTags classifies a sale. It is a pure function of its inputs:
//   - "Whale" when the price reaches whaleSOL
//   - exactly one of "Under Floor" (<= 98%), "Above Floor" (>= 120%) or
//     "Near Floor" when a floor is known
//   - "Sweep x{n}" when sweepCount is non-zero
//
// Price-based tags need a known amount; both floor bounds are inclusive.
func SaleTags(amountLamports int64, hasAmount bool, floor *store.FloorSnapshot, whaleSOL float64, sweepCount int) []string {
	var tags []string

	if hasAmount {
		price := decimal.NewFromInt(amountLamports).Div(lamportsPerSOL)

		if price.GreaterThanOrEqual(decimal.NewFromFloat(whaleSOL)) {
			tags = append(tags, store.TagWhale)
		}

		if floor != nil && floor.PriceSOL > 0 {
			floorSOL := decimal.NewFromFloat(floor.PriceSOL)
			switch {
			case price.LessThanOrEqual(floorSOL.Mul(underFloorRatio)):
				tags = append(tags, store.TagUnderFloor)
			case price.GreaterThanOrEqual(floorSOL.Mul(aboveFloorRatio)):
				tags = append(tags, store.TagAboveFloor)
			default:
				tags = append(tags, store.TagNearFloor)
			}
		}
	}

	if sweepCount > 0 {
		tags = append(tags, SweepTag(sweepCount))
	}

	return tags
}

// SweepTag renders the sweep tag for count purchases.
func SweepTag(count int) string {
	return fmt.Sprintf("%s x%d", store.TagSweep, count)
}

// LamportsToSOL converts a lamport amount to whole SOL.
func LamportsToSOL(lamports int64) float64 {
	sol, _ := decimal.NewFromInt(lamports).Div(lamportsPerSOL).Float64()
	return sol
}
