package pricing

import "github.com/shopspring/decimal"

// Pool-share pricing: a side's price is its fraction of the total pool. A floor
// keeps the payout divisor away from zero when one side is empty.
var (
	evenOdds   = decimal.NewFromFloat(0.5)
	priceFloor = decimal.NewFromFloat(0.01)
)

// Price returns the price for a side given its pool and the market's total
// pool, in minor units. Evaluated against the pool state before the new stake
// joins it.
func Price(sidePool, totalPool int64) decimal.Decimal {
	if totalPool == 0 {
		return evenOdds
	}
	price := decimal.NewFromInt(sidePool).Div(decimal.NewFromInt(totalPool))
	if price.LessThan(priceFloor) {
		return priceFloor
	}
	return price
}

// PotentialPayout returns stake/price rounded half-up to the minor unit. The
// result is fixed at placement time and stored, never re-derived.
func PotentialPayout(stakeMinor int64, price decimal.Decimal) int64 {
	return decimal.NewFromInt(stakeMinor).Div(price).Round(0).IntPart()
}
