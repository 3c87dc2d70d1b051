// Package geometry implements the pure price-to-index mapping that
// anchors every grid pair to a restart-invariant ladder position.
// Nothing here touches mutable runtime state.
package geometry

import (
	"math"

	"gridengine/internal/models"
)

// IndexFor returns the canonical pair index for price, given the
// group's anchor, spread, and the direction being evaluated.
//
//	Buy:  index = round((price - anchor) / spread)
//	Sell: index = round((price - anchor) / spread) + 1
func IndexFor(anchor, spread, price float64, direction models.Direction) int32 {
	n := int32(math.Round((price - anchor) / spread))
	if direction == models.Sell {
		n++
	}
	return n
}

// PricesFor returns the buy and sell levels of pair index n under the
// given anchor and spread.
//
//	buy  = anchor + n*spread
//	sell = buy - spread
func PricesFor(anchor, spread float64, n int32) (buy, sell float64) {
	buy = anchor + float64(n)*spread
	sell = buy - spread
	return buy, sell
}
