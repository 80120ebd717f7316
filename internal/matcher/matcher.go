// Package matcher implements the pure matching algorithm: given a taker
// order and the opposing SideBook, it drains crossing levels head-first and
// returns the fills produced, without emitting events or touching any
// OrderBook bookkeeping (spec.md §4.2, §9 — "Matcher is pure... to keep
// Matcher pure").
//
// Grounded on the teacher's internal/engine/orderbook.go Match()/
// handleMarket() draining loops; restructured into a standalone function so
// the OrderBook, not the Matcher, applies side effects.
package matcher

import (
	"container/list"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"github.com/shopspring/decimal"
)

// Fill is one maker/taker match produced by a single pass of Match.
type Fill struct {
	MakerOrder   *common.Order
	MakerLevel   *book.PriceLevel
	MakerRef     *list.Element
	MakerDrained bool // true if the maker's quantity reached zero
	Quantity     decimal.Decimal
	Price        decimal.Decimal // always the maker's resting price
}

// Result is the outcome of one Match call.
type Result struct {
	Fills           []Fill
	ContinueResting bool // taker has quantity left and may rest
}

// Crosses reports whether the taker's limit crosses the opposing level's
// price (spec.md §4.2 step 2). Market takers always cross. Exported so the
// OrderBook can reuse the same rule for FOK probing and post-only checks
// without duplicating the price-comparison logic.
func Crosses(taker *common.Order, level *book.PriceLevel) bool {
	if taker.OrderType == common.Market || taker.OrderType == common.StopMarket {
		return true
	}
	if taker.Side == common.Buy {
		return level.Price.LessThanOrEqual(taker.Price)
	}
	return level.Price.GreaterThanOrEqual(taker.Price)
}

// Match drains opposite while taker.Quantity > 0 and the book crosses,
// head-first within each level. Price improvement is implicit: every fill
// executes at the maker's resting price, never the taker's limit (spec.md
// §4.2 step 3).
func Match(taker *common.Order, opposite *book.SideBook) Result {
	var fills []Fill

	for taker.Quantity.IsPositive() {
		level, ok := opposite.Best()
		if !ok || !Crosses(taker, level) {
			break
		}

		// Drain this level head-first until either the level empties or the
		// taker's quantity is exhausted.
		for taker.Quantity.IsPositive() {
			maker, ref := level.PeekFront()
			if maker == nil {
				break
			}

			fillQty := decimal.Min(taker.Quantity, maker.Quantity)
			taker.Quantity = taker.Quantity.Sub(fillQty)
			maker.Quantity = maker.Quantity.Sub(fillQty)
			maker.RefillIceberg()

			drained := maker.Quantity.IsZero()
			fills = append(fills, Fill{
				MakerOrder:   maker,
				MakerLevel:   level,
				MakerRef:     ref,
				MakerDrained: drained,
				Quantity:     fillQty,
				Price:        level.Price,
			})

			if !drained {
				// Partial maker fill always means the taker is exhausted —
				// the outer `for taker.Quantity.IsPositive()` will exit.
				break
			}
			level.Remove(ref)
		}

		opposite.DeleteLevelIfEmpty(level)
	}

	return Result{Fills: fills, ContinueResting: taker.Quantity.IsPositive()}
}
