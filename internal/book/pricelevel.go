// Package book implements the price-indexed order queues of one side of one
// instrument's book: PriceLevel (one price, FIFO queue of orders) and
// SideBook (a sorted price -> PriceLevel map with best-price access).
//
// Grounded on the teacher's internal/engine/orderbook.go PriceLevel/BTreeG
// shape, generalized to give O(1) cancel via a container/list queue instead
// of the teacher's append-only slice (spec.md §4.1).
package book

import (
	"container/list"

	"fenrir/internal/common"
	"github.com/shopspring/decimal"
)

// PriceLevel is the ordered queue of resting orders at one price on one
// side. The head of the list is the oldest order (highest time priority).
type PriceLevel struct {
	Price decimal.Decimal
	Side  common.Side
	queue *list.List
}

func newPriceLevel(price decimal.Decimal, side common.Side) *PriceLevel {
	return &PriceLevel{Price: price, Side: side, queue: list.New()}
}

// OrderCount is the number of live orders resting at this level.
func (pl *PriceLevel) OrderCount() int {
	return pl.queue.Len()
}

// Front returns the oldest resting order, or nil if the level is empty.
func (pl *PriceLevel) Front() *common.Order {
	if e := pl.queue.Front(); e != nil {
		return e.Value.(*common.Order)
	}
	return nil
}

// Append adds an order to the tail of the queue (lowest time priority at
// this price) and returns a reference usable for O(1) removal later.
func (pl *PriceLevel) Append(o *common.Order) *list.Element {
	return pl.queue.PushBack(o)
}

// Remove deletes the order at ref from the queue in O(1).
func (pl *PriceLevel) Remove(ref *list.Element) {
	pl.queue.Remove(ref)
}

// PeekFront returns the oldest live order and its removal reference without
// removing it, or nil if the level is empty. Used by the matcher's
// head-first drain, which removes explicitly once a maker is exhausted.
func (pl *PriceLevel) PeekFront() (*common.Order, *list.Element) {
	e := pl.queue.Front()
	if e == nil {
		return nil, nil
	}
	return e.Value.(*common.Order), e
}

// Orders returns the live orders in time priority (head first). Intended
// for matching/snapshot iteration, not for mutation.
func (pl *PriceLevel) Orders() []*common.Order {
	out := make([]*common.Order, 0, pl.queue.Len())
	for e := pl.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*common.Order))
	}
	return out
}

// AggregateQuantity sums true remaining quantity across all live orders.
func (pl *PriceLevel) AggregateQuantity() decimal.Decimal {
	total := decimal.Zero
	for e := pl.queue.Front(); e != nil; e = e.Next() {
		total = total.Add(e.Value.(*common.Order).Quantity)
	}
	return total
}

// DisplayedQuantity sums the quantity visible to a depth snapshot: full
// quantity for ordinary orders, the refilled displayed slice for icebergs
// (spec.md §3 SideBook "two views").
func (pl *PriceLevel) DisplayedQuantity() decimal.Decimal {
	total := decimal.Zero
	for e := pl.queue.Front(); e != nil; e = e.Next() {
		total = total.Add(e.Value.(*common.Order).DisplayQuantity())
	}
	return total
}

// Empty reports whether the level has no more live orders; per spec.md §4
// invariant 5 such a level must not remain in its SideBook.
func (pl *PriceLevel) Empty() bool {
	return pl.queue.Len() == 0
}
