package book

import (
	"container/list"

	"fenrir/internal/common"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// DepthLevel is one row of a depth snapshot (spec.md §6).
type DepthLevel struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	OrderCount int
}

// SideBook is the sorted price -> PriceLevel map for one side of one
// instrument (spec.md §4.1). Bids are ordered with the highest price first;
// asks with the lowest price first — both "best" in Items()/Ascend order.
// Grounded directly on the teacher's internal/engine/orderbook.go, which
// keys a btree.BTreeG[*PriceLevel] the same way.
type SideBook struct {
	side  common.Side
	tree  *btree.BTreeG[*PriceLevel]
}

// NewSideBook builds a SideBook for the given side with the comparator that
// makes the best price sort first.
func NewSideBook(side common.Side) *SideBook {
	var less func(a, b *PriceLevel) bool
	if side == common.Buy {
		// Bids: best = highest price, so sort descending.
		less = func(a, b *PriceLevel) bool { return a.Price.GreaterThan(b.Price) }
	} else {
		// Asks: best = lowest price, so sort ascending.
		less = func(a, b *PriceLevel) bool { return a.Price.LessThan(b.Price) }
	}
	return &SideBook{side: side, tree: btree.NewBTreeG(less)}
}

// Insert appends order to the tail of the queue at order.Price, creating
// the level if it did not already exist. Returns the level and the
// list.Element reference the caller (OrderBook) must keep for O(1) removal,
// and whether a brand new level was created (PriceLevelAdded event trigger).
func (sb *SideBook) Insert(o *common.Order) (level *PriceLevel, ref *list.Element, levelCreated bool) {
	probe := &PriceLevel{Price: o.Price}
	level, ok := sb.tree.GetMut(probe)
	if !ok {
		level = newPriceLevel(o.Price, sb.side)
		sb.tree.Set(level)
		levelCreated = true
	}
	ref = level.Append(o)
	return level, ref, levelCreated
}

// Remove deletes the order at ref from level, removing the level itself
// from the tree if it becomes empty (spec.md §4 invariant 5). Returns
// whether the level was removed.
func (sb *SideBook) Remove(level *PriceLevel, ref *list.Element) (levelRemoved bool) {
	level.Remove(ref)
	return sb.DeleteLevelIfEmpty(level)
}

// DeleteLevelIfEmpty removes level from the tree if it no longer holds any
// live orders. Used by the matcher, which removes drained makers directly
// via PriceLevel.Remove while draining a level, then calls this once the
// drain of that level is done.
func (sb *SideBook) DeleteLevelIfEmpty(level *PriceLevel) bool {
	if level.Empty() {
		sb.tree.Delete(level)
		return true
	}
	return false
}

// Best peeks at the best-price level without removing it.
func (sb *SideBook) Best() (*PriceLevel, bool) {
	return sb.tree.MinMut()
}

// Get looks up the level resting at price, if any.
func (sb *SideBook) Get(price decimal.Decimal) (*PriceLevel, bool) {
	return sb.tree.GetMut(&PriceLevel{Price: price})
}

// Levels returns every level in matching order (best first).
func (sb *SideBook) Levels() []*PriceLevel {
	return sb.tree.Items()
}

// Len is the number of distinct price levels resting on this side.
func (sb *SideBook) Len() int {
	return sb.tree.Len()
}

// Depth produces the top `limit` levels as a snapshot row set (spec.md §6).
// limit <= 0 means "all levels". Uses the displayed view by default, per
// spec.md §3 "snapshots default to the displayed view".
func (sb *SideBook) Depth(limit int) []DepthLevel {
	levels := sb.tree.Items()
	if limit > 0 && limit < len(levels) {
		levels = levels[:limit]
	}
	out := make([]DepthLevel, len(levels))
	for i, lvl := range levels {
		out[i] = DepthLevel{
			Price:      lvl.Price,
			Quantity:   lvl.DisplayedQuantity(),
			OrderCount: lvl.OrderCount(),
		}
	}
	return out
}

// TotalQuantity sums true (non-displayed) remaining quantity across the
// whole side.
func (sb *SideBook) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range sb.tree.Items() {
		total = total.Add(lvl.AggregateQuantity())
	}
	return total
}
