package engine

import (
	"time"

	"fenrir/internal/book"
	"fenrir/internal/eventbus"
	"github.com/shopspring/decimal"
)

// Snapshot is the wire-stable point-in-time view of a book's two sides
// (spec.md §6 "Snapshot format").
type Snapshot struct {
	Symbol    string
	Timestamp time.Time
	Bids      []book.DepthLevel
	Asks      []book.DepthLevel
	LastTrade decimal.Decimal
}

// Snapshot returns the top `depth` levels per side (depth <= 0 means all
// levels), using the displayed-quantity view.
func (ob *OrderBook) Snapshot(depth int) Snapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	snap := Snapshot{
		Symbol:    ob.cfg.Symbol,
		Timestamp: time.Now(),
		Bids:      ob.bids.Depth(depth),
		Asks:      ob.asks.Depth(depth),
		LastTrade: ob.lastTrade,
	}
	ob.publish(eventbus.SnapshotCreated, eventbus.SnapshotCreatedPayload{Depth: depth})
	return snap
}
