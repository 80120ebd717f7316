package engine

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/eventbus"
	"fenrir/internal/expiry"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"
)

// indexEntry is what order_index resolves an order id to: which side it
// rests on, the PriceLevel it lives in, and the list.Element giving O(1)
// removal (spec.md §3 "order_id -> (side, price, reference-into-PriceLevel)").
type indexEntry struct {
	side  common.Side
	level *book.PriceLevel
	ref   *list.Element
	order *common.Order
}

// SubmitResult is returned from Submit: the assigned id, any trades it
// produced immediately, and whether a remainder now rests.
type SubmitResult struct {
	OrderID string
	Trades  []common.Trade
	Resting bool
}

// OrderBook owns both SideBooks, the order index, the stop table, the
// trade log, statistics and the expiry wheel for one symbol, and
// serialises every mutating operation behind a single mutex (spec.md §5).
type OrderBook struct {
	mu       sync.Mutex
	poisoned atomic.Bool

	cfg    Config
	bids   *book.SideBook
	asks   *book.SideBook
	index  map[string]*indexEntry
	wheel  *expiry.Wheel
	bus    *eventbus.Bus
	stats  *statsTracker

	stopBuys  []*common.Order
	stopSells []*common.Order

	trades     []common.Trade
	tradeHead  int
	tradeLen   int
	lastTrade  decimal.Decimal
	tradeSeq   uint64

	t *tomb.Tomb
}

// New builds an OrderBook for one symbol and starts its expiry sweeper.
// Grounded on the teacher's engine.New/NewOrderBook pair, generalized from
// a map keyed by AssetType to one book per MarketRegistry entry.
func New(cfg Config) *OrderBook {
	cfg = withDefaults(cfg)
	ob := &OrderBook{
		cfg:   cfg,
		bids:  book.NewSideBook(common.Buy),
		asks:  book.NewSideBook(common.Sell),
		index: make(map[string]*indexEntry),
		wheel: expiry.New(),
		bus:   eventbus.New(cfg.MaxEventHistory),
		stats: newStatsTracker(),
		trades: make([]common.Trade, cfg.MaxTradeHistory),
	}
	ob.t = &tomb.Tomb{}
	ob.t.Go(ob.sweepLoop)
	return ob
}

// EventBus exposes the subscription handle (spec.md §6).
func (ob *OrderBook) EventBus() *eventbus.Bus { return ob.bus }

// Close stops the expiry sweeper.
func (ob *OrderBook) Close() error {
	ob.t.Kill(nil)
	return ob.t.Wait()
}

func (ob *OrderBook) publish(t eventbus.EventType, payload any) {
	ob.bus.Publish(eventbus.Event{Type: t, Symbol: ob.cfg.Symbol, Timestamp: time.Now(), Payload: payload})
}

// poison flips the book into its fatal, refuse-everything state (spec.md
// §7). Must only be called for genuine internal-invariant violations, not
// for ordinary validation/semantic rejections.
func (ob *OrderBook) poison(reason string) {
	ob.poisoned.Store(true)
	log.Error().Str("symbol", ob.cfg.Symbol).Str("reason", reason).Msg("order book poisoned")
}

// Submit validates, matches and (if any remainder survives time-in-force
// processing) rests order, returning its assigned id and any trades
// produced (spec.md §4.3, §6).
func (ob *OrderBook) Submit(order common.Order) (SubmitResult, error) {
	start := time.Now()
	ob.mu.Lock()
	defer ob.mu.Unlock()
	defer func() { ob.stats.recordLatency(time.Since(start)) }()

	if ob.poisoned.Load() {
		return SubmitResult{}, common.ErrPoisoned
	}

	order.SubmitTimestamp = start
	order.NormalizeSentinel()
	order.AssignID()
	if order.OriginalQuantity.IsZero() {
		order.OriginalQuantity = order.Quantity
	}

	if _, exists := ob.index[order.OrderID]; exists {
		return SubmitResult{}, common.ErrDuplicateOrderID
	}
	if _, exists := ob.findStop(order.OrderID); exists {
		return SubmitResult{}, common.ErrDuplicateOrderID
	}
	if err := order.Validate(ob.cfg.PricePrecision, ob.cfg.QuantityPrecision, start); err != nil {
		return SubmitResult{}, err
	}

	res, err := ob.submitLocked(&order)
	if err != nil {
		return SubmitResult{}, err
	}
	ob.armStops()
	return res, nil
}

// submitLocked runs the full matching + TIF pipeline for an order that has
// already been validated and assigned an id. Callers must hold ob.mu. Used
// directly by Submit and recursively by stop arming / modify's
// lose-priority path, neither of which may re-acquire the lock.
func (ob *OrderBook) submitLocked(order *common.Order) (SubmitResult, error) {
	if order.IsStop() && !ob.stopTriggeredNow(order) {
		ob.parkStop(order)
		return SubmitResult{OrderID: order.OrderID, Resting: false}, nil
	}
	// A triggered stop resubmits as its underlying type.
	if order.OrderType == common.StopLimit {
		order.OrderType = common.Limit
	}
	if order.OrderType == common.StopMarket {
		order.OrderType = common.Market
	}

	opposite, own := ob.sides(order.Side)

	if order.TimeInForce == common.FOK {
		if !ob.probeFillable(order, opposite) {
			ob.publish(eventbus.OrderRejected, eventbus.OrderRejectedPayload{OrderID: order.OrderID, Reason: "FOK_UNFILLABLE"})
			return SubmitResult{}, common.ErrFOKUnfillable
		}
	}
	if order.TimeInForce == common.PostOnly {
		if ob.wouldCross(order, opposite) {
			ob.publish(eventbus.OrderRejected, eventbus.OrderRejectedPayload{OrderID: order.OrderID, Reason: "POST_ONLY_WOULD_CROSS"})
			return SubmitResult{}, common.ErrPostOnlyWouldCross
		}
	}

	beforeBid, beforeAsk := ob.topOfBook()

	trades := ob.runMatch(order, opposite)

	resting := ob.applyTIF(order, own)

	ob.publish(eventbus.BookUpdated, eventbus.BookUpdatedPayload{})
	afterBid, afterAsk := ob.topOfBook()
	if !beforeBid.Equal(afterBid) || !beforeAsk.Equal(afterAsk) {
		ob.publish(eventbus.DepthChanged, eventbus.DepthChangedPayload{Depth: 0})
	}

	return SubmitResult{OrderID: order.OrderID, Trades: trades, Resting: resting}, nil
}

func (ob *OrderBook) sides(side common.Side) (opposite, own *book.SideBook) {
	if side == common.Buy {
		return ob.asks, ob.bids
	}
	return ob.bids, ob.asks
}

func (ob *OrderBook) topOfBook() (bid, ask decimal.Decimal) {
	bid, ask = decimal.Zero, decimal.Zero
	if lvl, ok := ob.bids.Best(); ok {
		bid = lvl.Price
	}
	if lvl, ok := ob.asks.Best(); ok {
		ask = lvl.Price
	}
	return
}

// Cancel removes a resting order in O(1) via the index (spec.md §4.3).
func (ob *OrderBook) Cancel(orderID string) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.poisoned.Load() {
		return common.ErrPoisoned
	}
	return ob.cancelLocked(orderID, "CANCEL")
}

func (ob *OrderBook) cancelLocked(orderID, reason string) error {
	if o, ok := ob.findStop(orderID); ok {
		ob.removeStop(o)
		ob.wheel.Cancel(orderID)
		ob.publish(eventbus.OrderCancelled, eventbus.OrderCancelledPayload{OrderID: orderID, Reason: reason})
		return nil
	}

	e, ok := ob.index[orderID]
	if !ok {
		return common.ErrNotFound
	}
	sb := ob.sideBook(e.side)
	sb.Remove(e.level, e.ref)
	delete(ob.index, orderID)
	ob.wheel.Cancel(orderID)

	ob.publish(eventbus.OrderCancelled, eventbus.OrderCancelledPayload{
		OrderID:  orderID,
		Reason:   reason,
		Quantity: e.order.Quantity.String(),
	})
	return nil
}

func (ob *OrderBook) sideBook(side common.Side) *book.SideBook {
	if side == common.Buy {
		return ob.bids
	}
	return ob.asks
}

// ModifyPatch describes a requested change to a resting order (spec.md §4.3).
// Nil fields are left unchanged.
type ModifyPatch struct {
	NewPrice    *decimal.Decimal
	NewQuantity *decimal.Decimal
	NewExpiry   *time.Time
}

// Modify applies patch atomically: all requested changes apply or none
// (spec.md §4.3). A price change or quantity increase loses time priority
// (cancel + reinsert at the tail, re-running the cross-check); a strict
// quantity decrease at an unchanged price keeps it; quantity 0 cancels;
// an expiry-only change keeps priority and reschedules.
func (ob *OrderBook) Modify(orderID string, patch ModifyPatch) (SubmitResult, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.poisoned.Load() {
		return SubmitResult{}, common.ErrPoisoned
	}

	e, ok := ob.index[orderID]
	if !ok {
		return SubmitResult{}, common.ErrNotFound
	}
	old := e.order

	newPrice := old.Price
	if patch.NewPrice != nil {
		newPrice = *patch.NewPrice
	}
	newQty := old.Quantity
	if patch.NewQuantity != nil {
		newQty = *patch.NewQuantity
	}
	if patch.NewPrice != nil && !hasValidPrecision(newPrice, ob.cfg.PricePrecision) {
		return SubmitResult{}, common.ErrInvalidPatch
	}
	if patch.NewQuantity != nil && (!hasValidPrecision(newQty, ob.cfg.QuantityPrecision) || newQty.IsNegative()) {
		return SubmitResult{}, common.ErrInvalidPatch
	}

	if patch.NewQuantity != nil && newQty.IsZero() {
		return SubmitResult{}, ob.cancelLocked(orderID, "MODIFY_TO_ZERO")
	}

	priceChanged := patch.NewPrice != nil && !newPrice.Equal(old.Price)
	qtyIncreased := patch.NewQuantity != nil && newQty.GreaterThan(old.Quantity)

	if priceChanged || qtyIncreased {
		if old.TimeInForce == common.PostOnly {
			probe := old.Clone()
			probe.Price = newPrice
			if opposite, _ := ob.sides(old.Side); ob.wouldCross(&probe, opposite) {
				ob.publish(eventbus.OrderRejected, eventbus.OrderRejectedPayload{OrderID: orderID, Reason: "POST_ONLY_WOULD_CROSS"})
				return SubmitResult{}, common.ErrPostOnlyWouldCross
			}
		}
		sb := ob.sideBook(e.side)
		sb.Remove(e.level, e.ref)
		delete(ob.index, orderID)
		ob.wheel.Cancel(orderID)

		moved := old.Clone()
		moved.Price = newPrice
		moved.Quantity = newQty
		if newQty.GreaterThan(moved.OriginalQuantity) {
			moved.OriginalQuantity = newQty
		}
		if patch.NewExpiry != nil {
			moved.ExpiryTime = *patch.NewExpiry
		}

		res, err := ob.submitLocked(&moved)
		if err != nil {
			return res, err
		}
		ob.publish(eventbus.OrderModified, eventbus.OrderModifiedPayload{
			OrderID: orderID, LostPriority: true,
			NewPrice: newPrice.String(), NewQuantity: newQty.String(),
		})
		ob.armStops()
		return res, nil
	}

	// Retains priority: in-place quantity decrease and/or expiry change.
	if patch.NewQuantity != nil {
		old.Quantity = newQty
	}
	if patch.NewExpiry != nil {
		old.ExpiryTime = *patch.NewExpiry
		if old.TimeInForce == common.GTD {
			ob.wheel.Schedule(orderID, old.ExpiryTime.UnixNano())
		}
	}
	ob.publish(eventbus.OrderModified, eventbus.OrderModifiedPayload{
		OrderID: orderID, LostPriority: false,
		NewPrice: old.Price.String(), NewQuantity: old.Quantity.String(),
	})
	return SubmitResult{OrderID: orderID, Resting: true}, nil
}

func hasValidPrecision(d decimal.Decimal, places int32) bool {
	return d.Round(places).Equal(d)
}
