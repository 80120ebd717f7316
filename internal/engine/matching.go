package engine

import (
	"fmt"
	"time"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/eventbus"
	"fenrir/internal/matcher"
)

// runMatch drives the pure Matcher over order against opposite, turning
// each Fill into a Trade plus the maker-side events, and folds in the
// taker-side event/resting decision driven by order type and
// time-in-force (spec.md §4.2 "Time-in-force post-processing... applied by
// OrderBook, not Matcher, to keep Matcher pure").
func (ob *OrderBook) runMatch(order *common.Order, opposite *book.SideBook) []common.Trade {
	result := matcher.Match(order, opposite)

	var trades []common.Trade
	for _, f := range result.Fills {
		trade := common.Trade{
			TradeID:      ob.nextTradeID(),
			MakerOrderID: f.MakerOrder.OrderID,
			TakerOrderID: order.OrderID,
			Price:        f.Price,
			Quantity:     f.Quantity,
			Timestamp:    time.Now(),
			MakerFeeRate: ob.cfg.MakerFeeRate,
			TakerFeeRate: ob.cfg.TakerFeeRate,
			MakerUserID:  f.MakerOrder.UserID,
			TakerUserID:  order.UserID,
		}
		trade.ComputeFees()
		ob.recordTrade(trade)
		ob.lastTrade = trade.Price
		ob.stats.recordTrade(trade)
		trades = append(trades, trade)

		ob.publish(eventbus.TradeExecuted, eventbus.TradeExecutedPayload{
			MakerOrderID: trade.MakerOrderID, TakerOrderID: trade.TakerOrderID,
			Price: trade.Price.String(), Quantity: trade.Quantity.String(),
			MakerFee: trade.MakerFee.String(), TakerFee: trade.TakerFee.String(),
			MakerUserID: trade.MakerUserID, TakerUserID: trade.TakerUserID,
		})

		if f.MakerDrained {
			delete(ob.index, f.MakerOrder.OrderID)
		}

		ob.publish(eventbus.OrderFilled, eventbus.OrderFilledPayload{
			OrderID:           f.MakerOrder.OrderID,
			FilledQuantity:    f.Quantity.String(),
			RemainingQuantity: f.MakerOrder.Quantity.String(),
		})

		levelSide := ob.sideBook(f.MakerLevel.Side)
		if _, stillThere := levelSide.Get(f.MakerLevel.Price); stillThere {
			ob.publish(eventbus.PriceLevelChanged, eventbus.PriceLevelPayload{
				Side: int(f.MakerLevel.Side), Price: f.MakerLevel.Price.String(),
				Quantity: f.MakerLevel.DisplayedQuantity().String(), OrderCount: f.MakerLevel.OrderCount(),
			})
		} else {
			ob.publish(eventbus.PriceLevelRemoved, eventbus.PriceLevelPayload{
				Side: int(f.MakerLevel.Side), Price: f.MakerLevel.Price.String(),
			})
		}
	}

	if len(trades) > 0 {
		ob.stats.orderFills++
	}
	return trades
}

// applyTIF decides, after matching, whether order's remainder rests, is
// discarded, or was already handled (FOK is guaranteed complete by the
// probe before matching ever ran). Returns whether the order now rests.
//
// A non-Market taker that is fully consumed by matching (quantity reaches
// zero) gets its own terminal OrderFilled here, for parity with the Market
// branch below and so MarketRegistry's subscribeIndexing (which only ever
// sees OrderAdded/OrderCancelled/OrderExpired/OrderFilled) has an event to
// retire the id on — otherwise an order that loses priority via Modify and
// then fully fills as the resubmitted taker would stay indexed forever.
func (ob *OrderBook) applyTIF(order *common.Order, own *book.SideBook) bool {
	if order.OrderType != common.Market && !order.Quantity.IsPositive() {
		ob.publish(eventbus.OrderFilled, eventbus.OrderFilledPayload{
			OrderID: order.OrderID, RemainingQuantity: order.Quantity.String(),
		})
	}

	switch {
	case order.OrderType == common.Market:
		flag := ""
		if order.Quantity.IsPositive() {
			flag = "MARKET_INSUFFICIENT_LIQUIDITY"
		}
		ob.publish(eventbus.OrderFilled, eventbus.OrderFilledPayload{
			OrderID: order.OrderID, RemainingQuantity: order.Quantity.String(), Flag: flag,
		})
		return false

	case order.TimeInForce == common.IOC:
		if order.Quantity.IsPositive() {
			filledSomething := !order.Quantity.Equal(order.OriginalQuantity)
			if filledSomething {
				ob.publish(eventbus.OrderCancelled, eventbus.OrderCancelledPayload{
					OrderID: order.OrderID, Reason: "IOC_REMAINDER", Quantity: order.Quantity.String(),
				})
			}
		}
		return false

	case order.TimeInForce == common.FOK:
		// The probe in submitLocked guarantees full consumption; nothing
		// should remain, so there's nothing further to rest or discard.
		return false

	default: // GTC, GTD, Day, PostOnly
		if !order.Quantity.IsPositive() {
			return false
		}
		ob.insertResting(order, own)
		return true
	}
}

func (ob *OrderBook) insertResting(order *common.Order, own *book.SideBook) {
	level, ref, created := own.Insert(order)
	ob.index[order.OrderID] = &indexEntry{side: order.Side, level: level, ref: ref, order: order}

	switch order.TimeInForce {
	case common.GTD:
		ob.wheel.Schedule(order.OrderID, order.ExpiryTime.UnixNano())
	case common.Day:
		ob.wheel.Schedule(order.OrderID, ob.cfg.sessionEnd(order.SubmitTimestamp).UnixNano())
	}

	if created {
		ob.publish(eventbus.PriceLevelAdded, eventbus.PriceLevelPayload{
			Side: int(order.Side), Price: level.Price.String(),
			Quantity: level.DisplayedQuantity().String(), OrderCount: level.OrderCount(),
		})
	}
	ob.publish(eventbus.OrderAdded, eventbus.OrderAddedPayload{
		OrderID: order.OrderID, Side: int(order.Side),
		Price: order.Price.String(), Quantity: order.Quantity.String(), UserID: order.UserID,
	})
}

// probeFillable reports whether order's full original quantity can be
// filled at crossing prices without mutating the book — the FOK two-phase
// check (spec.md §4.2 "probe the opposing book to compute the maximum
// fillable quantity").
func (ob *OrderBook) probeFillable(order *common.Order, opposite *book.SideBook) bool {
	need := order.OriginalQuantity
	for _, level := range opposite.Levels() {
		if !matcher.Crosses(order, level) {
			break
		}
		need = need.Sub(level.AggregateQuantity())
		if !need.IsPositive() {
			return true
		}
	}
	return false
}

// wouldCross reports whether order would execute any fill at all right
// now — the post-only pre-check (spec.md §4.2 "if any fill would occur,
// reject").
func (ob *OrderBook) wouldCross(order *common.Order, opposite *book.SideBook) bool {
	level, ok := opposite.Best()
	if !ok {
		return false
	}
	return matcher.Crosses(order, level)
}

func (ob *OrderBook) nextTradeID() string {
	ob.tradeSeq++
	return fmt.Sprintf("%s-T%d", ob.cfg.Symbol, ob.tradeSeq)
}

func (ob *OrderBook) recordTrade(t common.Trade) {
	ob.trades[ob.tradeHead] = t
	ob.tradeHead = (ob.tradeHead + 1) % len(ob.trades)
	if ob.tradeLen < len(ob.trades) {
		ob.tradeLen++
	}
}

// Trades returns up to limit most-recent trades, most recent first
// (spec.md §6).
func (ob *OrderBook) Trades(limit int) []common.Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	out := make([]common.Trade, 0, ob.tradeLen)
	for i := 0; i < ob.tradeLen; i++ {
		idx := (ob.tradeHead - 1 - i + len(ob.trades)) % len(ob.trades)
		out = append(out, ob.trades[idx])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
