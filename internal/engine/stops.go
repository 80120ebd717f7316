package engine

import (
	"sort"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/eventbus"
	"github.com/shopspring/decimal"
)

// findStop locates a parked stop order by id in either stop table.
func (ob *OrderBook) findStop(orderID string) (*common.Order, bool) {
	for _, o := range ob.stopBuys {
		if o.OrderID == orderID {
			return o, true
		}
	}
	for _, o := range ob.stopSells {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return nil, false
}

// parkStop files an untriggered stop order into its table, keeping the
// table sorted in arming order: ascending trigger price for buys,
// descending for sells, ties broken by submit timestamp (spec.md §4.2
// "stop arming order").
func (ob *OrderBook) parkStop(order *common.Order) {
	ob.publish(eventbus.OrderAdded, eventbus.OrderAddedPayload{
		OrderID: order.OrderID, Side: int(order.Side),
		Price: order.Price.String(), Quantity: order.Quantity.String(), UserID: order.UserID,
	})
	if order.Side == common.Buy {
		ob.stopBuys = append(ob.stopBuys, order)
		sort.SliceStable(ob.stopBuys, func(i, j int) bool {
			if !ob.stopBuys[i].StopPrice.Equal(ob.stopBuys[j].StopPrice) {
				return ob.stopBuys[i].StopPrice.LessThan(ob.stopBuys[j].StopPrice)
			}
			return ob.stopBuys[i].SubmitTimestamp.Before(ob.stopBuys[j].SubmitTimestamp)
		})
		return
	}
	ob.stopSells = append(ob.stopSells, order)
	sort.SliceStable(ob.stopSells, func(i, j int) bool {
		if !ob.stopSells[i].StopPrice.Equal(ob.stopSells[j].StopPrice) {
			return ob.stopSells[i].StopPrice.GreaterThan(ob.stopSells[j].StopPrice)
		}
		return ob.stopSells[i].SubmitTimestamp.Before(ob.stopSells[j].SubmitTimestamp)
	})
}

// removeStop deletes order from whichever stop table holds it.
func (ob *OrderBook) removeStop(order *common.Order) {
	table := &ob.stopBuys
	if order.Side == common.Sell {
		table = &ob.stopSells
	}
	for i, o := range *table {
		if o.OrderID == order.OrderID {
			*table = append((*table)[:i], (*table)[i+1:]...)
			return
		}
	}
}

// referencePrice returns the price stops trigger against: last trade price
// by default, or cfg.StopTriggerPrice if the caller supplied one (spec.md
// §9 "pinned default: last trade price").
func (ob *OrderBook) referencePrice() decimal.Decimal {
	if ob.cfg.StopTriggerPrice != nil {
		return ob.cfg.StopTriggerPrice(ob)
	}
	return ob.lastTrade
}

// stopTriggeredNow reports whether order's stop condition is already
// satisfied against the current reference price: buy stops trigger when
// the reference rises to or above the stop price, sell stops when it
// falls to or below it (spec.md §4.2).
func (ob *OrderBook) stopTriggeredNow(order *common.Order) bool {
	ref := ob.referencePrice()
	if ref.IsZero() {
		return false
	}
	if order.Side == common.Buy {
		return ref.GreaterThanOrEqual(order.StopPrice)
	}
	return ref.LessThanOrEqual(order.StopPrice)
}

// armStops re-checks both stop tables against the latest reference price
// and resubmits every order whose condition is now satisfied, in arming
// order, after every Submit/Modify that could have moved the reference
// price (spec.md §4.2 "stops are re-evaluated after every trade").
func (ob *OrderBook) armStops() {
	for {
		triggered := ob.popTriggeredStop()
		if triggered == nil {
			return
		}
		ob.submitArmedStop(triggered)
	}
}

func (ob *OrderBook) popTriggeredStop() *common.Order {
	if len(ob.stopBuys) > 0 && ob.stopTriggeredNow(ob.stopBuys[0]) {
		o := ob.stopBuys[0]
		ob.stopBuys = ob.stopBuys[1:]
		return o
	}
	if len(ob.stopSells) > 0 && ob.stopTriggeredNow(ob.stopSells[0]) {
		o := ob.stopSells[0]
		ob.stopSells = ob.stopSells[1:]
		return o
	}
	return nil
}

func (ob *OrderBook) submitArmedStop(order *common.Order) {
	order.SubmitTimestamp = time.Now()
	if _, err := ob.submitLocked(order); err != nil {
		ob.publish(eventbus.OrderRejected, eventbus.OrderRejectedPayload{
			OrderID: order.OrderID, Reason: "STOP_TRIGGER_REJECTED: " + err.Error(),
		})
	}
}
