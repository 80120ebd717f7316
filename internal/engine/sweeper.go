package engine

import (
	"time"

	"fenrir/internal/eventbus"
)

// sweepLoop periodically drains due GTD/Day expiries from the wheel and
// cancels the corresponding resting orders, publishing OrderExpired
// instead of OrderCancelled (spec.md §4.3 "expiry sweep"). Runs for the
// life of the OrderBook, supervised by the tomb started in New, mirroring
// the teacher's worker-pool tomb.Tomb lifecycle.
func (ob *OrderBook) sweepLoop() error {
	ticker := time.NewTicker(ob.cfg.CheckExpiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ob.t.Dying():
			return nil
		case <-ticker.C:
			ob.sweepOnce(time.Now())
		}
	}
}

// SweepExpired forces an out-of-band expiry sweep instead of waiting for
// the next tick, used by tests and by MarketRegistry.SweepExpired.
func (ob *OrderBook) SweepExpired(now time.Time) {
	ob.sweepOnce(now)
}

func (ob *OrderBook) sweepOnce(now time.Time) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.poisoned.Load() {
		return
	}

	due := ob.wheel.DrainDue(now.UnixNano())
	for _, orderID := range due {
		if o, ok := ob.findStop(orderID); ok {
			ob.removeStop(o)
			ob.publish(eventbus.OrderExpired, eventbus.OrderExpiredPayload{OrderID: orderID})
			continue
		}
		e, ok := ob.index[orderID]
		if !ok {
			continue
		}
		sb := ob.sideBook(e.side)
		sb.Remove(e.level, e.ref)
		delete(ob.index, orderID)
		ob.publish(eventbus.OrderExpired, eventbus.OrderExpiredPayload{OrderID: orderID})
	}
	if len(due) > 0 {
		ob.publish(eventbus.BookUpdated, eventbus.BookUpdatedPayload{})
	}
}
