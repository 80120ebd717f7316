package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarketSentinelBuyPrice / MarketSentinelSellPrice let a caller submit a
// market order as a Limit with a sentinel price, for compatibility with the
// visualizer's wire format (spec.md §6). decimal.Decimal has no infinity, so
// the sentinel is a deliberately absurd bound instead; NormalizeSentinel
// below rewrites any order carrying it into a genuine Market order before it
// ever reaches the book.
var (
	MarketSentinelBuyPrice  = decimal.New(1, 18) // "infinite" buy limit
	MarketSentinelSellPrice = decimal.Zero        // zero sell limit
)

// Order is the immutable-after-creation descriptor of a single order. Once
// accepted by an OrderBook it is owned exclusively by that book; callers
// only ever see cloned snapshots (spec.md §3).
type Order struct {
	OrderID           string
	Side              Side
	OrderType         OrderType
	Price             decimal.Decimal
	StopPrice         decimal.Decimal
	Quantity          decimal.Decimal
	OriginalQuantity  decimal.Decimal
	DisplayedQuantity decimal.Decimal
	TimeInForce       TimeInForce
	ExpiryTime        time.Time
	UserID            string
	SubmitTimestamp   time.Time
	TrailValue        decimal.Decimal
	TrailIsPercent    bool
}

// IsIceberg reports whether this limit order has a display quantity smaller
// than its live quantity (spec.md §4.2).
func (o *Order) IsIceberg() bool {
	return o.OrderType == Iceberg && o.DisplayedQuantity.LessThan(o.Quantity)
}

// IsStop reports whether this order is parked awaiting a trigger.
func (o *Order) IsStop() bool {
	return o.OrderType == StopLimit || o.OrderType == StopMarket
}

// NormalizeSentinel rewrites the visualizer's backward-compatible market
// sentinel (Limit @ +inf-bound for buys, Limit @ 0 for sells) into an
// explicit Market order.
func (o *Order) NormalizeSentinel() {
	if o.OrderType != Limit {
		return
	}
	if o.Side == Buy && o.Price.Equal(MarketSentinelBuyPrice) {
		o.OrderType = Market
	}
	if o.Side == Sell && o.Price.Equal(MarketSentinelSellPrice) {
		o.OrderType = Market
	}
}

// AssignID fills in a missing OrderID with a fresh UUID.
func (o *Order) AssignID() {
	if o.OrderID == "" {
		o.OrderID = uuid.NewString()
	}
}

// DisplayQuantity returns the quantity that should count toward a depth
// snapshot's displayed view: the full remaining quantity for ordinary
// orders, the (refilled) displayed quantity for icebergs.
func (o *Order) DisplayQuantity() decimal.Decimal {
	if o.IsIceberg() {
		return o.DisplayedQuantity
	}
	return o.Quantity
}

// RefillIceberg recomputes the displayed slice after a fill, without
// altering time priority (spec.md §4.2, §9 — this is a deliberate
// divergence from "reload at tail" venues).
func (o *Order) RefillIceberg() {
	if o.OrderType != Iceberg {
		return
	}
	if o.DisplayedQuantity.GreaterThan(o.Quantity) {
		o.DisplayedQuantity = o.Quantity
	}
}

// Validate checks the static invariants from spec.md §3 that can be
// verified without consulting the book: quantity positivity, price and
// quantity precision, stop price and iceberg display presence, and GTD
// preconditions. The sign of Price is not checked. Cross-order invariants
// (duplicate ids) are checked by the OrderBook, which owns the index.
func (o *Order) Validate(pricePrecision, quantityPrecision int32, now time.Time) error {
	if o.Quantity.LessThanOrEqual(decimal.Zero) || o.Quantity.GreaterThan(o.OriginalQuantity) {
		return ErrInvalidQuantity
	}
	if o.OriginalQuantity.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	if !hasPrecision(o.Quantity, quantityPrecision) {
		return ErrInvalidPrecision
	}
	needsPrice := o.OrderType == Limit || o.OrderType == StopLimit || o.OrderType == Iceberg
	if needsPrice {
		if !hasPrecision(o.Price, pricePrecision) {
			return ErrInvalidPrecision
		}
	}
	if o.IsStop() && o.StopPrice.IsZero() {
		return ErrMissingStopPrice
	}
	if o.OrderType == Iceberg {
		if o.DisplayedQuantity.LessThanOrEqual(decimal.Zero) || o.DisplayedQuantity.GreaterThan(o.Quantity) {
			return ErrInvalidQuantity
		}
	}
	if o.TimeInForce == GTD {
		if o.ExpiryTime.IsZero() || !o.ExpiryTime.After(now) {
			return ErrGTDExpiryInPast
		}
	}
	switch o.OrderType {
	case Limit, Market, StopLimit, StopMarket, Iceberg:
	default:
		return ErrUnknownOrderType
	}
	return nil
}

// hasPrecision reports whether d has no more than `places` decimal digits.
func hasPrecision(d decimal.Decimal, places int32) bool {
	return d.Round(places).Equal(d)
}

// Clone returns a value copy safe to hand to a consumer outside the book's
// lock (spec.md §3: "external references are not permitted").
func (o *Order) Clone() Order {
	return *o
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s side=%s type=%d price=%s qty=%s/%s tif=%d owner=%s}",
		o.OrderID, o.Side, o.OrderType, o.Price.String(), o.Quantity.String(),
		o.OriginalQuantity.String(), o.TimeInForce, o.UserID,
	)
}
