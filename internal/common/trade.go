package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade records one maker/taker fill. Maker is the resting order that was
// hit; taker is the incoming order that crossed it (spec.md §3, Glossary).
type Trade struct {
	TradeID       string
	MakerOrderID  string
	TakerOrderID  string
	Price         decimal.Decimal // always the maker's resting price
	Quantity      decimal.Decimal
	Timestamp     time.Time
	MakerFee      decimal.Decimal
	TakerFee      decimal.Decimal
	MakerFeeRate  decimal.Decimal
	TakerFeeRate  decimal.Decimal
	MakerUserID   string
	TakerUserID   string
}

// ComputeFees fills MakerFee/TakerFee from MakerFeeRate/TakerFeeRate using
// decimal multiplication, never binary floats (spec.md §9): fee = quantity
// * price * rate.
func (t *Trade) ComputeFees() {
	notional := t.Quantity.Mul(t.Price)
	t.MakerFee = notional.Mul(t.MakerFeeRate)
	t.TakerFee = notional.Mul(t.TakerFeeRate)
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s maker=%s taker=%s price=%s qty=%s makerFee=%s takerFee=%s at=%s}",
		t.TradeID, t.MakerOrderID, t.TakerOrderID, t.Price.String(), t.Quantity.String(),
		t.MakerFee.String(), t.TakerFee.String(), t.Timestamp.Format(time.RFC3339Nano),
	)
}
