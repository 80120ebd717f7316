package common

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateRequiresStopPriceForBothStopVariants(t *testing.T) {
	now := time.Now()

	stopLimit := Order{
		OrderType: StopLimit, Side: Buy,
		Price:            decimal.RequireFromString("100.00"),
		Quantity:         decimal.RequireFromString("1"),
		OriginalQuantity: decimal.RequireFromString("1"),
	}
	assert.ErrorIs(t, stopLimit.Validate(2, 4, now), ErrMissingStopPrice)

	stopMarket := Order{
		OrderType: StopMarket, Side: Sell,
		Quantity:         decimal.RequireFromString("1"),
		OriginalQuantity: decimal.RequireFromString("1"),
	}
	assert.ErrorIs(t, stopMarket.Validate(2, 4, now), ErrMissingStopPrice)

	stopMarket.StopPrice = decimal.RequireFromString("95.00")
	assert.NoError(t, stopMarket.Validate(2, 4, now))
}
