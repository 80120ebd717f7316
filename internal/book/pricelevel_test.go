package book

import (
	"testing"

	"fenrir/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(id string, price, qty string) *common.Order {
	return &common.Order{
		OrderID:          id,
		OrderType:        common.Limit,
		Price:            decimal.RequireFromString(price),
		Quantity:         decimal.RequireFromString(qty),
		OriginalQuantity: decimal.RequireFromString(qty),
	}
}

func TestPriceLevelAppendAndPeekFront(t *testing.T) {
	pl := newPriceLevel(decimal.RequireFromString("100"), common.Buy)
	assert.True(t, pl.Empty())

	pl.Append(testOrder("a", "100", "1"))
	pl.Append(testOrder("b", "100", "2"))

	front, ref := pl.PeekFront()
	require.NotNil(t, front)
	assert.Equal(t, "a", front.OrderID)
	assert.Equal(t, 2, pl.OrderCount())

	pl.Remove(ref)
	assert.Equal(t, 1, pl.OrderCount())
	front, _ = pl.PeekFront()
	assert.Equal(t, "b", front.OrderID)
}

func TestPriceLevelAggregateAndDisplayedQuantity(t *testing.T) {
	pl := newPriceLevel(decimal.RequireFromString("50"), common.Sell)
	pl.Append(testOrder("a", "50", "3"))
	pl.Append(testOrder("b", "50", "4"))

	assert.True(t, pl.AggregateQuantity().Equal(decimal.RequireFromString("7")))
	assert.True(t, pl.DisplayedQuantity().Equal(decimal.RequireFromString("7")))
}

func TestPriceLevelIcebergDisplayedQuantity(t *testing.T) {
	pl := newPriceLevel(decimal.RequireFromString("50"), common.Buy)
	iceberg := &common.Order{
		OrderID:           "ice",
		OrderType:         common.Iceberg,
		Price:             decimal.RequireFromString("50"),
		Quantity:          decimal.RequireFromString("10"),
		OriginalQuantity:  decimal.RequireFromString("10"),
		DisplayedQuantity: decimal.RequireFromString("2"),
	}
	pl.Append(iceberg)

	assert.True(t, pl.AggregateQuantity().Equal(decimal.RequireFromString("10")))
	assert.True(t, pl.DisplayedQuantity().Equal(decimal.RequireFromString("2")))
}

func TestPriceLevelEmptyAfterRemovingLastOrder(t *testing.T) {
	pl := newPriceLevel(decimal.RequireFromString("10"), common.Buy)
	pl.Append(testOrder("a", "10", "1"))
	_, ref := pl.PeekFront()
	pl.Remove(ref)
	assert.True(t, pl.Empty())
	front, ref := pl.PeekFront()
	assert.Nil(t, front)
	assert.Nil(t, ref)
}
