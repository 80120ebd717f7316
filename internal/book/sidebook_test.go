package book

import (
	"testing"

	"fenrir/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideBookBestOrderingBids(t *testing.T) {
	sb := NewSideBook(common.Buy)
	sb.Insert(testOrder("a", "100", "1"))
	sb.Insert(testOrder("b", "105", "1"))
	sb.Insert(testOrder("c", "99", "1"))

	best, ok := sb.Best()
	require.True(t, ok)
	assert.True(t, best.Price.Equal(decimal.RequireFromString("105")))
}

func TestSideBookBestOrderingAsks(t *testing.T) {
	sb := NewSideBook(common.Sell)
	sb.Insert(testOrder("a", "100", "1"))
	sb.Insert(testOrder("b", "105", "1"))
	sb.Insert(testOrder("c", "99", "1"))

	best, ok := sb.Best()
	require.True(t, ok)
	assert.True(t, best.Price.Equal(decimal.RequireFromString("99")))
}

func TestSideBookInsertCreatesLevelOnceAndMergesAtSamePrice(t *testing.T) {
	sb := NewSideBook(common.Buy)
	_, _, created1 := sb.Insert(testOrder("a", "100", "1"))
	_, _, created2 := sb.Insert(testOrder("b", "100", "1"))

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Equal(t, 1, sb.Len())

	lvl, ok := sb.Get(decimal.RequireFromString("100"))
	require.True(t, ok)
	assert.Equal(t, 2, lvl.OrderCount())
}

func TestSideBookRemoveDeletesEmptyLevel(t *testing.T) {
	sb := NewSideBook(common.Buy)
	level, ref, _ := sb.Insert(testOrder("a", "100", "1"))

	removed := sb.Remove(level, ref)
	assert.True(t, removed)
	assert.Equal(t, 0, sb.Len())
	_, ok := sb.Get(decimal.RequireFromString("100"))
	assert.False(t, ok)
}

func TestSideBookDepthUsesDisplayedQuantity(t *testing.T) {
	sb := NewSideBook(common.Sell)
	sb.Insert(testOrder("a", "100", "5"))
	sb.Insert(testOrder("b", "101", "3"))

	depth := sb.Depth(1)
	require.Len(t, depth, 1)
	assert.True(t, depth[0].Price.Equal(decimal.RequireFromString("100")))
	assert.True(t, depth[0].Quantity.Equal(decimal.RequireFromString("5")))
}

func TestSideBookTotalQuantity(t *testing.T) {
	sb := NewSideBook(common.Buy)
	sb.Insert(testOrder("a", "100", "5"))
	sb.Insert(testOrder("b", "99", "3"))

	assert.True(t, sb.TotalQuantity().Equal(decimal.RequireFromString("8")))
}
