package engine

import (
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/eventbus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook(t *testing.T) *OrderBook {
	t.Helper()
	ob := New(Config{
		Symbol:            "TEST-USD",
		PricePrecision:    2,
		QuantityPrecision: 4,
		MakerFeeRate:      decimal.Zero,
		TakerFeeRate:      decimal.Zero,
	})
	t.Cleanup(func() { _ = ob.Close() })
	return ob
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func limit(id string, side common.Side, price, qty string, tif common.TimeInForce) common.Order {
	return common.Order{
		OrderID: id, Side: side, OrderType: common.Limit,
		Price: d(price), Quantity: d(qty), TimeInForce: tif,
	}
}

func TestS1SimpleCross(t *testing.T) {
	ob := newTestBook(t)

	_, err := ob.Submit(limit("a", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	res, err := ob.Submit(limit("b", common.Buy, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, "a", trade.MakerOrderID)
	assert.Equal(t, "b", trade.TakerOrderID)
	assert.True(t, trade.Price.Equal(d("100.00")))
	assert.True(t, trade.Quantity.Equal(d("1.0")))
	assert.False(t, res.Resting)

	snap := ob.Snapshot(0)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestS2PriceImprovement(t *testing.T) {
	ob := newTestBook(t)

	_, err := ob.Submit(limit("a", common.Sell, "99.00", "1.0", common.GTC))
	require.NoError(t, err)
	_, err = ob.Submit(limit("b", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	res, err := ob.Submit(limit("c", common.Buy, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "a", res.Trades[0].MakerOrderID)
	assert.True(t, res.Trades[0].Price.Equal(d("99.00")))

	snap := ob.Snapshot(0)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(d("100.00")))
}

func TestS3PartialFillAndRest(t *testing.T) {
	ob := newTestBook(t)

	_, err := ob.Submit(limit("a", common.Sell, "100.00", "2.0", common.GTC))
	require.NoError(t, err)

	res, err := ob.Submit(limit("b", common.Buy, "100.00", "3.0", common.GTC))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Quantity.Equal(d("2.0")))
	assert.True(t, res.Resting)

	snap := ob.Snapshot(0)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Quantity.Equal(d("1.0")))
}

func TestS4IOCDoesNotRest(t *testing.T) {
	ob := newTestBook(t)

	_, err := ob.Submit(limit("a", common.Sell, "100.00", "2.0", common.GTC))
	require.NoError(t, err)

	res, err := ob.Submit(limit("b", common.Buy, "100.00", "3.0", common.IOC))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Quantity.Equal(d("2.0")))
	assert.False(t, res.Resting)

	snap := ob.Snapshot(0)
	assert.Empty(t, snap.Bids)
}

func TestS5FOKRejectionLeavesBookUnchanged(t *testing.T) {
	ob := newTestBook(t)

	_, err := ob.Submit(limit("a", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)
	_, err = ob.Submit(limit("b", common.Sell, "101.00", "1.0", common.GTC))
	require.NoError(t, err)

	before := ob.Snapshot(0)

	_, err = ob.Submit(limit("c", common.Buy, "100.50", "2.0", common.FOK))
	assert.ErrorIs(t, err, common.ErrFOKUnfillable)

	after := ob.Snapshot(0)
	require.Len(t, after.Asks, len(before.Asks))
	for i := range before.Asks {
		assert.True(t, before.Asks[i].Price.Equal(after.Asks[i].Price))
		assert.True(t, before.Asks[i].Quantity.Equal(after.Asks[i].Quantity))
	}
}

func TestS6ModifyLosesPriorityOnPriceChange(t *testing.T) {
	ob := newTestBook(t)

	_, err := ob.Submit(limit("a", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)
	_, err = ob.Submit(limit("b", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	// No-op price change retains priority.
	price := d("100.00")
	_, err = ob.Modify("a", ModifyPatch{NewPrice: &price})
	require.NoError(t, err)

	away := d("99.99")
	_, err = ob.Modify("a", ModifyPatch{NewPrice: &away})
	require.NoError(t, err)
	back := d("100.00")
	_, err = ob.Modify("a", ModifyPatch{NewPrice: &back})
	require.NoError(t, err)

	res, err := ob.Submit(limit("taker", common.Buy, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "b", res.Trades[0].MakerOrderID)
}

func TestPostOnlyRejectsWhenWouldCross(t *testing.T) {
	ob := newTestBook(t)
	_, err := ob.Submit(limit("a", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	_, err = ob.Submit(limit("b", common.Buy, "100.00", "1.0", common.PostOnly))
	assert.ErrorIs(t, err, common.ErrPostOnlyWouldCross)
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	ob := newTestBook(t)
	_, err := ob.Submit(limit("a", common.Buy, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	require.NoError(t, ob.Cancel("a"))
	assert.ErrorIs(t, ob.Cancel("a"), common.ErrNotFound)

	snap := ob.Snapshot(0)
	assert.Empty(t, snap.Bids)
}

func TestStopLimitArmsOnReferencePriceCrossing(t *testing.T) {
	ob := newTestBook(t)

	stop := d("101.00")
	_, err := ob.Submit(common.Order{
		OrderID: "stop", Side: common.Buy, OrderType: common.StopLimit,
		StopPrice: stop, Price: d("101.50"), Quantity: d("1.0"), TimeInForce: common.GTC,
	})
	require.NoError(t, err)

	_, err = ob.Submit(limit("seed-ask", common.Sell, "99.00", "5.0", common.GTC))
	require.NoError(t, err)
	_, err = ob.Submit(limit("trigger-buy", common.Buy, "99.00", "0.1", common.GTC))
	require.NoError(t, err)
	// last trade is now 99.00 < 101.00, stop still parked.

	_, err = ob.Submit(limit("seed-ask2", common.Sell, "102.00", "5.0", common.GTC))
	require.NoError(t, err)
	res, err := ob.Submit(limit("trigger2", common.Buy, "102.00", "0.1", common.GTC))
	require.NoError(t, err)
	assert.True(t, res.Trades[0].Price.Equal(d("102.00")))
	// last trade 102.00 >= stop price 101.00: armStops should have fired the
	// stop-buy, resting it at 101.50 against the remaining 102.00 ask.

	snap := ob.Snapshot(0)
	found := false
	for _, lvl := range snap.Bids {
		if lvl.Price.Equal(d("101.50")) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSweepExpiredRemovesGTDOrder(t *testing.T) {
	ob := newTestBook(t)
	expiry := time.Now().Add(time.Hour)
	_, err := ob.Submit(common.Order{
		OrderID: "gtd", Side: common.Buy, OrderType: common.Limit,
		Price: d("100.00"), Quantity: d("1.0"), TimeInForce: common.GTD, ExpiryTime: expiry,
	})
	require.NoError(t, err)

	ob.SweepExpired(expiry.Add(-time.Minute))
	snap := ob.Snapshot(0)
	require.Len(t, snap.Bids, 1)

	ob.SweepExpired(expiry.Add(time.Minute))
	snap = ob.Snapshot(0)
	assert.Empty(t, snap.Bids)
}

func TestStatisticsReportsTopOfBookAndSpread(t *testing.T) {
	ob := newTestBook(t)

	empty := ob.Statistics()
	assert.True(t, empty.BestBid.IsZero())
	assert.True(t, empty.BestAsk.IsZero())
	assert.True(t, empty.MidPrice.IsZero())

	_, err := ob.Submit(limit("bid", common.Buy, "99.00", "1.0", common.GTC))
	require.NoError(t, err)
	_, err = ob.Submit(limit("ask", common.Sell, "101.00", "1.0", common.GTC))
	require.NoError(t, err)

	stats := ob.Statistics()
	assert.True(t, stats.BestBid.Equal(d("99.00")))
	assert.True(t, stats.BestAsk.Equal(d("101.00")))
	assert.True(t, stats.Spread.Equal(d("2.00")))
	assert.True(t, stats.MidPrice.Equal(d("100.00")))
	assert.EqualValues(t, 2, stats.OrdersSubmitted)
}

func TestAggressiveTakerFullFillEmitsTakerSideOrderFilled(t *testing.T) {
	ob := newTestBook(t)

	var filledIDs []string
	ob.EventBus().Subscribe(eventbus.OrderFilled, func(evt eventbus.Event) {
		p := evt.Payload.(eventbus.OrderFilledPayload)
		if p.RemainingQuantity == "0" {
			filledIDs = append(filledIDs, p.OrderID)
		}
	})

	_, err := ob.Submit(limit("maker", common.Sell, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	// "taker" crosses and fully consumes its own quantity against maker.
	// Both the maker (drained) and the taker itself (fully filled
	// non-Market order) must be reported as filled so a consumer indexing
	// by order id (e.g. MarketRegistry) can retire both ids.
	_, err = ob.Submit(limit("taker", common.Buy, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	assert.Contains(t, filledIDs, "maker")
	assert.Contains(t, filledIDs, "taker")
}

func TestPoisonedBookRejectsFurtherOperations(t *testing.T) {
	ob := newTestBook(t)
	_, err := ob.Submit(limit("a", common.Buy, "100.00", "1.0", common.GTC))
	require.NoError(t, err)

	ob.poison("test-forced invariant violation")

	_, err = ob.Submit(limit("b", common.Buy, "100.00", "1.0", common.GTC))
	assert.ErrorIs(t, err, common.ErrPoisoned)

	err = ob.Cancel("a")
	assert.ErrorIs(t, err, common.ErrPoisoned)

	_, err = ob.Modify("a", ModifyPatch{})
	assert.ErrorIs(t, err, common.ErrPoisoned)
}
