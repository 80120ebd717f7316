package registry

import (
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCfg(symbol string) engine.Config {
	return engine.Config{
		Symbol: symbol, PricePrecision: 2, QuantityPrecision: 4,
		MakerFeeRate: decimal.Zero, TakerFeeRate: decimal.Zero,
	}
}

func TestCreateRejectsDuplicateSymbol(t *testing.T) {
	reg := New()
	_, err := reg.Create(newCfg("BTC-USD"))
	require.NoError(t, err)

	_, err = reg.Create(newCfg("BTC-USD"))
	assert.ErrorIs(t, err, ErrSymbolExists)
}

func TestPlaceRoutesToCorrectBookAndIndexesOrder(t *testing.T) {
	reg := New()
	_, err := reg.Create(newCfg("BTC-USD"))
	require.NoError(t, err)

	order := common.Order{
		OrderID: "a", Side: common.Buy, OrderType: common.Limit,
		Price: decimal.RequireFromString("100.00"), Quantity: decimal.RequireFromString("1.0"),
		UserID: "alice",
	}
	_, err = reg.Place("BTC-USD", order)
	require.NoError(t, err)

	orders := reg.UserOrders("alice")
	require.Len(t, orders, 1)
	assert.Equal(t, "a", orders[0].OrderID)
	assert.Equal(t, "BTC-USD", orders[0].Symbol)
}

func TestCancelRoutesWithoutCallerKnowingSymbol(t *testing.T) {
	reg := New()
	_, err := reg.Create(newCfg("ETH-USD"))
	require.NoError(t, err)

	order := common.Order{
		OrderID: "a", Side: common.Buy, OrderType: common.Limit,
		Price: decimal.RequireFromString("100.00"), Quantity: decimal.RequireFromString("1.0"),
		UserID: "bob",
	}
	_, err = reg.Place("ETH-USD", order)
	require.NoError(t, err)

	require.NoError(t, reg.Cancel("a"))
	assert.Empty(t, reg.UserOrders("bob"))
}

func TestUserOrdersRetiresFullyFilledOrder(t *testing.T) {
	reg := New()
	_, err := reg.Create(newCfg("BTC-USD"))
	require.NoError(t, err)

	maker := common.Order{
		OrderID: "maker", Side: common.Sell, OrderType: common.Limit,
		Price: decimal.RequireFromString("100.00"), Quantity: decimal.RequireFromString("1.0"),
		UserID: "alice",
	}
	_, err = reg.Place("BTC-USD", maker)
	require.NoError(t, err)
	require.Len(t, reg.UserOrders("alice"), 1)

	taker := common.Order{
		OrderID: "taker", Side: common.Buy, OrderType: common.Limit,
		Price: decimal.RequireFromString("100.00"), Quantity: decimal.RequireFromString("1.0"),
		UserID: "bob",
	}
	_, err = reg.Place("BTC-USD", taker)
	require.NoError(t, err)

	// The maker's resting quantity was fully drained by the cross; it must
	// no longer appear in the per-user index even though it was never
	// cancelled or expired.
	assert.Empty(t, reg.UserOrders("alice"))
}

func TestPlaceUnknownSymbolFails(t *testing.T) {
	reg := New()
	_, err := reg.Place("DOES-NOT-EXIST", common.Order{})
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestRemoveUnregistersBookAndOrders(t *testing.T) {
	reg := New()
	_, err := reg.Create(newCfg("BTC-USD"))
	require.NoError(t, err)

	order := common.Order{
		OrderID: "a", Side: common.Buy, OrderType: common.Limit,
		Price: decimal.RequireFromString("100.00"), Quantity: decimal.RequireFromString("1.0"),
		UserID: "alice",
	}
	_, err = reg.Place("BTC-USD", order)
	require.NoError(t, err)

	require.NoError(t, reg.Remove("BTC-USD"))
	assert.Empty(t, reg.List())
	assert.Empty(t, reg.UserOrders("alice"))

	_, err = reg.Place("BTC-USD", order)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestRemoveDoesNotDeadlockWithConcurrentSweep(t *testing.T) {
	reg := New()
	cfg := newCfg("BTC-USD")
	cfg.CheckExpiryInterval = time.Millisecond
	_, err := reg.Create(cfg)
	require.NoError(t, err)

	order := common.Order{
		OrderID: "a", Side: common.Buy, OrderType: common.Limit,
		Price: decimal.RequireFromString("100.00"), Quantity: decimal.RequireFromString("1.0"),
		UserID: "alice", TimeInForce: common.GTD, ExpiryTime: time.Now().Add(2 * time.Millisecond),
	}
	_, err = reg.Place("BTC-USD", order)
	require.NoError(t, err)

	// Remove() used to hold r.mu across ob.Close() (which joins the book's
	// sweeper goroutine); the sweeper's OrderExpired handler acquires r.mu
	// itself, so a sweep in flight while Remove ran could deadlock the
	// whole registry. The GTD order above expires while the 1ms sweeper is
	// running. Bound the wait so a regression fails the test instead of
	// hanging the process.
	done := make(chan struct{})
	go func() {
		_ = reg.Remove("BTC-USD")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Remove did not return — lock held across ob.Close()?")
	}
}

func TestListReturnsSortedSymbols(t *testing.T) {
	reg := New()
	_, _ = reg.Create(newCfg("ETH-USD"))
	_, _ = reg.Create(newCfg("BTC-USD"))

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, reg.List())
}
