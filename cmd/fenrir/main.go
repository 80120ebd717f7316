// Command fenrir drives a MarketRegistry directly in-process: it reads a
// small flag-configured scenario, submits a batch of orders to one
// symbol's book, and prints the resulting trades and top-of-book depth.
//
// Grounded on the teacher's cmd/client/client.go flag-parsing conventions
// (standard library `flag`, one flag per scenario knob), but talks to the
// engine directly rather than framing a binary wire message over TCP —
// that transport is out of scope here (SPEC_FULL.md §1).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/eventbus"
	"fenrir/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	symbol := flag.String("symbol", "BTC-USD", "symbol to create and trade against")
	pricePrecision := flag.Int("price-precision", 2, "decimal places allowed in price")
	qtyPrecision := flag.Int("qty-precision", 6, "decimal places allowed in quantity")
	makerFee := flag.String("maker-fee", "0.0010", "maker fee rate, e.g. 0.0010 for 10bps")
	takerFee := flag.String("taker-fee", "0.0020", "taker fee rate")
	verbose := flag.Bool("verbose", false, "log every event as it's published")
	flag.Parse()

	if *verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	reg := registry.New()
	ob, err := reg.Create(engine.Config{
		Symbol:            *symbol,
		PricePrecision:    int32(*pricePrecision),
		QuantityPrecision: int32(*qtyPrecision),
		MakerFeeRate:      mustDecimal(*makerFee),
		TakerFeeRate:      mustDecimal(*takerFee),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "create book:", err)
		os.Exit(1)
	}

	if *verbose {
		ob.EventBus().SubscribeAll(func(evt eventbus.Event) {
			log.Info().Str("type", evt.Type.String()).Interface("payload", evt.Payload).Msg("event")
		})
	}

	for _, order := range demoOrders(*symbol) {
		res, err := reg.Place(*symbol, order)
		if err != nil {
			fmt.Printf("reject %-6s %-4s %-8s qty=%-10s px=%-8s : %v\n",
				order.OrderID, order.Side, orderTypeName(order.OrderType),
				order.Quantity.String(), order.Price.String(), err)
			continue
		}
		fmt.Printf("accept %-6s resting=%-5v trades=%d\n", res.OrderID, res.Resting, len(res.Trades))
		for _, t := range res.Trades {
			fmt.Printf("  trade %s price=%s qty=%s maker=%s taker=%s\n",
				t.TradeID, t.Price.String(), t.Quantity.String(), t.MakerOrderID, t.TakerOrderID)
		}
	}

	snap := ob.Snapshot(10)
	fmt.Println("\n--- book snapshot ---")
	fmt.Println("asks (best last):")
	for i := len(snap.Asks) - 1; i >= 0; i-- {
		lvl := snap.Asks[i]
		fmt.Printf("  %s x %s (%d orders)\n", lvl.Price.String(), lvl.Quantity.String(), lvl.OrderCount)
	}
	fmt.Println("bids (best first):")
	for _, lvl := range snap.Bids {
		fmt.Printf("  %s x %s (%d orders)\n", lvl.Price.String(), lvl.Quantity.String(), lvl.OrderCount)
	}

	stats := ob.Statistics()
	fmt.Printf("\norders_submitted=%d trades_executed=%d volume=%s p50=%s p99=%s\n",
		stats.OrdersSubmitted, stats.TradesExecuted, stats.VolumeTraded.String(),
		stats.LatencyP50, stats.LatencyP99)

	if err := ob.Close(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func demoOrders(symbol string) []common.Order {
	now := time.Now()
	mk := func(side common.Side, price, qty string, tif common.TimeInForce) common.Order {
		return common.Order{
			Side: side, OrderType: common.Limit,
			Price: mustDecimal(price), Quantity: mustDecimal(qty),
			TimeInForce: tif, UserID: "demo-user", SubmitTimestamp: now,
		}
	}
	_ = symbol
	return []common.Order{
		mk(common.Sell, "30100.00", "1.5", common.GTC),
		mk(common.Sell, "30150.00", "2.0", common.GTC),
		mk(common.Buy, "30050.00", "1.0", common.GTC),
		mk(common.Buy, "30100.00", "0.5", common.IOC),   // crosses the first ask
		mk(common.Buy, "30200.00", "3.0", common.GTC),    // sweeps both remaining asks exactly, nothing rests
	}
}

func orderTypeName(t common.OrderType) string {
	switch t {
	case common.Limit:
		return "LIMIT"
	case common.Market:
		return "MARKET"
	case common.StopLimit:
		return "STOP_LIMIT"
	case common.StopMarket:
		return "STOP_MARKET"
	case common.Iceberg:
		return "ICEBERG"
	default:
		return "UNKNOWN"
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid decimal", s, err)
		os.Exit(1)
	}
	return d
}
