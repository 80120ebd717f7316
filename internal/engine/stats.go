package engine

import (
	"sort"
	"time"

	"fenrir/internal/common"
	"github.com/shopspring/decimal"
)

// statsTracker accumulates the counters and latency samples spec.md §6's
// Statistics() snapshot reports: order/trade counts, traded volume, and
// submit-latency percentiles. Grounded on the teacher's internal/server
// metrics accumulation pattern (plain counters behind the same lock the
// book already holds), generalized from per-connection to per-symbol.
type statsTracker struct {
	ordersSubmitted uint64
	orderFills      uint64
	tradesExecuted  uint64
	volumeTraded    decimal.Decimal

	latencies    []time.Duration
	latencyHead  int
	latencyCount int
}

const latencyReservoirSize = 4096

func newStatsTracker() *statsTracker {
	return &statsTracker{
		volumeTraded: decimal.Zero,
		latencies:    make([]time.Duration, latencyReservoirSize),
	}
}

func (s *statsTracker) recordLatency(d time.Duration) {
	s.ordersSubmitted++
	s.latencies[s.latencyHead] = d
	s.latencyHead = (s.latencyHead + 1) % len(s.latencies)
	if s.latencyCount < len(s.latencies) {
		s.latencyCount++
	}
}

func (s *statsTracker) recordTrade(t common.Trade) {
	s.tradesExecuted++
	s.volumeTraded = s.volumeTraded.Add(t.Quantity)
}

// percentile returns the p-th percentile (0..100) submit latency over the
// current reservoir, or 0 if no samples have been recorded yet.
func (s *statsTracker) percentile(p float64) time.Duration {
	if s.latencyCount == 0 {
		return 0
	}
	samples := make([]time.Duration, s.latencyCount)
	copy(samples, s.latencies[:s.latencyCount])
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	idx := int(p / 100 * float64(len(samples)-1))
	return samples[idx]
}

// Statistics is the wire-stable snapshot returned by OrderBook.Statistics
// (spec.md §6: "order_counts, trade_counts, volume, best_bid, best_ask,
// spread, mid_price, latencies:{p50,p90,p99}").
type Statistics struct {
	Symbol          string
	OrdersSubmitted uint64
	OrderFills      uint64
	TradesExecuted  uint64
	VolumeTraded    decimal.Decimal
	RestingOrders   int
	PriceLevels     int
	BestBid         decimal.Decimal
	BestAsk         decimal.Decimal
	Spread          decimal.Decimal
	MidPrice        decimal.Decimal
	LatencyP50      time.Duration
	LatencyP90      time.Duration
	LatencyP99      time.Duration
}

// Statistics reports current counters and the resting-order/price-level
// census alongside top-of-book and submit-latency percentiles.
func (ob *OrderBook) Statistics() Statistics {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	stat := Statistics{
		Symbol:          ob.cfg.Symbol,
		OrdersSubmitted: ob.stats.ordersSubmitted,
		OrderFills:      ob.stats.orderFills,
		TradesExecuted:  ob.stats.tradesExecuted,
		VolumeTraded:    ob.stats.volumeTraded,
		RestingOrders:   len(ob.index),
		PriceLevels:     ob.bids.Len() + ob.asks.Len(),
		LatencyP50:      ob.stats.percentile(50),
		LatencyP90:      ob.stats.percentile(90),
		LatencyP99:      ob.stats.percentile(99),
	}

	bestBid, hasBid := ob.bids.Best()
	bestAsk, hasAsk := ob.asks.Best()
	if hasBid {
		stat.BestBid = bestBid.Price
	}
	if hasAsk {
		stat.BestAsk = bestAsk.Price
	}
	if hasBid && hasAsk {
		stat.Spread = bestAsk.Price.Sub(bestBid.Price)
		stat.MidPrice = bestBid.Price.Add(bestAsk.Price).Div(decimal.NewFromInt(2))
	}
	return stat
}
