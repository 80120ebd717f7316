// Package engine implements OrderBook: the component that owns both sides
// of one instrument's book, the order index, the stop table, the trade
// log, statistics, the expiry sweeper, and serialises every mutating
// operation behind one mutex (spec.md §4.3, §5).
//
// Grounded on the teacher's internal/engine/orderbook.go (same package
// name, same "one struct owns both sides + triggers matching" shape), with
// the teacher's bespoke float64 PriceLevel/matching logic replaced by
// internal/book, internal/matcher and decimal arithmetic per spec.md §9.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config carries the per-symbol knobs from spec.md §6 "Configuration
// options". No YAML/flag loader here, matching the teacher's convention of
// plain struct literals passed to constructors (engine.New, net.New); a
// config-file layer is an external collaborator's concern.
type Config struct {
	Symbol                string
	PricePrecision        int32
	QuantityPrecision     int32
	MakerFeeRate          decimal.Decimal
	TakerFeeRate          decimal.Decimal
	EnablePriceImprovement bool
	CheckExpiryInterval   time.Duration
	MaxTradeHistory       int
	MaxEventHistory       int
	// SessionEnd returns the wall-clock boundary for Day orders submitted
	// at `now`. Defaults to 23:59:59 of now's calendar day, in now's own
	// location, if nil.
	SessionEnd func(now time.Time) time.Time
	// StopTriggerPrice overrides the reference price stops arm against.
	// Defaults to last trade price (spec.md §9's pinned default). Provided
	// as a hook so a caller can pin best-bid/best-ask instead.
	StopTriggerPrice func(b *OrderBook) decimal.Decimal
}

func (c *Config) sessionEnd(now time.Time) time.Time {
	if c.SessionEnd != nil {
		return c.SessionEnd(now)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, now.Location())
}

func withDefaults(cfg Config) Config {
	if cfg.CheckExpiryInterval <= 0 {
		cfg.CheckExpiryInterval = time.Second
	}
	if cfg.MaxTradeHistory <= 0 {
		cfg.MaxTradeHistory = 1000
	}
	if cfg.MaxEventHistory <= 0 {
		cfg.MaxEventHistory = 1000
	}
	return cfg
}
