// Package registry implements MarketRegistry: the live collection of
// per-symbol order books, a global order-id index for O(1) routing of
// cancel/modify, and a per-user index maintained by subscribing to each
// child book's event bus (spec.md §2-§4, SPEC_FULL.md §4.5).
//
// Grounded on the teacher's engine.Engine{Books map[AssetType]OrderBook},
// generalized from a fixed AssetType enum to a live map keyed by symbol
// string, with create/remove now possible at runtime.
package registry

import (
	"sort"
	"sync"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/eventbus"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MarketRegistry owns every live OrderBook and the cross-book indices that
// let a caller cancel or modify an order without knowing its symbol.
type MarketRegistry struct {
	mu            sync.RWMutex
	books         map[string]*engine.OrderBook
	bySymbolOrder map[string]string            // order id -> symbol
	byUser        map[string]map[string]string // user id -> order id -> symbol
}

// New builds an empty MarketRegistry.
func New() *MarketRegistry {
	return &MarketRegistry{
		books:         make(map[string]*engine.OrderBook),
		bySymbolOrder: make(map[string]string),
		byUser:        make(map[string]map[string]string),
	}
}

// Create instantiates and registers a new book for symbol, subscribing to
// its event bus to keep the cross-book indices current. Returns
// ErrSymbolExists if symbol is already registered.
func (r *MarketRegistry) Create(cfg engine.Config) (*engine.OrderBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[cfg.Symbol]; exists {
		return nil, ErrSymbolExists
	}
	ob := engine.New(cfg)
	r.books[cfg.Symbol] = ob
	r.subscribeIndexing(cfg.Symbol, ob)
	return ob, nil
}

// Get returns the book for symbol, if registered.
func (r *MarketRegistry) Get(symbol string) (*engine.OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ob, ok := r.books[symbol]
	return ob, ok
}

// List returns every registered symbol, sorted.
func (r *MarketRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.books))
	for s := range r.books {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Remove closes and unregisters symbol's book. Resting orders are not
// individually cancelled; the book is simply torn down, matching the
// teacher's Engine, which never supported hot-removing an AssetType.
//
// ob.Close() joins the book's sweeper goroutine, which publishes events
// from inside the book's own lock and whose handlers (subscribeIndexing)
// acquire r.mu. r.mu must therefore never be held across Close(): take it
// only to pull the book out of the registry (so no new work can reach it)
// and, separately, to purge the cross-book indices once Close has
// returned — never for the join itself.
func (r *MarketRegistry) Remove(symbol string) error {
	r.mu.Lock()
	ob, ok := r.books[symbol]
	if !ok {
		r.mu.Unlock()
		return ErrSymbolNotFound
	}
	delete(r.books, symbol)
	r.mu.Unlock()

	if err := ob.Close(); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("order book shutdown error")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID, sym := range r.bySymbolOrder {
		if sym == symbol {
			delete(r.bySymbolOrder, orderID)
		}
	}
	for user, orders := range r.byUser {
		for orderID, sym := range orders {
			if sym == symbol {
				delete(orders, orderID)
			}
		}
		if len(orders) == 0 {
			delete(r.byUser, user)
		}
	}
	return nil
}

// Place routes order to symbol's book, recording the id in both the
// global and per-user indices before returning (spec.md §4.5 `place`).
func (r *MarketRegistry) Place(symbol string, order common.Order) (engine.SubmitResult, error) {
	ob, ok := r.Get(symbol)
	if !ok {
		return engine.SubmitResult{}, ErrSymbolNotFound
	}
	return ob.Submit(order)
}

// Cancel looks up order_id's symbol via the global index and cancels it
// there, without the caller needing to know which book it rests on
// (spec.md §4.5 `cancel`).
func (r *MarketRegistry) Cancel(orderID string) error {
	symbol, ok := r.symbolFor(orderID)
	if !ok {
		return common.ErrNotFound
	}
	ob, ok := r.Get(symbol)
	if !ok {
		return common.ErrNotFound
	}
	return ob.Cancel(orderID)
}

// Modify routes to order_id's book the same way Cancel does.
func (r *MarketRegistry) Modify(orderID string, patch engine.ModifyPatch) (engine.SubmitResult, error) {
	symbol, ok := r.symbolFor(orderID)
	if !ok {
		return engine.SubmitResult{}, common.ErrNotFound
	}
	ob, ok := r.Get(symbol)
	if !ok {
		return engine.SubmitResult{}, common.ErrNotFound
	}
	return ob.Modify(orderID, patch)
}

// UserOrders returns the (symbol, order id) pairs currently resting for
// userID, as tracked by the ORDER_ADDED/ORDER_CANCELLED/ORDER_FILLED/
// ORDER_EXPIRED subscription installed at Create time (spec.md §4.5
// `user_orders(user_id)`).
func (r *MarketRegistry) UserOrders(userID string) []OrderRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	orders, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]OrderRef, 0, len(orders))
	for orderID, symbol := range orders {
		out = append(out, OrderRef{OrderID: orderID, Symbol: symbol})
	}
	return out
}

// Snapshot proxies to symbol's book.
func (r *MarketRegistry) Snapshot(symbol string, depth int) (engine.Snapshot, error) {
	ob, ok := r.Get(symbol)
	if !ok {
		return engine.Snapshot{}, ErrSymbolNotFound
	}
	return ob.Snapshot(depth), nil
}

// SweepExpired forces an out-of-band expiry sweep across every registered
// book (e.g. for a test or an admin endpoint); each OrderBook's background
// sweeper already does this continuously on its own ticker.
func (r *MarketRegistry) SweepExpired(now time.Time) {
	r.mu.RLock()
	books := make([]*engine.OrderBook, 0, len(r.books))
	for _, ob := range r.books {
		books = append(books, ob)
	}
	r.mu.RUnlock()

	for _, ob := range books {
		ob.SweepExpired(now)
	}
}

// Stats returns aggregate statistics across every registered book.
func (r *MarketRegistry) Stats() []engine.Statistics {
	r.mu.RLock()
	symbols := make([]string, 0, len(r.books))
	for s := range r.books {
		symbols = append(symbols, s)
	}
	r.mu.RUnlock()
	sort.Strings(symbols)

	out := make([]engine.Statistics, 0, len(symbols))
	for _, s := range symbols {
		if ob, ok := r.Get(s); ok {
			out = append(out, ob.Statistics())
		}
	}
	return out
}

// OrderRef identifies an order by the symbol of the book it rests on.
type OrderRef struct {
	OrderID string
	Symbol  string
}

func (r *MarketRegistry) symbolFor(orderID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.bySymbolOrder[orderID]
	return s, ok
}

// subscribeIndexing installs the event handlers that keep bySymbolOrder
// and byUser current for symbol's book. Must be called with r.mu held.
func (r *MarketRegistry) subscribeIndexing(symbol string, ob *engine.OrderBook) {
	bus := ob.EventBus()
	bus.Subscribe(eventbus.OrderAdded, func(evt eventbus.Event) {
		p, ok := evt.Payload.(eventbus.OrderAddedPayload)
		if !ok {
			return
		}
		r.indexOrder(symbol, p.OrderID, p.UserID)
	})
	removeHandler := func(evt eventbus.Event) {
		switch p := evt.Payload.(type) {
		case eventbus.OrderCancelledPayload:
			r.unindexOrder(p.OrderID)
		case eventbus.OrderExpiredPayload:
			r.unindexOrder(p.OrderID)
		}
	}
	bus.Subscribe(eventbus.OrderCancelled, removeHandler)
	bus.Subscribe(eventbus.OrderExpired, removeHandler)
	bus.Subscribe(eventbus.OrderFilled, func(evt eventbus.Event) {
		p, ok := evt.Payload.(eventbus.OrderFilledPayload)
		if !ok {
			return
		}
		// A partial fill leaves the maker resting; only a fill that drains
		// the order's remaining quantity to zero should retire it from the
		// per-user index (spec.md §4.5 "maintained incrementally by
		// subscribing to ORDER_ADDED / CANCELLED / FILLED on every child
		// book").
		remaining, err := decimal.NewFromString(p.RemainingQuantity)
		if err != nil || !remaining.IsPositive() {
			r.unindexOrder(p.OrderID)
		}
	})
}

func (r *MarketRegistry) indexOrder(symbol, orderID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySymbolOrder[orderID] = symbol
	if userID == "" {
		return
	}
	orders, ok := r.byUser[userID]
	if !ok {
		orders = make(map[string]string)
		r.byUser[userID] = orders
	}
	orders[orderID] = symbol
}

func (r *MarketRegistry) unindexOrder(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySymbolOrder, orderID)
	for _, orders := range r.byUser {
		delete(orders, orderID)
	}
}
