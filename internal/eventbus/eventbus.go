// Package eventbus is the typed publish/subscribe fan-out through which
// persistence, API and market-data consumers observe OrderBook state
// (spec.md §4.4). Built in the teacher's mutex-guards-a-map idiom
// (internal/net/server.go's clientSessions bookkeeping), since the teacher
// itself has no pub/sub of its own — engine.Engine.Trade there is a bare
// `// FIXME: fire an execution report` stub.
package eventbus

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultMaxHistory = 1000

// SubscriptionID identifies a registered handler for Unsubscribe. Go func
// values aren't comparable, so Subscribe hands back a token instead of
// requiring the caller to pass the same closure back.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a typed, synchronous-by-default publish/subscribe hub with a
// bounded history ring (spec.md §4.4).
type Bus struct {
	mu          sync.Mutex
	byType      map[EventType][]subscription
	all         []subscription
	nextID      SubscriptionID
	history     []Event
	historyHead int
	historyLen  int
	maxHistory  int
	async       *AsyncDispatcher
}

// New builds a Bus with the given bounded history size (spec.md §6
// `max_event_history`; 0 or negative uses the spec's default of 1000).
func New(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Bus{
		byType:     make(map[EventType][]subscription),
		history:    make([]Event, maxHistory),
		maxHistory: maxHistory,
	}
}

// Subscribe registers handler for one event type and returns a token for
// Unsubscribe.
func (b *Bus) Subscribe(t EventType, h Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscription{id: id, handler: h})
	return id
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(h Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return id
}

// Unsubscribe removes a previously registered handler by token, from both
// the per-type and subscribe-all lists.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.byType {
		b.byType[t] = removeSub(subs, id)
	}
	b.all = removeSub(b.all, id)
}

func removeSub(subs []subscription, id SubscriptionID) []subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// EnableAsync installs an AsyncDispatcher so PublishAsync has somewhere to
// hand events off to (spec.md §4.4/§9's additive asynchronous mode).
func (b *Bus) EnableAsync(d *AsyncDispatcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.async = d
}

// Publish delivers event to every matching subscriber synchronously,
// running all handlers to completion before returning (spec.md §4.4, §5 —
// handlers run on the caller's thread, inside the book's lock). A handler
// panic is caught, logged, and does not stop sibling handlers from running.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	typed := append([]subscription(nil), b.byType[evt.Type]...)
	all := append([]subscription(nil), b.all...)
	b.recordLocked(evt)
	b.mu.Unlock()

	for _, s := range typed {
		invoke(s.handler, evt)
	}
	for _, s := range all {
		invoke(s.handler, evt)
	}
}

// PublishAsync hands the event to the installed AsyncDispatcher instead of
// running handlers inline. Falls back to a synchronous Publish if no
// dispatcher has been installed, so callers don't need a nil check.
func (b *Bus) PublishAsync(evt Event) {
	b.mu.Lock()
	d := b.async
	b.recordLocked(evt)
	b.mu.Unlock()

	if d == nil {
		b.dispatchSync(evt)
		return
	}
	d.Enqueue(evt, b.subscribersFor(evt.Type))
}

func (b *Bus) dispatchSync(evt Event) {
	for _, s := range b.subscribersFor(evt.Type) {
		invoke(s.handler, evt)
	}
}

func (b *Bus) subscribersFor(t EventType) []subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]subscription(nil), b.byType[t]...)
	out = append(out, b.all...)
	return out
}

func invoke(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("eventType", evt.Type.String()).
				Str("symbol", evt.Symbol).
				Msg("event handler panicked, isolating")
		}
	}()
	h(evt)
}

// recordLocked appends evt to the bounded ring; caller holds b.mu.
func (b *Bus) recordLocked(evt Event) {
	b.history[b.historyHead] = evt
	b.historyHead = (b.historyHead + 1) % b.maxHistory
	if b.historyLen < b.maxHistory {
		b.historyLen++
	}
}

// History returns up to limit most-recent events, optionally filtered by
// type and/or symbol (spec.md §4.4 `history(limit, type?, symbol?)`).
// limit <= 0 means "all retained".
func (b *Bus) History(limit int, filterType *EventType, symbol string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, b.historyLen)
	for i := 0; i < b.historyLen; i++ {
		idx := (b.historyHead - 1 - i + b.maxHistory) % b.maxHistory
		evt := b.history[idx]
		if filterType != nil && evt.Type != *filterType {
			continue
		}
		if symbol != "" && evt.Symbol != symbol {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
