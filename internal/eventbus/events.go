package eventbus

import "time"

// EventType tags the fourteen lifecycle/event kinds the engine publishes
// (spec.md §4.4).
type EventType int

const (
	OrderAdded EventType = iota
	OrderModified
	OrderCancelled
	OrderFilled
	OrderExpired
	OrderRejected
	TradeExecuted
	PriceLevelAdded
	PriceLevelRemoved
	PriceLevelChanged
	BookUpdated
	DepthChanged
	SnapshotCreated
	GeneratorStatus
)

func (t EventType) String() string {
	switch t {
	case OrderAdded:
		return "ORDER_ADDED"
	case OrderModified:
		return "ORDER_MODIFIED"
	case OrderCancelled:
		return "ORDER_CANCELLED"
	case OrderFilled:
		return "ORDER_FILLED"
	case OrderExpired:
		return "ORDER_EXPIRED"
	case OrderRejected:
		return "ORDER_REJECTED"
	case TradeExecuted:
		return "TRADE_EXECUTED"
	case PriceLevelAdded:
		return "PRICE_LEVEL_ADDED"
	case PriceLevelRemoved:
		return "PRICE_LEVEL_REMOVED"
	case PriceLevelChanged:
		return "PRICE_LEVEL_CHANGED"
	case BookUpdated:
		return "BOOK_UPDATED"
	case DepthChanged:
		return "DEPTH_CHANGED"
	case SnapshotCreated:
		return "SNAPSHOT_CREATED"
	case GeneratorStatus:
		return "GENERATOR_STATUS"
	default:
		return "UNKNOWN"
	}
}

// Event is the envelope delivered to every subscriber: type, symbol,
// timestamp and a type-specific payload (spec.md §6 "Event payloads").
type Event struct {
	Type      EventType
	Symbol    string
	Timestamp time.Time
	Payload   any
}

// Handler processes one event. Handlers must be fast and must not call back
// into the OrderBook API that published them (spec.md §5 — they run inside
// the book's lock in the default synchronous mode).
type Handler func(Event)

// --- Typed payloads, one per event kind that carries more than symbol/time ---

type OrderAddedPayload struct {
	OrderID  string
	Side     int
	Price    string
	Quantity string
	UserID   string
}

type OrderModifiedPayload struct {
	OrderID        string
	LostPriority   bool
	NewPrice       string
	NewQuantity    string
}

type OrderCancelledPayload struct {
	OrderID string
	Reason  string
	Quantity string
}

type OrderFilledPayload struct {
	OrderID           string
	FilledQuantity    string
	RemainingQuantity string
	Flag              string // e.g. MARKET_INSUFFICIENT_LIQUIDITY
}

type OrderExpiredPayload struct {
	OrderID string
}

type OrderRejectedPayload struct {
	OrderID string
	Reason  string
}

type TradeExecutedPayload struct {
	MakerOrderID string
	TakerOrderID string
	Price        string
	Quantity     string
	MakerFee     string
	TakerFee     string
	MakerUserID  string
	TakerUserID  string
}

type PriceLevelPayload struct {
	Side       int
	Price      string
	Quantity   string
	OrderCount int
}

type BookUpdatedPayload struct{}

type DepthChangedPayload struct {
	Depth int
}

type SnapshotCreatedPayload struct {
	Depth int
}

type GeneratorStatusPayload struct {
	Status string
}
