package match

import (
	"github.com/0x5487/limitbook/protocol"
	"github.com/0x5487/limitbook/structure"
	"github.com/shopspring/decimal"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

type LogType = protocol.LogType

const (
	LogTypeOpen   LogType = protocol.LogTypeOpen
	LogTypeMatch  LogType = protocol.LogTypeMatch
	LogTypeCancel LogType = protocol.LogTypeCancel
	LogTypeReject LogType = protocol.LogTypeReject
)

type RejectReason = protocol.RejectReason

const (
	RejectReasonNone          RejectReason = protocol.RejectReasonNone
	RejectReasonInvalidOrder  RejectReason = protocol.RejectReasonInvalidOrder
	RejectReasonOrderNotFound RejectReason = protocol.RejectReasonOrderNotFound
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusActive          OrderStatus = "active"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
)

// IsResting reports whether an order in this status belongs in the book.
func (s OrderStatus) IsResting() bool {
	return s == StatusActive || s == StatusPartiallyFilled
}

// Order represents the state of an order in the order book.
// This is the serializable state used for snapshots.
type Order struct {
	ID                uint64          `json:"id"`
	TraderID          string          `json:"trader_id"`
	Side              Side            `json:"side"`
	Price             decimal.Decimal `json:"price"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Sequence          uint64          `json:"sequence"` // Arrival counter, breaks price ties
	Status            OrderStatus     `json:"status"`
	CreatedAt         int64           `json:"created_at"` // Unix nano
}

// FilledQuantity returns the volume already matched against this order.
func (o *Order) FilledQuantity() decimal.Decimal {
	return o.OriginalQuantity.Sub(o.RemainingQuantity)
}

// Trade is emitted for every match between a resting maker and an incoming taker.
// Price is always the maker's resting price.
type Trade struct {
	Sequence      uint64          `json:"sequence"`
	MakerOrderID  uint64          `json:"maker_order_id"`
	TakerOrderID  uint64          `json:"taker_order_id"`
	MakerTraderID string          `json:"maker_trader_id"`
	TakerTraderID string          `json:"taker_trader_id"`
	TakerSide     Side            `json:"taker_side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	CreatedAt     int64           `json:"created_at"`
}

// SubmitResult is returned for an accepted limit order.
// Trades are in execution order and may be empty.
type SubmitResult struct {
	OrderID           uint64          `json:"order_id"`
	Status            OrderStatus     `json:"status"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Trades            []Trade         `json:"trades"`
}

// Locator points at a resting order without owning it.
// The handle is validated against the order sequence on every use.
type Locator struct {
	Side   Side             `json:"side"`
	Price  decimal.Decimal  `json:"price"`
	Handle structure.Handle `json:"handle"`
}

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Count    int64           `json:"count"`
}

// Depth is a read-only view of aggregated resting quantity, best price first.
// UpdateID is the sequence of the last BookLog, rejects included, so it can
// advance without any change to the levels.
type Depth struct {
	UpdateID uint64      `json:"update_id"`
	Asks     []DepthItem `json:"asks"`
	Bids     []DepthItem `json:"bids"`
}

// DepthChange represents a change in the order book depth.
type DepthChange struct {
	Side     Side
	Price    decimal.Decimal
	SizeDiff decimal.Decimal
}

// BookStats contains statistics about the order book sides.
type BookStats struct {
	AskDepthCount int64  `json:"ask_depth_count"`
	AskOrderCount int64  `json:"ask_order_count"`
	BidDepthCount int64  `json:"bid_depth_count"`
	BidOrderCount int64  `json:"bid_order_count"`
	LastOrderID   uint64 `json:"last_order_id"`
	LastTradeID   uint64 `json:"last_trade_id"`
	ArenaCapacity int64  `json:"arena_capacity"`
}
