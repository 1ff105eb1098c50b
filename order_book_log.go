package match

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BookLog represents an event in the order book.
// SequenceID is a globally increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream systems.
// Use LogType to determine if the event affects order book state:
// - Open, Match, Cancel: affect order book state
// - Reject: does not affect order book state
type BookLog struct {
	SequenceID    uint64          `json:"seq_id"`
	TradeID       uint64          `json:"trade_id,omitempty"` // Sequential trade ID, only set for Match events
	Type          LogType         `json:"type"`
	Side          Side            `json:"side"` // Taker side for Match events
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	Amount        decimal.Decimal `json:"amount,omitempty"` // Price * Size, only set for Match events
	OrderID       uint64          `json:"order_id"`
	TraderID      string          `json:"trader_id"`
	MakerOrderID  uint64          `json:"maker_order_id,omitempty"`
	MakerTraderID string          `json:"maker_trader_id,omitempty"`
	RejectReason  RejectReason    `json:"reject_reason,omitempty"` // Only set for Reject events
	CreatedAt     time.Time       `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	// For decimal.Decimal, the zero value (nil internal pointer) represents 0, which is valid.
	*log = BookLog{}
	bookLogPool.Put(log)
}

// newOpenLog records the remainder of an order entering the book.
func newOpenLog(seqID uint64, order *Order, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.RemainingQuantity
	log.OrderID = order.ID
	log.TraderID = order.TraderID
	log.CreatedAt = now
	return log
}

func newMatchLog(seqID uint64, trade *Trade, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = trade.Sequence
	log.Type = LogTypeMatch
	log.Side = trade.TakerSide
	log.Price = trade.Price
	log.Size = trade.Quantity
	log.Amount = trade.Price.Mul(trade.Quantity)
	log.OrderID = trade.TakerOrderID
	log.TraderID = trade.TakerTraderID
	log.MakerOrderID = trade.MakerOrderID
	log.MakerTraderID = trade.MakerTraderID
	log.CreatedAt = now
	return log
}

// newCancelLog records the forfeited remainder of a cancelled order.
func newCancelLog(seqID uint64, order *Order, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.RemainingQuantity
	log.OrderID = order.ID
	log.TraderID = order.TraderID
	log.CreatedAt = now
	return log
}

func newRejectLog(seqID uint64, orderID uint64, traderID string, reason RejectReason, now time.Time) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeReject
	log.OrderID = orderID
	log.TraderID = traderID
	log.RejectReason = reason
	log.CreatedAt = now
	return log
}
