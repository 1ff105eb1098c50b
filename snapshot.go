package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderBookSnapshot contains the full state of the order book.
type OrderBookSnapshot struct {
	SchemaVersion  int             `json:"schema_version"`
	EngineVersion  string          `json:"engine_version"`
	Timestamp      int64           `json:"timestamp"`       // Unix Nano
	SeqID          uint64          `json:"seq_id"`          // Current BookLog sequence ID
	LastCmdSeqID   uint64          `json:"last_cmd_seq_id"` // Last processed command sequence ID from the host
	LastOrderID    uint64          `json:"last_order_id"`
	LastSequence   uint64          `json:"last_sequence"`
	TradeID        uint64          `json:"trade_id"` // Current Trade sequence ID
	LastTradePrice decimal.Decimal `json:"last_trade_price"`
	HasTraded      bool            `json:"has_traded"`
	Bids           []Order         `json:"bids"` // Ordered list of bids (best price first, FIFO within a level)
	Asks           []Order         `json:"asks"` // Ordered list of asks (best price first, FIFO within a level)
}

// createSnapshot captures the current state of the book.
// Must be called from the goroutine that owns the book.
func (book *OrderBook) createSnapshot() *OrderBookSnapshot {
	return &OrderBookSnapshot{
		SchemaVersion:  SnapshotSchemaVersion,
		EngineVersion:  EngineVersion,
		SeqID:          book.seqID,
		LastOrderID:    book.lastOrderID,
		LastSequence:   book.lastSequence,
		TradeID:        book.lastTradeID,
		LastTradePrice: book.lastTradePrice,
		HasTraded:      book.hasTraded,
		Bids:           book.bids.toSnapshot(),
		Asks:           book.asks.toSnapshot(),
	}
}

// restore resets the book and rebuilds it from snap, bypassing the matching logic.
// The rebuilt book is verified with the strict invariant check before it is accepted;
// on failure the book is left empty.
func (book *OrderBook) restore(snap *OrderBookSnapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return fmt.Errorf("%w: snapshot schema version %d, want %d", ErrInvalidParam, snap.SchemaVersion, SnapshotSchemaVersion)
	}

	book.reset()

	restoreOrders := func(side Side, orders []Order) error {
		target := book.bookSide(side)
		for i := range orders {
			o := orders[i]
			switch {
			case o.Side != side:
				return fmt.Errorf("%w: snapshot order %d on wrong side", ErrInvalidParam, o.ID)
			case o.ID == 0 || o.ID > snap.LastOrderID:
				return fmt.Errorf("%w: snapshot order id %d out of range", ErrInvalidParam, o.ID)
			case o.Sequence == 0 || o.Sequence > snap.LastSequence:
				return fmt.Errorf("%w: snapshot order %d sequence %d out of range", ErrInvalidParam, o.ID, o.Sequence)
			case !o.Price.IsPositive() || !o.RemainingQuantity.IsPositive():
				return fmt.Errorf("%w: snapshot order %d has non-positive price or quantity", ErrInvalidParam, o.ID)
			}
			if _, exists := book.registry.get(o.ID); exists {
				return fmt.Errorf("%w: duplicate snapshot order %d", ErrInvalidParam, o.ID)
			}

			h := target.insert(o)
			book.registry.add(o.ID, o.TraderID, Locator{Side: side, Price: o.Price, Handle: h})
		}
		return nil
	}

	if err := restoreOrders(Buy, snap.Bids); err != nil {
		book.reset()
		return err
	}
	if err := restoreOrders(Sell, snap.Asks); err != nil {
		book.reset()
		return err
	}

	book.seqID = snap.SeqID
	book.lastOrderID = snap.LastOrderID
	book.lastSequence = snap.LastSequence
	book.lastTradeID = snap.TradeID
	book.lastTradePrice = snap.LastTradePrice
	book.hasTraded = snap.HasTraded

	if err := book.checkInvariants(true); err != nil {
		book.reset()
		return err
	}

	return nil
}

// reset drops every order and counter.
func (book *OrderBook) reset() {
	book.bids = newBidSide(book.arenaCapacity, book.arenaOpts)
	book.asks = newAskSide(book.arenaCapacity, book.arenaOpts)
	book.registry = newRegistry()
	book.seqID = 0
	book.lastOrderID = 0
	book.lastSequence = 0
	book.lastTradeID = 0
	book.lastTradePrice = decimal.Zero
	book.hasTraded = false
	book.logs = book.logs[:0]
}
