package match

import (
	"fmt"
	"time"

	"github.com/0x5487/limitbook/structure"
	"github.com/shopspring/decimal"
)

// OrderBook is the single-instrument matching core: both book sides, the
// order registry and the id/sequence counters.
//
// OrderBook is not safe for concurrent use. MatchingEngine owns one and
// serializes every command through its processing goroutine.
type OrderBook struct {
	bids     *bookSide
	asks     *bookSide
	registry *registry

	lastOrderID    uint64 // Order ids are assigned from 1
	lastSequence   uint64 // Arrival counter for accepted orders
	lastTradeID    uint64 // Trade sequence, only incremented for matches
	seqID          uint64 // BookLog sequence, incremented for every log
	lastTradePrice decimal.Decimal
	hasTraded      bool

	arenaCapacity int32
	arenaOpts     structure.ListOptions

	logs []*BookLog // Logs of the command in flight
}

// NewOrderBook creates an empty book whose sides pre-allocate capacity order slots.
func NewOrderBook(capacity int32) *OrderBook {
	return newOrderBook(capacity, structure.ListOptions{})
}

func newOrderBook(capacity int32, opts structure.ListOptions) *OrderBook {
	return &OrderBook{
		bids:          newBidSide(capacity, opts),
		asks:          newAskSide(capacity, opts),
		registry:      newRegistry(),
		arenaCapacity: capacity,
		arenaOpts:     opts,
		logs:          make([]*BookLog, 0, 8),
	}
}

// sides returns the incoming order's own side and the side it matches against.
func (book *OrderBook) sides(side Side) (mySide, targetSide *bookSide) {
	if side == Buy {
		return book.bids, book.asks
	}
	return book.asks, book.bids
}

func (book *OrderBook) bookSide(side Side) *bookSide {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// crosses reports whether an incoming limit price can trade against a resting level price.
func crosses(side Side, limit, levelPrice decimal.Decimal) bool {
	if side == Buy {
		return levelPrice.LessThanOrEqual(limit)
	}
	return levelPrice.GreaterThanOrEqual(limit)
}

func (book *OrderBook) appendLog(log *BookLog) {
	book.logs = append(book.logs, log)
}

func (book *OrderBook) nextLogSeq() uint64 {
	book.seqID++
	return book.seqID
}

// drainLogs hands over the logs produced since the last drain.
// The caller must release them with releaseBookLog.
func (book *OrderBook) drainLogs() []*BookLog {
	if len(book.logs) == 0 {
		return nil
	}
	logs := book.logs
	book.logs = make([]*BookLog, 0, 8)
	return logs
}

// submitLimitOrder validates, crosses and rests a new limit order.
func (book *OrderBook) submitLimitOrder(traderID string, side Side, price, quantity decimal.Decimal) (*SubmitResult, error) {
	now := time.Now().UTC()

	if !side.IsValid() || !price.IsPositive() || !quantity.IsPositive() {
		book.appendLog(newRejectLog(book.nextLogSeq(), 0, traderID, RejectReasonInvalidOrder, now))
		return nil, ErrInvalidOrder
	}

	book.lastOrderID++
	book.lastSequence++
	order := Order{
		ID:                book.lastOrderID,
		TraderID:          traderID,
		Side:              side,
		Price:             price,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		Sequence:          book.lastSequence,
		Status:            StatusActive,
		CreatedAt:         now.UnixNano(),
	}

	mySide, targetSide := book.sides(side)
	trades := make([]Trade, 0, 4)

	for order.RemainingQuantity.IsPositive() {
		level := targetSide.bestLevel()
		if level == nil || !crosses(side, order.Price, level.price) {
			break
		}

		// Strict FIFO: always the earliest order at the best price.
		maker, _ := targetSide.head(level)
		matched := decimal.Min(order.RemainingQuantity, maker.RemainingQuantity)

		book.lastTradeID++
		trade := Trade{
			Sequence:      book.lastTradeID,
			MakerOrderID:  maker.ID,
			TakerOrderID:  order.ID,
			MakerTraderID: maker.TraderID,
			TakerTraderID: order.TraderID,
			TakerSide:     side,
			Price:         maker.Price,
			Quantity:      matched,
			CreatedAt:     now.UnixNano(),
		}
		trades = append(trades, trade)
		book.appendLog(newMatchLog(book.nextLogSeq(), &trade, now))
		book.lastTradePrice = trade.Price
		book.hasTraded = true

		order.RemainingQuantity = order.RemainingQuantity.Sub(matched)
		targetSide.fill(level, maker, matched)

		if maker.RemainingQuantity.IsZero() {
			maker.Status = StatusFilled
			filled, _ := targetSide.removeFront(level)
			book.registry.remove(filled.ID)
		} else {
			maker.Status = StatusPartiallyFilled
		}
	}

	if order.RemainingQuantity.IsPositive() {
		if order.RemainingQuantity.Equal(order.OriginalQuantity) {
			order.Status = StatusActive
		} else {
			order.Status = StatusPartiallyFilled
		}

		h := mySide.insert(order)
		book.registry.add(order.ID, order.TraderID, Locator{Side: side, Price: order.Price, Handle: h})
		book.appendLog(newOpenLog(book.nextLogSeq(), &order, now))
	} else {
		order.Status = StatusFilled
	}

	return &SubmitResult{
		OrderID:           order.ID,
		Status:            order.Status,
		RemainingQuantity: order.RemainingQuantity,
		Trades:            trades,
	}, nil
}

// cancelOrder removes a resting order and returns its final state.
func (book *OrderBook) cancelOrder(id uint64) (*Order, error) {
	now := time.Now().UTC()

	loc, ok := book.registry.get(id)
	if !ok {
		book.appendLog(newRejectLog(book.nextLogSeq(), id, "", RejectReasonOrderNotFound, now))
		return nil, ErrUnknownOrder
	}

	side := book.bookSide(loc.Side)
	level := side.level(loc.Price)
	if level == nil {
		return nil, fmt.Errorf("%w: order %d points at missing %s level %s", ErrInvariantViolation, id, loc.Side, loc.Price)
	}

	order, ok := side.removeOrder(level, loc.Handle)
	if !ok {
		return nil, fmt.Errorf("%w: order %d has a stale locator", ErrInvariantViolation, id)
	}
	if order.ID != id {
		return nil, fmt.Errorf("%w: locator of order %d resolved to order %d", ErrInvariantViolation, id, order.ID)
	}

	order.Status = StatusCancelled
	book.registry.remove(id)
	book.appendLog(newCancelLog(book.nextLogSeq(), &order, now))

	return &order, nil
}

// cancelAll cancels every resting order of a trader, oldest id first.
func (book *OrderBook) cancelAll(traderID string) ([]Order, error) {
	ids := book.registry.idsOf(traderID)
	cancelled := make([]Order, 0, len(ids))

	for _, id := range ids {
		order, err := book.cancelOrder(id)
		if err != nil {
			return cancelled, err
		}
		cancelled = append(cancelled, *order)
	}

	return cancelled, nil
}

// order returns a copy of a resting order.
func (book *OrderBook) order(id uint64) (*Order, error) {
	loc, ok := book.registry.get(id)
	if !ok {
		return nil, ErrUnknownOrder
	}

	order, ok := book.bookSide(loc.Side).order(loc.Handle)
	if !ok {
		return nil, fmt.Errorf("%w: order %d has a stale locator", ErrInvariantViolation, id)
	}

	cpy := *order
	return &cpy, nil
}

func (book *OrderBook) bestBidPrice() (decimal.Decimal, bool) {
	return book.bids.bestPrice()
}

func (book *OrderBook) bestAskPrice() (decimal.Decimal, bool) {
	return book.asks.bestPrice()
}

func (book *OrderBook) lastTrade() (decimal.Decimal, bool) {
	return book.lastTradePrice, book.hasTraded
}

// depth returns the aggregated view of both sides up to limit levels each.
func (book *OrderBook) depth(limit uint32) *Depth {
	return &Depth{
		UpdateID: book.seqID,
		Asks:     book.asks.depth(limit),
		Bids:     book.bids.depth(limit),
	}
}

func (book *OrderBook) stats() *BookStats {
	return &BookStats{
		AskDepthCount: book.asks.depthCount(),
		AskOrderCount: book.asks.orderCount(),
		BidDepthCount: book.bids.depthCount(),
		BidOrderCount: book.bids.orderCount(),
		LastOrderID:   book.lastOrderID,
		LastTradeID:   book.lastTradeID,
		ArenaCapacity: int64(book.bids.arena.Capacity()) + int64(book.asks.arena.Capacity()),
	}
}

// checkInvariants verifies the book after a command.
// The quick form is O(1): uncrossed book and registry/side counts.
// The strict form also walks every level and every registry entry.
func (book *OrderBook) checkInvariants(strict bool) error {
	bid, hasBid := book.bids.bestPrice()
	ask, hasAsk := book.asks.bestPrice()
	if hasBid && hasAsk && bid.GreaterThanOrEqual(ask) {
		return fmt.Errorf("%w: crossed book bid %s >= ask %s", ErrInvariantViolation, bid, ask)
	}

	resting := book.bids.orderCount() + book.asks.orderCount()
	if int64(book.registry.len()) != resting {
		return fmt.Errorf("%w: registry has %d entries, book has %d orders", ErrInvariantViolation, book.registry.len(), resting)
	}

	if !strict {
		return nil
	}

	visit := func(order *Order, loc Locator) error {
		registered, ok := book.registry.get(order.ID)
		if !ok {
			return fmt.Errorf("%w: resting order %d missing from registry", ErrInvariantViolation, order.ID)
		}
		if registered.Side != loc.Side || !registered.Price.Equal(loc.Price) || registered.Handle != loc.Handle {
			return fmt.Errorf("%w: registry locator of order %d diverges from book", ErrInvariantViolation, order.ID)
		}
		return nil
	}

	if err := book.bids.check(visit); err != nil {
		return err
	}
	return book.asks.check(visit)
}
