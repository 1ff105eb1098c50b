package match

import (
	"fmt"

	"github.com/0x5487/limitbook/structure"
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel is the FIFO queue of orders resting at one price.
// The orders themselves live in the side's arena.
type priceLevel struct {
	price         decimal.Decimal
	totalQuantity decimal.Decimal
	queue         structure.Queue
}

// bookSide is one side of the book: price levels ordered best-first.
type bookSide struct {
	side        Side
	totalOrders int64
	depths      int64
	levels      *skiplist.SkipList
	arena       *structure.PooledList[Order]
}

// newBidSide creates the buy side.
// The levels are sorted by price in descending order (highest price first).
func newBidSide(capacity int32, opts structure.ListOptions) *bookSide {
	return &bookSide{
		side: Buy,
		levels: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return -d1.Cmp(d2)
		})),
		arena: structure.NewPooledListWithOptions[Order](capacity, opts),
	}
}

// newAskSide creates the sell side.
// The levels are sorted by price in ascending order (lowest price first).
func newAskSide(capacity int32, opts structure.ListOptions) *bookSide {
	return &bookSide{
		side: Sell,
		levels: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		arena: structure.NewPooledListWithOptions[Order](capacity, opts),
	}
}

// bestLevel returns the level at the extreme price, or nil if the side is empty.
func (s *bookSide) bestLevel() *priceLevel {
	el := s.levels.Front()
	if el == nil {
		return nil
	}
	level, _ := el.Value.(*priceLevel)
	return level
}

// bestPrice returns the extreme price of the side.
func (s *bookSide) bestPrice() (decimal.Decimal, bool) {
	level := s.bestLevel()
	if level == nil {
		return decimal.Zero, false
	}
	return level.price, true
}

// level finds the level for an exact price.
func (s *bookSide) level(price decimal.Decimal) *priceLevel {
	el := s.levels.Get(price)
	if el == nil {
		return nil
	}
	level, _ := el.Value.(*priceLevel)
	return level
}

// insert appends an order to the tail of its price level, creating the level if absent.
func (s *bookSide) insert(order Order) structure.Handle {
	level := s.level(order.Price)
	if level == nil {
		level = &priceLevel{
			price: order.Price,
			queue: structure.NewQueue(),
		}
		s.levels.Set(order.Price, level)
		s.depths++
	}

	h := s.arena.PushBack(&level.queue, order.Sequence, order)
	level.totalQuantity = level.totalQuantity.Add(order.RemainingQuantity)
	s.totalOrders++

	return h
}

// head returns the earliest order of a level.
// The pointer is only valid until the next insert on this side.
func (s *bookSide) head(level *priceLevel) (*Order, structure.Handle) {
	order, h, ok := s.arena.Front(&level.queue)
	if !ok {
		return nil, structure.NullHandle
	}
	return order, h
}

// fill reduces a resting order in place, keeping its queue position.
func (s *bookSide) fill(level *priceLevel, order *Order, qty decimal.Decimal) {
	order.RemainingQuantity = order.RemainingQuantity.Sub(qty)
	level.totalQuantity = level.totalQuantity.Sub(qty)
}

// removeFront pops the head order of a level, used after a full fill.
func (s *bookSide) removeFront(level *priceLevel) (Order, bool) {
	order, ok := s.arena.PopFront(&level.queue)
	if !ok {
		return Order{}, false
	}
	s.afterRemove(level, order)
	return order, true
}

// removeOrder removes an arbitrary order given its handle (cancellation).
func (s *bookSide) removeOrder(level *priceLevel, h structure.Handle) (Order, bool) {
	order, ok := s.arena.Remove(&level.queue, h)
	if !ok {
		return Order{}, false
	}
	s.afterRemove(level, order)
	return order, true
}

// afterRemove fixes counters and drops the level once it is empty.
func (s *bookSide) afterRemove(level *priceLevel, order Order) {
	level.totalQuantity = level.totalQuantity.Sub(order.RemainingQuantity)
	s.totalOrders--

	if level.queue.IsEmpty() {
		s.levels.Remove(level.price)
		s.depths--
	}
}

// order resolves a handle to the resting order.
func (s *bookSide) order(h structure.Handle) (*Order, bool) {
	return s.arena.Get(h)
}

// orderCount returns the total number of orders on the side.
func (s *bookSide) orderCount() int64 {
	return s.totalOrders
}

// depthCount returns the number of price levels on the side.
func (s *bookSide) depthCount() int64 {
	return s.depths
}

// depth returns up to limit aggregated levels, best price first.
// A zero limit returns every level.
func (s *bookSide) depth(limit uint32) []DepthItem {
	size := s.depths
	if limit > 0 && int64(limit) < size {
		size = int64(limit)
	}
	result := make([]DepthItem, 0, size)

	var i uint32
	for el := s.levels.Front(); el != nil; el = el.Next() {
		if limit > 0 && i >= limit {
			break
		}
		level, _ := el.Value.(*priceLevel)
		result = append(result, DepthItem{
			Price:    level.price,
			Quantity: level.totalQuantity,
			Count:    int64(level.queue.Len),
		})
		i++
	}

	return result
}

// toSnapshot copies every order in priority order: best level first, FIFO within a level.
func (s *bookSide) toSnapshot() []Order {
	snapshots := make([]Order, 0, s.totalOrders)

	for el := s.levels.Front(); el != nil; el = el.Next() {
		level, _ := el.Value.(*priceLevel)
		s.arena.Each(&level.queue, func(_ structure.Handle, order *Order) bool {
			snapshots = append(snapshots, *order)
			return true
		})
	}

	return snapshots
}

// check walks the whole side and verifies its structural invariants.
// visit is called for every resting order with its locator.
func (s *bookSide) check(visit func(order *Order, loc Locator) error) error {
	var (
		orders int64
		depths int64
		prev   *priceLevel
	)

	for el := s.levels.Front(); el != nil; el = el.Next() {
		level, _ := el.Value.(*priceLevel)
		depths++

		if level.queue.IsEmpty() {
			return fmt.Errorf("%w: empty %s level at %s", ErrInvariantViolation, s.side, level.price)
		}
		if prev != nil {
			better := prev.price.GreaterThan(level.price)
			if s.side == Sell {
				better = prev.price.LessThan(level.price)
			}
			if !better {
				return fmt.Errorf("%w: %s levels out of order at %s", ErrInvariantViolation, s.side, level.price)
			}
		}

		total := decimal.Zero
		var lastSeq uint64
		var err error
		s.arena.Each(&level.queue, func(h structure.Handle, order *Order) bool {
			switch {
			case order.Side != s.side:
				err = fmt.Errorf("%w: order %d on wrong side", ErrInvariantViolation, order.ID)
			case !order.Price.Equal(level.price):
				err = fmt.Errorf("%w: order %d price %s in level %s", ErrInvariantViolation, order.ID, order.Price, level.price)
			case !order.RemainingQuantity.IsPositive() || order.RemainingQuantity.GreaterThan(order.OriginalQuantity):
				err = fmt.Errorf("%w: order %d remaining %s", ErrInvariantViolation, order.ID, order.RemainingQuantity)
			case !order.Status.IsResting():
				err = fmt.Errorf("%w: order %d resting with status %s", ErrInvariantViolation, order.ID, order.Status)
			case order.Sequence <= lastSeq:
				err = fmt.Errorf("%w: order %d breaks FIFO at %s", ErrInvariantViolation, order.ID, level.price)
			}
			if err != nil {
				return false
			}

			lastSeq = order.Sequence
			total = total.Add(order.RemainingQuantity)
			orders++

			err = visit(order, Locator{Side: s.side, Price: level.price, Handle: h})
			return err == nil
		})
		if err != nil {
			return err
		}

		if !total.Equal(level.totalQuantity) {
			return fmt.Errorf("%w: %s level %s total %s, orders sum %s", ErrInvariantViolation, s.side, level.price, level.totalQuantity, total)
		}
		prev = level
	}

	if orders != s.totalOrders || depths != s.depths {
		return fmt.Errorf("%w: %s counters orders=%d/%d depths=%d/%d", ErrInvariantViolation, s.side, s.totalOrders, orders, s.depths, depths)
	}

	return nil
}
