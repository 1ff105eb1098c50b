package match

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedLevel is the total resting size at one price.
type AggregatedLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// AggregatedBook maintains a simplified view of the order book,
// tracking only price levels and their aggregated sizes (depth).
// It is designed for downstream services that need to rebuild
// order book state from BookLog events received via message queue.
type AggregatedBook struct {
	mu    sync.RWMutex
	seqID atomic.Uint64 // Last processed SequenceID for gap detection and deduplication
	ask   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
	bid   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	ab := &AggregatedBook{}
	ab.clear()
	return ab
}

func (ab *AggregatedBook) clear() {
	// Both trees iterate best price first.
	ab.ask = treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	})
	ab.bid = treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](func(a, b decimal.Decimal) bool {
		return a.GreaterThan(b)
	})
	ab.seqID.Store(0)
}

func (ab *AggregatedBook) tree(side Side) *treemap.TreeMap[decimal.Decimal, decimal.Decimal] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}

// SequenceID returns the last processed sequence ID.
// Used for synchronization and gap detection during rebuild.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID.Load()
}

// Replay applies a BookLog event to update the aggregated book state.
// Events with LogType == LogTypeReject do not affect book state but still update the sequence ID.
// Events already applied are ignored. Returns ErrSequenceGap if events are missing.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	current := ab.seqID.Load()
	if log.SequenceID <= current {
		return nil
	}
	if log.SequenceID != current+1 {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, current+1, log.SequenceID)
	}

	if log.Type != LogTypeReject {
		change := CalculateDepthChange(log)
		tree := ab.tree(change.Side)

		size, _ := tree.Get(change.Price)
		size = size.Add(change.SizeDiff)
		if size.IsPositive() {
			tree.Set(change.Price, size)
		} else {
			tree.Del(change.Price)
		}
	}

	ab.seqID.Store(log.SequenceID)
	return nil
}

// OnEvent replays logs delivered by an AsyncPublishLog.
// Replay errors are logged; after a gap the book must be rebuilt from a snapshot.
func (ab *AggregatedBook) OnEvent(log *BookLog) {
	if err := ab.Replay(log); err != nil {
		logger.Error("aggregated book replay failed", "seq_id", log.SequenceID, "error", err)
	}
}

// OnRebuild initializes or resets the aggregated book from a snapshot.
// This should be called before replaying events from the message queue.
func (ab *AggregatedBook) OnRebuild(snap *OrderBookSnapshot) error {
	if snap == nil {
		return ErrInvalidParam
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.clear()

	add := func(orders []Order) {
		for i := range orders {
			o := &orders[i]
			tree := ab.tree(o.Side)
			size, _ := tree.Get(o.Price)
			tree.Set(o.Price, size.Add(o.RemainingQuantity))
		}
	}
	add(snap.Bids)
	add(snap.Asks)

	ab.seqID.Store(snap.SeqID)
	return nil
}

// Depth returns the aggregated size at a specific price level for the given side.
// Returns zero if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) (decimal.Decimal, error) {
	if !side.IsValid() {
		return decimal.Zero, ErrInvalidParam
	}

	ab.mu.RLock()
	defer ab.mu.RUnlock()

	size, ok := ab.tree(side).Get(price)
	if !ok {
		return decimal.Zero, nil
	}
	return size, nil
}

// Levels returns up to limit levels of a side, best price first.
// A zero limit returns every level.
func (ab *AggregatedBook) Levels(side Side, limit int) []AggregatedLevel {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	tree := ab.tree(side)
	result := make([]AggregatedLevel, 0, tree.Len())
	for it := tree.Iterator(); it.Valid(); it.Next() {
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, AggregatedLevel{Price: it.Key(), Size: it.Value()})
	}
	return result
}
