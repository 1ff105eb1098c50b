package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDepthChange(t *testing.T) {
	open := &BookLog{Type: LogTypeOpen, Side: Buy, Price: d(100), Size: d(5)}
	change := CalculateDepthChange(open)
	assert.Equal(t, Buy, change.Side)
	assert.Equal(t, "5", change.SizeDiff.String())

	cancel := &BookLog{Type: LogTypeCancel, Side: Sell, Price: d(110), Size: d(2)}
	change = CalculateDepthChange(cancel)
	assert.Equal(t, Sell, change.Side)
	assert.Equal(t, "-2", change.SizeDiff.String())

	// Match logs carry the taker side; liquidity leaves the maker side.
	match := &BookLog{Type: LogTypeMatch, Side: Buy, Price: d(110), Size: d(1)}
	change = CalculateDepthChange(match)
	assert.Equal(t, Sell, change.Side)
	assert.Equal(t, "110", change.Price.String())
	assert.Equal(t, "-1", change.SizeDiff.String())

	reject := &BookLog{Type: LogTypeReject}
	assert.True(t, CalculateDepthChange(reject).SizeDiff.IsZero())
}

func TestAggregatedBookReplay(t *testing.T) {
	book := NewOrderBook(8)
	publishLog := NewMemoryPublishLog()

	run := func(fn func()) {
		fn()
		logs := book.drainLogs()
		publishLog.Publish(logs...)
		for _, log := range logs {
			releaseBookLog(log)
		}
	}

	run(func() { mustSubmit(t, book, "A", Buy, 90, 3) })
	run(func() { mustSubmit(t, book, "B", Buy, 90, 2) })
	run(func() { mustSubmit(t, book, "C", Buy, 80, 1) })
	run(func() { mustSubmit(t, book, "D", Sell, 110, 4) })
	run(func() { mustSubmit(t, book, "E", Sell, 85, 4) })
	run(func() { _, _ = book.cancelOrder(3) })
	run(func() { _, _ = book.cancelOrder(3) })
	run(func() { _, _ = book.submitLimitOrder("F", Buy, d(0), d(1)) })

	agg := NewAggregatedBook()
	for _, log := range publishLog.Logs() {
		require.NoError(t, agg.Replay(log))
	}
	assert.Equal(t, book.seqID, agg.SequenceID())

	// The aggregated view matches the book depth level by level.
	depth := book.depth(0)
	for _, side := range []Side{Buy, Sell} {
		items := depth.Bids
		if side == Sell {
			items = depth.Asks
		}
		levels := agg.Levels(side, 0)
		require.Len(t, levels, len(items))
		for i := range items {
			assert.True(t, items[i].Price.Equal(levels[i].Price))
			assert.True(t, items[i].Quantity.Equal(levels[i].Size))
		}
	}

	size, err := agg.Depth(Buy, d(90))
	require.NoError(t, err)
	assert.Equal(t, "1", size.String())

	size, err = agg.Depth(Buy, d(80))
	require.NoError(t, err)
	assert.True(t, size.IsZero(), "cancelled level is gone")

	_, err = agg.Depth(Side(0), d(1))
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestAggregatedBookSequence(t *testing.T) {
	agg := NewAggregatedBook()

	require.NoError(t, agg.Replay(&BookLog{SequenceID: 1, Type: LogTypeOpen, Side: Sell, Price: d(100), Size: d(2)}))

	// Duplicate is ignored.
	require.NoError(t, agg.Replay(&BookLog{SequenceID: 1, Type: LogTypeOpen, Side: Sell, Price: d(100), Size: d(2)}))
	size, _ := agg.Depth(Sell, d(100))
	assert.Equal(t, "2", size.String())

	err := agg.Replay(&BookLog{SequenceID: 3, Type: LogTypeOpen, Side: Sell, Price: d(101), Size: d(1)})
	assert.ErrorIs(t, err, ErrSequenceGap)
	assert.Equal(t, uint64(1), agg.SequenceID())

	require.NoError(t, agg.Replay(&BookLog{SequenceID: 2, Type: LogTypeReject}))
	assert.Equal(t, uint64(2), agg.SequenceID())
}

func TestAggregatedBookRebuild(t *testing.T) {
	book := createTestOrderBook(t)
	mustSubmit(t, book, "X", Buy, 90, 2)

	agg := NewAggregatedBook()
	require.NoError(t, agg.OnRebuild(book.createSnapshot()))
	assert.Equal(t, book.seqID, agg.SequenceID())

	size, err := agg.Depth(Buy, d(90))
	require.NoError(t, err)
	assert.Equal(t, "3", size.String())

	levels := agg.Levels(Sell, 2)
	require.Len(t, levels, 2)
	assert.Equal(t, "110", levels[0].Price.String())
	assert.Equal(t, "120", levels[1].Price.String())

	// Continue from the snapshot position.
	mustSubmit(t, book, "Y", Sell, 90, 3)
	logs := book.drainLogs()
	for _, log := range logs {
		require.NoError(t, agg.Replay(log))
	}
	size, err = agg.Depth(Buy, d(90))
	require.NoError(t, err)
	assert.True(t, size.IsZero())

	assert.ErrorIs(t, agg.OnRebuild(nil), ErrInvalidParam)
}
