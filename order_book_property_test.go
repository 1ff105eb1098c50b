package match

import (
	"fmt"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Generated command streams against the book. Every step is followed by the
// full structural check; the assertions below cover what that check cannot see.

type orderTrack struct {
	side      Side
	price     decimal.Decimal
	original  decimal.Decimal
	matched   decimal.Decimal
	cancelled decimal.Decimal
	sequence  int
}

func TestProperty_BookStaysConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		book := NewOrderBook(2)
		tracks := make(map[uint64]*orderTrack)
		var resting []uint64

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(resting) > 0 && rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("op-%d", i)) == 0 {
				idx := rapid.IntRange(0, len(resting)-1).Draw(t, fmt.Sprintf("cancel-%d", i))
				id := resting[idx]

				order, err := book.cancelOrder(id)
				if err != nil {
					t.Fatalf("cancel %d: %v", id, err)
				}
				tracks[id].cancelled = order.RemainingQuantity

				if _, err := book.cancelOrder(id); err == nil {
					t.Fatalf("second cancel of %d succeeded", id)
				}
			} else {
				side := Buy
				if rapid.Bool().Draw(t, fmt.Sprintf("sell-%d", i)) {
					side = Sell
				}
				price := decimal.NewFromInt(rapid.Int64Range(95, 105).Draw(t, fmt.Sprintf("price-%d", i)))
				qty := decimal.NewFromInt(rapid.Int64Range(1, 20).Draw(t, fmt.Sprintf("qty-%d", i)))

				bestBid, hasBid := book.bestBidPrice()
				bestAsk, hasAsk := book.bestAskPrice()

				result, err := book.submitLimitOrder("trader", side, price, qty)
				if err != nil {
					t.Fatalf("submit: %v", err)
				}
				tracks[result.OrderID] = &orderTrack{side: side, price: price, original: qty, matched: decimal.Zero, cancelled: decimal.Zero, sequence: i}

				checkTrades(t, side, price, result, tracks, bestBid, hasBid, bestAsk, hasAsk)

				taker := tracks[result.OrderID]
				if !taker.original.Equal(result.RemainingQuantity.Add(taker.matched)) {
					t.Fatalf("taker %d volume not conserved", result.OrderID)
				}
			}

			if err := book.checkInvariants(true); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}

			resting = resting[:0]
			for id := range book.registry.entries {
				resting = append(resting, id)
			}
			// Map order is random; keep draws reproducible.
			slices.Sort(resting)
		}

		// Volume conservation: original = remaining + matched + cancelled.
		for id, track := range tracks {
			remaining := decimal.Zero
			if order, err := book.order(id); err == nil {
				remaining = order.RemainingQuantity
			}
			sum := remaining.Add(track.matched).Add(track.cancelled)
			if !sum.Equal(track.original) {
				t.Fatalf("order %d: remaining %s + matched %s + cancelled %s != original %s",
					id, remaining, track.matched, track.cancelled, track.original)
			}
		}
	})
}

func checkTrades(t *rapid.T, side Side, limit decimal.Decimal, result *SubmitResult, tracks map[uint64]*orderTrack,
	bestBid decimal.Decimal, hasBid bool, bestAsk decimal.Decimal, hasAsk bool) {
	var prev *Trade
	for i := range result.Trades {
		trade := &result.Trades[i]
		maker := tracks[trade.MakerOrderID]

		if !trade.Quantity.IsPositive() {
			t.Fatalf("trade %d has non-positive quantity", trade.Sequence)
		}
		if !trade.Price.Equal(maker.price) {
			t.Fatalf("trade %d price %s, maker price %s", trade.Sequence, trade.Price, maker.price)
		}
		if side == Buy && trade.Price.GreaterThan(limit) || side == Sell && trade.Price.LessThan(limit) {
			t.Fatalf("trade %d price %s through limit %s", trade.Sequence, trade.Price, limit)
		}

		// The first trade is always at the pre-submit best opposite price.
		if i == 0 {
			if side == Buy && (!hasAsk || !trade.Price.Equal(bestAsk)) {
				t.Fatalf("first trade %s not at best ask", trade.Price)
			}
			if side == Sell && (!hasBid || !trade.Price.Equal(bestBid)) {
				t.Fatalf("first trade %s not at best bid", trade.Price)
			}
		}

		if prev != nil {
			prevMaker := tracks[prev.MakerOrderID]
			// Price priority, then time priority at equal price.
			worse := side == Buy && trade.Price.LessThan(prev.Price) || side == Sell && trade.Price.GreaterThan(prev.Price)
			if worse {
				t.Fatalf("trade %d at %s after better-for-maker price %s", trade.Sequence, trade.Price, prev.Price)
			}
			if trade.Price.Equal(prev.Price) && maker.sequence < prevMaker.sequence {
				t.Fatalf("maker %d matched after later maker %d at %s", trade.MakerOrderID, prev.MakerOrderID, trade.Price)
			}
			if trade.Sequence != prev.Sequence+1 {
				t.Fatalf("trade sequence %d after %d", trade.Sequence, prev.Sequence)
			}
		}

		maker.matched = maker.matched.Add(trade.Quantity)
		tracks[result.OrderID].matched = tracks[result.OrderID].matched.Add(trade.Quantity)
		prev = trade
	}
}
