package match

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func BenchmarkSubmitLimitOrder(b *testing.B) {
	book := NewOrderBook(DefaultArenaCapacity)

	// Use fixed seed for repeatability
	rng := rand.New(rand.NewSource(42))
	midPrice := int64(10000)

	// Pre-compute decimal prices to reduce allocations in hot loop
	priceCache := make([]decimal.Decimal, 1001)
	for i := int64(0); i <= 1000; i++ {
		priceCache[i] = decimal.NewFromInt(midPrice - 500 + i) // prices from 9500 to 10500
	}
	sizeOne := decimal.NewFromInt(1)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		side := Buy
		// Buyers quote 9500..10010, sellers 9990..10500: a narrow band crosses.
		priceIdx := rng.Intn(511)
		if i%2 == 1 {
			side = Sell
			priceIdx += 490
		}

		_, _ = book.submitLimitOrder("bench", side, priceCache[priceIdx], sizeOne)

		for _, log := range book.drainLogs() {
			releaseBookLog(log)
		}
	}

	b.StopTimer()
	stats := book.stats()
	b.Logf("bids: %d orders / %d levels, asks: %d orders / %d levels, trades: %d",
		stats.BidOrderCount, stats.BidDepthCount, stats.AskOrderCount, stats.AskDepthCount, stats.LastTradeID)
}

func BenchmarkCancelOrder(b *testing.B) {
	book := NewOrderBook(DefaultArenaCapacity)
	rng := rand.New(rand.NewSource(42))

	ids := make([]uint64, 0, b.N)
	for i := 0; i < b.N; i++ {
		price := decimal.NewFromInt(int64(1000 + rng.Intn(100)))
		res, _ := book.submitLimitOrder("bench", Buy, price, decimal.NewFromInt(1))
		ids = append(ids, res.OrderID)
	}
	for _, log := range book.drainLogs() {
		releaseBookLog(log)
	}
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	b.ReportAllocs()
	b.ResetTimer()

	for _, id := range ids {
		_, _ = book.cancelOrder(id)
		for _, log := range book.drainLogs() {
			releaseBookLog(log)
		}
	}
}

func BenchmarkCheckInvariantsStrict(b *testing.B) {
	book := NewOrderBook(DefaultArenaCapacity)
	for i := int64(0); i < 10000; i++ {
		_, _ = book.submitLimitOrder("bench", Buy, decimal.NewFromInt(1000+i%200), decimal.NewFromInt(1))
		_, _ = book.submitLimitOrder("bench", Sell, decimal.NewFromInt(2000+i%200), decimal.NewFromInt(1))
	}
	book.drainLogs()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := book.checkInvariants(true); err != nil {
			b.Fatal(err)
		}
	}
}
