package engine_test

import (
	"math/rand"
	"testing"

	. "matchbook/internal/common"
	"matchbook/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

func placeTestOrders(book *engine.OrderBook, price uint64, side Side, quantities ...uint64) []Trade {
	var trades []Trade
	for _, qty := range quantities {
		trades = append(trades, book.Process(Order{
			Side:     side,
			Price:    price,
			Quantity: qty,
		})...)
	}
	return trades
}

// buildExpectedLevel constructs the expected FlatPriceLevel to compare against.
func buildExpectedLevel(price uint64, side Side, quantities ...uint64) engine.FlatPriceLevel {
	orders := make([]Order, len(quantities))
	for i, qty := range quantities {
		orders[i] = Order{Side: side, Price: price, Quantity: qty}
	}
	return engine.FlatPriceLevel{
		Price:  price,
		Orders: orders,
	}
}

// setupLadder rests two bid and two ask levels without any crossing.
func setupLadder(t *testing.T) *engine.OrderBook {
	book := engine.NewOrderBook()

	// Bids: highest price first (99 -> 98).
	require.Empty(t, placeTestOrders(book, 99, Buy, 100, 90, 80))
	require.Empty(t, placeTestOrders(book, 98, Buy, 50))

	// Asks: lowest price first (100 -> 101).
	require.Empty(t, placeTestOrders(book, 100, Sell, 100, 90))
	require.Empty(t, placeTestOrders(book, 101, Sell, 20))

	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(100, Sell, 100, 90),
		buildExpectedLevel(101, Sell, 20),
	}, book.Asks(), "Asks should be sorted Low -> High")
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(99, Buy, 100, 90, 80),
		buildExpectedLevel(98, Buy, 50),
	}, book.Bids(), "Bids should be sorted High -> Low")
	return book
}

// --- Scenarios --------------------------------------------------------------

func TestProcess_SimpleMatch(t *testing.T) {
	book := engine.NewOrderBook()

	book.Process(Order{Side: Buy, Price: 100, Quantity: 1})
	trades := book.Process(Order{Side: Sell, Price: 100, Quantity: 1})

	assert.Equal(t, []Trade{{Price: 100, Quantity: 1}}, trades)
	assert.Equal(t, []Trade{{Price: 100, Quantity: 1}}, book.Trades())
	assert.Empty(t, book.Bids())
	assert.Empty(t, book.Asks())
}

func TestProcess_PartialMatch(t *testing.T) {
	book := engine.NewOrderBook()

	book.Process(Order{Side: Buy, Price: 100, Quantity: 2})
	book.Process(Order{Side: Sell, Price: 100, Quantity: 1})

	require.Len(t, book.Trades(), 1)
	assert.Equal(t, uint64(1), book.Trades()[0].Quantity)
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(100, Buy, 1)}, book.Bids())
	assert.Empty(t, book.Asks())
}

func TestProcess_NoMatch(t *testing.T) {
	book := engine.NewOrderBook()

	book.Process(Order{Side: Buy, Price: 100, Quantity: 1})
	book.Process(Order{Side: Sell, Price: 101, Quantity: 1})

	assert.Empty(t, book.Trades())
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(100, Buy, 1)}, book.Bids())
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(101, Sell, 1)}, book.Asks())
}

func TestProcess_MatchAcrossMultiplePriceLevels(t *testing.T) {
	book := engine.NewOrderBook()

	placeTestOrders(book, 101, Sell, 5)
	placeTestOrders(book, 102, Sell, 5)

	trades := book.Process(Order{Side: Buy, Price: 102, Quantity: 12})

	// Best price is exhausted before the next one is touched.
	assert.Equal(t, []Trade{{Price: 101, Quantity: 5}, {Price: 102, Quantity: 5}}, trades)
	assert.Equal(t, trades, book.Trades())
	assert.Empty(t, book.Asks())
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(102, Buy, 2)}, book.Bids())
}

func TestProcess_Limit(t *testing.T) {
	book := engine.NewOrderBook()

	assert.Empty(t, placeTestOrders(book, 99, Buy, 100, 90, 80))
	assert.Empty(t, placeTestOrders(book, 100, Sell, 100, 90, 80))

	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(100, Sell, 100, 90, 80),
	}, book.Asks())
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(99, Buy, 100, 90, 80),
	}, book.Bids())
}

func TestProcess_MultipleLevels_WithMatch(t *testing.T) {
	book := setupLadder(t)

	// 1. Complete match of the first resting ask.
	trades := placeTestOrders(book, 100, Buy, 100)
	assert.Equal(t, []Trade{{Price: 100, Quantity: 100}}, trades)
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(100, Sell, 90),
		buildExpectedLevel(101, Sell, 20),
	}, book.Asks())

	// 2. Partial match leaves the resting order at the front of its level.
	trades = placeTestOrders(book, 100, Buy, 20)
	assert.Equal(t, []Trade{{Price: 100, Quantity: 20}}, trades)
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(100, Sell, 70),
		buildExpectedLevel(101, Sell, 20),
	}, book.Asks())

	// Fully filled buys never rest.
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(99, Buy, 100, 90, 80),
		buildExpectedLevel(98, Buy, 50),
	}, book.Bids())
}

func TestProcess_MultipleLevels_WithMatchSweep_Bid(t *testing.T) {
	book := setupLadder(t)

	// 1. Sweep within one level.
	trades := placeTestOrders(book, 100, Buy, 120)
	assert.Equal(t, []Trade{{Price: 100, Quantity: 100}, {Price: 100, Quantity: 20}}, trades)
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(100, Sell, 70),
		buildExpectedLevel(101, Sell, 20),
	}, book.Asks())

	// 2. Multi-level sweep with a deep into the book order (100, 101).
	trades = placeTestOrders(book, 103, Buy, 80)
	assert.Equal(t, []Trade{{Price: 100, Quantity: 70}, {Price: 101, Quantity: 10}}, trades)
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(101, Sell, 10),
	}, book.Asks())
}

func TestProcess_MultipleLevels_WithMatchSweep_Ask(t *testing.T) {
	book := setupLadder(t)

	trades := placeTestOrders(book, 96, Sell, 310)
	assert.Equal(t, []Trade{
		{Price: 99, Quantity: 100},
		{Price: 99, Quantity: 90},
		{Price: 99, Quantity: 80},
		{Price: 98, Quantity: 40},
	}, trades)
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(98, Buy, 10),
	}, book.Bids())
	// Nothing left over to rest at 96.
	assert.Equal(t, []engine.FlatPriceLevel{
		buildExpectedLevel(100, Sell, 100, 90),
		buildExpectedLevel(101, Sell, 20),
	}, book.Asks())
}

func TestProcess_SweepThenRest_Sell(t *testing.T) {
	book := engine.NewOrderBook()
	placeTestOrders(book, 100, Buy, 3)
	placeTestOrders(book, 99, Buy, 3)

	trades := book.Process(Order{Side: Sell, Price: 99, Quantity: 10})

	assert.Equal(t, []Trade{{Price: 100, Quantity: 3}, {Price: 99, Quantity: 3}}, trades)
	assert.Empty(t, book.Bids())
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(99, Sell, 4)}, book.Asks())
}

func TestProcess_FIFOWithinLevel(t *testing.T) {
	book := engine.NewOrderBook()
	placeTestOrders(book, 100, Sell, 3, 4)

	trades := book.Process(Order{Side: Buy, Price: 100, Quantity: 5})

	// The first resting order is filled completely before the second gets anything.
	assert.Equal(t, []Trade{{Price: 100, Quantity: 3}, {Price: 100, Quantity: 2}}, trades)
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(100, Sell, 2)}, book.Asks())

	// A later arrival queues behind the partially filled order.
	placeTestOrders(book, 100, Sell, 6)
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(100, Sell, 2, 6)}, book.Asks())
}

func TestProcess_TradesAtMakerPrice(t *testing.T) {
	book := engine.NewOrderBook()

	placeTestOrders(book, 100, Sell, 5)
	trades := book.Process(Order{Side: Buy, Price: 105, Quantity: 5})
	assert.Equal(t, []Trade{{Price: 100, Quantity: 5}}, trades)

	placeTestOrders(book, 110, Buy, 5)
	trades = book.Process(Order{Side: Sell, Price: 100, Quantity: 5})
	assert.Equal(t, []Trade{{Price: 110, Quantity: 5}}, trades)

	assert.Empty(t, book.Bids())
	assert.Empty(t, book.Asks())
}

func TestProcess_ZeroQuantityIsDropped(t *testing.T) {
	book := engine.NewOrderBook()

	assert.Empty(t, book.Process(Order{Side: Buy, Price: 100, Quantity: 0}))
	assert.Empty(t, book.Bids())

	placeTestOrders(book, 100, Sell, 5)
	assert.Empty(t, book.Process(Order{Side: Buy, Price: 100, Quantity: 0}))
	assert.Empty(t, book.Process(Order{Side: Sell, Price: 100, Quantity: 0}))

	assert.Empty(t, book.Trades())
	assert.Empty(t, book.Bids())
	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(100, Sell, 5)}, book.Asks())
}

func TestProcess_TopOfBookAndDepth(t *testing.T) {
	book := setupLadder(t)

	bid, ok := book.BestBid()
	assert.True(t, ok)
	assert.Equal(t, uint64(99), bid)
	ask, ok := book.BestAsk()
	assert.True(t, ok)
	assert.Equal(t, uint64(100), ask)

	levels, orders, qty := book.Depth(Buy)
	assert.Equal(t, 2, levels)
	assert.Equal(t, 4, orders)
	assert.Equal(t, uint64(320), qty)

	levels, orders, qty = book.Depth(Sell)
	assert.Equal(t, 2, levels)
	assert.Equal(t, 3, orders)
	assert.Equal(t, uint64(210), qty)

	_, ok = engine.NewOrderBook().BestAsk()
	assert.False(t, ok)
}

func TestProcess_SnapshotsAreDetached(t *testing.T) {
	book := engine.NewOrderBook()
	placeTestOrders(book, 100, Sell, 5)

	asks := book.Asks()
	asks[0].Orders[0].Quantity = 1

	assert.Equal(t, []engine.FlatPriceLevel{buildExpectedLevel(100, Sell, 5)}, book.Asks())
}

func TestProcess_BoundedTradeLog(t *testing.T) {
	book := engine.NewOrderBook(engine.WithTradeLogCapacity(2))
	placeTestOrders(book, 100, Sell, 1, 2, 3)

	trades := book.Process(Order{Side: Buy, Price: 100, Quantity: 6})

	assert.Len(t, trades, 3)
	assert.Equal(t, []Trade{{Price: 100, Quantity: 2}, {Price: 100, Quantity: 3}}, book.Trades())
	assert.Equal(t, uint64(3), book.TradeCount())
}

// --- Properties -------------------------------------------------------------

func randomOrders(seed int64, n int) []Order {
	rng := rand.New(rand.NewSource(seed))
	orders := make([]Order, n)
	for i := range orders {
		side := Buy
		if rng.Intn(2) == 1 {
			side = Sell
		}
		orders[i] = Order{
			Side:     side,
			Price:    uint64(95 + rng.Intn(11)),
			Quantity: uint64(rng.Intn(20)),
		}
	}
	return orders
}

func checkLevels(t *testing.T, levels []engine.FlatPriceLevel, side Side, descending bool) {
	t.Helper()
	for i, level := range levels {
		require.NotEmpty(t, level.Orders, "empty level %d left on the book", level.Price)
		for _, order := range level.Orders {
			require.GreaterOrEqual(t, order.Quantity, uint64(1))
			require.Equal(t, level.Price, order.Price)
			require.Equal(t, side, order.Side)
		}
		if i == 0 {
			continue
		}
		if descending {
			require.Greater(t, levels[i-1].Price, level.Price)
		} else {
			require.Less(t, levels[i-1].Price, level.Price)
		}
	}
}

func TestProcess_Invariants(t *testing.T) {
	book := engine.NewOrderBook()

	for _, order := range randomOrders(42, 2000) {
		_, _, ownBefore := book.Depth(order.Side)
		_, _, counterBefore := book.Depth(order.Side.Opposite())

		trades := book.Process(order)

		_, _, ownAfter := book.Depth(order.Side)
		_, _, counterAfter := book.Depth(order.Side.Opposite())

		// Conservation: what was filled plus what rested is the original quantity,
		// and every fill came out of the counter side.
		var filled uint64
		for _, trade := range trades {
			filled += trade.Quantity
			require.Greater(t, trade.Quantity, uint64(0))
			if order.Side == Buy {
				require.LessOrEqual(t, trade.Price, order.Price)
			} else {
				require.GreaterOrEqual(t, trade.Price, order.Price)
			}
		}
		require.Equal(t, order.Quantity, filled+(ownAfter-ownBefore))
		require.Equal(t, filled, counterBefore-counterAfter)

		checkLevels(t, book.Bids(), Buy, true)
		checkLevels(t, book.Asks(), Sell, false)

		// The book is never left crossed.
		bid, bidOk := book.BestBid()
		ask, askOk := book.BestAsk()
		if bidOk && askOk {
			require.Less(t, bid, ask)
		}
	}
}

func TestProcess_ReplayIsDeterministic(t *testing.T) {
	orders := randomOrders(7, 1000)

	replay := func() *engine.OrderBook {
		book := engine.NewOrderBook()
		for _, order := range orders {
			book.Process(order)
		}
		return book
	}

	a, b := replay(), replay()
	assert.Equal(t, a.Trades(), b.Trades())
	assert.Equal(t, a.Bids(), b.Bids())
	assert.Equal(t, a.Asks(), b.Asks())
	assert.NotEmpty(t, a.Trades())
}
