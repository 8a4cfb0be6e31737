package engine

import (
	. "matchbook/internal/common"

	"github.com/gammazero/deque"
	"github.com/tidwall/btree"
)

type PriceLevel struct {
	priceLevel uint64
	orders     deque.Deque[*Order] // FIFO, earliest arrival at the front
}

type PriceLevels = btree.BTreeG[*PriceLevel]

type OrderBook struct {
	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd. Both trees are ordered best price first so
	// that Min is always top of book.
	bids *PriceLevels
	asks *PriceLevels

	trades *TradeLog
}

type Option func(*OrderBook)

// WithTradeLogCapacity bounds the trade log to the n most recent trades.
// Zero keeps every trade.
func WithTradeLogCapacity(n int) Option {
	return func(book *OrderBook) {
		book.trades = NewTradeLog(n)
	}
}

func NewOrderBook(opts ...Option) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.priceLevel > b.priceLevel
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.priceLevel < b.priceLevel
	})
	book := &OrderBook{
		bids:   bids,
		asks:   asks,
		trades: NewTradeLog(0),
	}
	for _, opt := range opts {
		opt(book)
	}
	return book
}

// Process matches an incoming limit order against the opposite side of the
// book and rests any remainder at the order's own limit price. The trades
// produced by this call are appended to the trade log and also returned, in
// the order the fills happened.
//
// Process is not safe for concurrent use. Callers must hold exclusive access
// to the book for the full duration of the call.
func (book *OrderBook) Process(order Order) []Trade {
	var trades []Trade
	switch order.Side {
	case Buy:
		trades = book.processBuy(&order)
	case Sell:
		trades = book.processSell(&order)
	}
	book.trades.Append(trades...)
	return trades
}

// processBuy consumes ask levels from the lowest price up while they are at or
// below the buy limit.
func (book *OrderBook) processBuy(order *Order) []Trade {
	return book.match(order, book.asks, book.bids, func(best uint64) bool {
		return best <= order.Price
	})
}

// processSell consumes bid levels from the highest price down while they are
// at or above the sell limit.
func (book *OrderBook) processSell(order *Order) []Trade {
	return book.match(order, book.bids, book.asks, func(best uint64) bool {
		return best >= order.Price
	})
}

// match sweeps the counter side in price-time priority until the order is
// exhausted or the best counter level no longer crosses. Any remaining
// quantity rests on the order's own side.
//
// A zero quantity order never enters the sweep and is not rested.
func (book *OrderBook) match(order *Order, counter, own *PriceLevels, crosses func(best uint64) bool) []Trade {
	var trades []Trade
	for order.Quantity > 0 {
		// Min accounts for bids and asks being in inverse order, based on their
		// comparison method.
		level, ok := counter.MinMut()
		if !ok || !crosses(level.priceLevel) {
			break
		}

		for order.Quantity > 0 && level.orders.Len() > 0 {
			resting := level.orders.Front()
			matchQty := min(order.Quantity, resting.Quantity)
			order.Quantity -= matchQty
			resting.Quantity -= matchQty

			trades = append(trades, Trade{
				Price:    resting.Price,
				Quantity: matchQty,
			})

			if resting.Quantity == 0 {
				level.orders.PopFront()
			}
		}

		// Prune the level so the next iteration sees the true next best price.
		if level.orders.Len() == 0 {
			counter.Delete(level)
		}
	}

	if order.Quantity > 0 {
		book.rest(own, *order)
	}
	return trades
}

// rest appends the order to the back of its price level, creating the level
// when absent.
func (book *OrderBook) rest(levels *PriceLevels, order Order) {
	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := levels.GetMut(&PriceLevel{priceLevel: order.Price})
	if !ok {
		level = &PriceLevel{priceLevel: order.Price}
		levels.Set(level)
	}
	level.orders.PushBack(&order)
}
