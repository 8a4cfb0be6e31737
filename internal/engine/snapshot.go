package engine

import (
	. "matchbook/internal/common"
)

// FlatPriceLevel is a detached copy of a price level, safe to hand out of the
// book's owning goroutine.
type FlatPriceLevel struct {
	Price  uint64  `json:"price"`
	Orders []Order `json:"orders"`
}

// FlattenLevels copies levels in the order given.
func FlattenLevels(levels []*PriceLevel) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, len(levels))
	for _, level := range levels {
		orders := make([]Order, level.orders.Len())
		for i := range orders {
			orders[i] = *level.orders.At(i)
		}
		flat = append(flat, FlatPriceLevel{
			Price:  level.priceLevel,
			Orders: orders,
		})
	}
	return flat
}

// Bids returns the resting buy levels, highest price first.
func (book *OrderBook) Bids() []FlatPriceLevel {
	return FlattenLevels(book.bids.Items())
}

// Asks returns the resting sell levels, lowest price first.
func (book *OrderBook) Asks() []FlatPriceLevel {
	return FlattenLevels(book.asks.Items())
}

func (book *OrderBook) BestBid() (uint64, bool) {
	return best(book.bids)
}

func (book *OrderBook) BestAsk() (uint64, bool) {
	return best(book.asks)
}

func best(levels *PriceLevels) (uint64, bool) {
	level, ok := levels.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

// Depth reports the number of levels, resting orders and resting quantity on
// one side of the book.
func (book *OrderBook) Depth(side Side) (levels, orders int, quantity uint64) {
	tree := book.bids
	if side == Sell {
		tree = book.asks
	}
	tree.Scan(func(level *PriceLevel) bool {
		levels++
		orders += level.orders.Len()
		for i := 0; i < level.orders.Len(); i++ {
			quantity += level.orders.At(i).Quantity
		}
		return true
	})
	return levels, orders, quantity
}

// Trades returns a copy of the trade log, oldest first.
func (book *OrderBook) Trades() []Trade {
	return book.trades.Snapshot()
}

// TradeCount is the number of trades ever recorded, including any evicted
// from a bounded log.
func (book *OrderBook) TradeCount() uint64 {
	return book.trades.Total()
}
