package engine

import (
	"context"

	. "matchbook/internal/common"

	"github.com/rs/zerolog/log"
)

// TradeReporter receives the fills produced by one incoming order. Reporters
// are called after the book has been mutated and cannot undo a match.
type TradeReporter interface {
	ReportTrades(ctx context.Context, taker Order, trades []Trade) error
}

// Engine owns a single order book and fans out its trades to reporters.
type Engine struct {
	book      *OrderBook
	reporters []TradeReporter
}

func New(book *OrderBook, reporters ...TradeReporter) *Engine {
	if book == nil {
		book = NewOrderBook()
	}
	return &Engine{
		book:      book,
		reporters: reporters,
	}
}

func (engine *Engine) AddReporter(reporter TradeReporter) {
	engine.reporters = append(engine.reporters, reporter)
}

func (engine *Engine) Book() *OrderBook {
	return engine.book
}

// Process runs one order through the book and reports the resulting trades.
// Reporter failures are logged and otherwise ignored.
func (engine *Engine) Process(ctx context.Context, order Order) []Trade {
	trades := engine.book.Process(order)

	log.Debug().
		Str("side", order.Side.String()).
		Uint64("price", order.Price).
		Uint64("quantity", order.Quantity).
		Int("fills", len(trades)).
		Msg("order processed")

	if len(trades) == 0 {
		return trades
	}
	for _, reporter := range engine.reporters {
		if err := reporter.ReportTrades(ctx, order, trades); err != nil {
			log.Error().Err(err).Int("fills", len(trades)).Msg("unable to report trades")
		}
	}
	return trades
}

// LogReporter writes one structured log event per trade.
type LogReporter struct{}

func (LogReporter) ReportTrades(_ context.Context, taker Order, trades []Trade) error {
	for _, trade := range trades {
		log.Info().
			Str("taker", taker.Side.String()).
			Uint64("price", trade.Price).
			Uint64("quantity", trade.Quantity).
			Msg("trade")
	}
	return nil
}
