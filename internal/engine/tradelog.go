package engine

import (
	. "matchbook/internal/common"

	"github.com/gammazero/deque"
)

// TradeLog is the append-only record of fills. With a non-zero capacity it
// behaves as a ring buffer over the most recent trades.
type TradeLog struct {
	capacity int
	trades   deque.Deque[Trade]
	total    uint64
}

func NewTradeLog(capacity int) *TradeLog {
	if capacity < 0 {
		capacity = 0
	}
	return &TradeLog{capacity: capacity}
}

func (l *TradeLog) Append(trades ...Trade) {
	for _, trade := range trades {
		l.trades.PushBack(trade)
		l.total++
		if l.capacity > 0 && l.trades.Len() > l.capacity {
			l.trades.PopFront()
		}
	}
}

// Snapshot copies the retained trades, oldest first.
func (l *TradeLog) Snapshot() []Trade {
	out := make([]Trade, l.trades.Len())
	for i := range out {
		out[i] = l.trades.At(i)
	}
	return out
}

// Len is the number of retained trades.
func (l *TradeLog) Len() int { return l.trades.Len() }

// Total is the number of trades ever appended.
func (l *TradeLog) Total() uint64 { return l.total }
