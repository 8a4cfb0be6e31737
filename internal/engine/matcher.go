package engine

import (
	"context"
	"errors"

	. "matchbook/internal/common"
)

var ErrStopped = errors.New("matcher stopped")

// Matcher serialises access to an Engine. Every Place, Enqueue and Read is
// atomic with respect to the others: no caller ever observes a book halfway
// through processing an order.
type Matcher interface {
	// Place processes the order and returns the trades it produced.
	Place(ctx context.Context, order Order) ([]Trade, error)
	// Enqueue accepts the order for processing without waiting for it.
	Enqueue(ctx context.Context, order Order) error
	// Read runs fn with exclusive access to the book. fn must not retain the
	// book or mutate it.
	Read(ctx context.Context, fn func(*OrderBook)) error
}

var (
	_ Matcher = (*Sequencer)(nil)
	_ Matcher = (*LockedMatcher)(nil)
)
