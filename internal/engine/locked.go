package engine

import (
	"context"
	"sync"

	. "matchbook/internal/common"
)

// LockedMatcher lets any number of goroutines share an Engine by holding a
// mutex for the whole of each Process or Read call.
type LockedMatcher struct {
	mu     sync.Mutex
	engine *Engine
}

func NewLockedMatcher(engine *Engine) *LockedMatcher {
	return &LockedMatcher{engine: engine}
}

func (m *LockedMatcher) Place(ctx context.Context, order Order) ([]Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Process(ctx, order), nil
}

func (m *LockedMatcher) Enqueue(ctx context.Context, order Order) error {
	_, err := m.Place(ctx, order)
	return err
}

func (m *LockedMatcher) Read(ctx context.Context, fn func(*OrderBook)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.engine.Book())
	return nil
}
