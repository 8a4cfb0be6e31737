package engine

import (
	"context"
	"sync"

	. "matchbook/internal/common"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const DefaultQueueSize = 1024

// request is one unit of work for the sequencer. Exactly one of order and
// read is set. reply, when present, is buffered so the sequencer never blocks
// on a caller that has gone away.
type request struct {
	ctx   context.Context
	order *Order
	read  func(*OrderBook)
	reply chan []Trade
}

// Sequencer confines an Engine to a single goroutine fed by a bounded queue.
// Orders are processed strictly in the order they were queued.
type Sequencer struct {
	engine   *Engine
	requests chan request
	stopping chan struct{}
	stopped  chan struct{}

	// Held for reading across a send and for writing when closing, so no
	// request can be queued after the final drain.
	mu     sync.RWMutex
	closed bool
}

// NewSequencer starts the processing goroutine under t. It stops when t
// starts dying, after processing everything already queued.
func NewSequencer(t *tomb.Tomb, engine *Engine, queueSize int) *Sequencer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Sequencer{
		engine:   engine,
		requests: make(chan request, queueSize),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	t.Go(func() error {
		return s.run(t)
	})
	return s
}

func (s *Sequencer) run(t *tomb.Tomb) error {
	defer close(s.stopped)
	log.Info().Int("queue_size", cap(s.requests)).Msg("sequencer running")

	for {
		select {
		case <-t.Dying():
			// Release senders blocked on a full queue, then wait out any send
			// in flight before draining.
			close(s.stopping)
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()

			n := s.drain()
			log.Info().Int("drained", n).Msg("sequencer stopped")
			return nil
		case req := <-s.requests:
			s.handle(req)
		}
	}
}

// drain handles whatever is already sitting in the queue.
func (s *Sequencer) drain() int {
	n := 0
	for {
		select {
		case req := <-s.requests:
			s.handle(req)
			n++
		default:
			return n
		}
	}
}

func (s *Sequencer) handle(req request) {
	if req.read != nil {
		req.read(s.engine.Book())
		if req.reply != nil {
			req.reply <- nil
		}
		return
	}

	// Processing outlives the submitting request; an accepted order is always
	// matched.
	trades := s.engine.Process(context.WithoutCancel(req.ctx), *req.order)
	if req.reply != nil {
		req.reply <- trades
	}
}

func (s *Sequencer) submit(ctx context.Context, req request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStopped
	}

	select {
	case s.requests <- req:
		return nil
	case <-s.stopping:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait blocks for the reply to a queued request. A request queued before the
// sequencer stopped is still answered, so the reply is checked once more
// after stopped fires.
func (s *Sequencer) wait(ctx context.Context, reply chan []Trade) ([]Trade, error) {
	select {
	case trades := <-reply:
		return trades, nil
	case <-s.stopped:
		select {
		case trades := <-reply:
			return trades, nil
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Place queues the order and waits for its trades. If ctx ends after the
// order was queued, the order is still processed.
func (s *Sequencer) Place(ctx context.Context, order Order) ([]Trade, error) {
	reply := make(chan []Trade, 1)
	if err := s.submit(ctx, request{ctx: ctx, order: &order, reply: reply}); err != nil {
		return nil, err
	}
	return s.wait(ctx, reply)
}

func (s *Sequencer) Enqueue(ctx context.Context, order Order) error {
	return s.submit(ctx, request{ctx: ctx, order: &order})
}

func (s *Sequencer) Read(ctx context.Context, fn func(*OrderBook)) error {
	reply := make(chan []Trade, 1)
	if err := s.submit(ctx, request{ctx: ctx, read: fn, reply: reply}); err != nil {
		return err
	}
	_, err := s.wait(ctx, reply)
	return err
}

// Stopped is closed once the processing goroutine has exited.
func (s *Sequencer) Stopped() <-chan struct{} {
	return s.stopped
}
