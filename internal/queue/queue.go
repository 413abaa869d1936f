// Package queue provides the bounded FIFO signal queue between discovery
// producers and the dispatcher. Multi-producer, single-consumer.
package queue

import (
	"context"
	"errors"
	"sync"

	"solana-snipe/internal/domain"
)

// ErrClosed is returned when the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

// SignalQueue is a bounded FIFO of trade signals. Enqueue blocks while the
// queue is full rather than dropping signals; Dequeue blocks while empty.
// FIFO order is preserved per producer; no cross-producer ordering is
// guaranteed.
type SignalQueue struct {
	ch chan domain.TradeSignal

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a signal queue with the given capacity.
func New(capacity int) *SignalQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &SignalQueue{
		ch:     make(chan domain.TradeSignal, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue adds a signal, blocking while the queue is full. Returns
// ctx.Err() if the context is cancelled first, or ErrClosed if the queue
// was closed. An Enqueue that starts before Close may still be accepted
// while Close runs; every accepted signal is delivered by the post-close
// drain, so nothing is lost either way. Only an Enqueue that starts after
// Close returns is guaranteed ErrClosed.
func (q *SignalQueue) Enqueue(ctx context.Context, sig domain.TradeSignal) error {
	// Closed check first so a full queue cannot mask shutdown.
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- sig:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest signal, blocking while the queue is empty.
// After Close, remaining signals are still delivered; ErrClosed is returned
// once the queue is drained.
func (q *SignalQueue) Dequeue(ctx context.Context) (domain.TradeSignal, error) {
	select {
	case sig := <-q.ch:
		return sig, nil
	default:
	}

	select {
	case sig := <-q.ch:
		return sig, nil
	case <-q.closed:
		// Drain whatever was enqueued before the close.
		select {
		case sig := <-q.ch:
			return sig, nil
		default:
			return domain.TradeSignal{}, ErrClosed
		}
	case <-ctx.Done():
		return domain.TradeSignal{}, ctx.Err()
	}
}

// Close stops accepting new signals. Safe to call more than once; blocked
// producers are released with ErrClosed.
func (q *SignalQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Len returns the number of queued signals.
func (q *SignalQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *SignalQueue) Cap() int {
	return cap(q.ch)
}
