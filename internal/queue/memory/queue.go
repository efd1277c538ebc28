// Package memory provides an in-process outcome queue for local development
// and single-binary runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/queue"
)

// Queue is a bounded in-memory queue with context-aware operations. Nacked
// items are redelivered ahead of new ones.
type Queue struct {
	ch    chan frontier.Item
	nudge chan struct{}
	done  chan struct{}

	mu        sync.Mutex
	redeliver []frontier.Item
	closed    bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:    make(chan frontier.Item, capacity),
		nudge: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item frontier.Item) error {
	select {
	case <-q.done:
		return queue.ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return queue.ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dequeue canceled: %w", err)
		}
		if item, ok := q.popRedelivery(); ok {
			return q.delivery(item), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.done:
			return nil, queue.ErrClosed
		case item := <-q.ch:
			return q.delivery(item), nil
		case <-q.nudge:
		}
	}
}

// Len reports how many items are waiting, including redeliveries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch) + len(q.redeliver)
}

// Close stops the queue. Waiting and future calls return queue.ErrClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.done)
	q.closed = true
	return nil
}

func (q *Queue) delivery(item frontier.Item) *queue.Delivery {
	return queue.NewDelivery(uuid.NewString(), item, nil, func() { q.requeue(item) })
}

func (q *Queue) requeue(item frontier.Item) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.redeliver = append(q.redeliver, item)
	q.mu.Unlock()
	select {
	case q.nudge <- struct{}{}:
	default:
	}
}

func (q *Queue) popRedelivery() (frontier.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.redeliver) == 0 {
		return frontier.Item{}, false
	}
	item := q.redeliver[0]
	q.redeliver = q.redeliver[1:]
	return item, true
}
