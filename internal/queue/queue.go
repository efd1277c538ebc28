// Package queue defines the outcome queue that feeds the pipeline workers.
// Producers (the crawl engine, the HTTP API, the seed command) enqueue
// frontier items; workers dequeue them and settle each delivery with Ack or
// Nack. Implementations live in the memory and pubsub subpackages.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// ErrClosed is returned by Dequeue once the queue has shut down.
var ErrClosed = errors.New("queue closed")

// Queue moves frontier items from producers to workers.
type Queue interface {
	// Enqueue hands an item to the queue, blocking while it is full.
	Enqueue(ctx context.Context, item frontier.Item) error
	// Dequeue blocks until an item is available, the context ends or the
	// queue closes.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Close releases the queue's resources.
	Close() error
}

// Delivery is one dequeued item. Exactly one of Ack or Nack takes effect;
// later calls are ignored.
type Delivery struct {
	ID   string
	Item frontier.Item

	once sync.Once
	ack  func()
	nack func()
}

// NewDelivery wraps item with the implementation's settlement callbacks.
func NewDelivery(id string, item frontier.Item, ack, nack func()) *Delivery {
	return &Delivery{ID: id, Item: item, ack: ack, nack: nack}
}

// Ack marks the item as handled.
func (d *Delivery) Ack() {
	d.once.Do(func() {
		if d.ack != nil {
			d.ack()
		}
	})
}

// Nack asks for the item to be redelivered.
func (d *Delivery) Nack() {
	d.once.Do(func() {
		if d.nack != nil {
			d.nack()
		}
	})
}
