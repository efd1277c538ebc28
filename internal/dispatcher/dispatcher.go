// Package dispatcher manages worker fan-out over the outcome queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/queue"
	"github.com/JakeFAU/movie-frontier/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   queue.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(q queue.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		workers: workers,
	}
}

// NewPool creates a Dispatcher with n identical workers over q.
func NewPool(q queue.Queue, processor worker.Processor, n int, cfg worker.Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := make([]*worker.Worker, 0, n)
	for i := range n {
		workers = append(workers, worker.New(q, processor, cfg, logger.With(zap.Int("worker", i))))
	}
	return New(q, workers)
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item frontier.Item) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
