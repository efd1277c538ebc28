// Package worker implements the outcome processing loop: dequeue an item,
// run it through the pipeline and settle the delivery.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/pipeline"
	"github.com/JakeFAU/movie-frontier/internal/queue"
)

// Processor applies one item. *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, item frontier.Item) (pipeline.Result, error)
}

// Config controls Worker behavior.
type Config struct {
	// ItemTimeout bounds one Process call; zero means no limit.
	ItemTimeout time.Duration
	// RetryDelay is the pause after a failed dequeue or a nacked item.
	RetryDelay time.Duration
}

// Worker consumes queue items and executes the pipeline.
type Worker struct {
	queue     queue.Queue
	processor Processor
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(q queue.Queue, processor Processor, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Worker{
		queue:     q,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.RetryDelay):
			}
			continue
		}
		if !w.handle(ctx, d) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.RetryDelay):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// handle processes one delivery and reports whether it was acked.
func (w *Worker) handle(ctx context.Context, d *queue.Delivery) bool {
	itemCtx := ctx
	if w.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, w.cfg.ItemTimeout)
		defer cancel()
	}
	logger := w.logger.With(
		zap.String("delivery_id", d.ID),
		zap.String("capability", string(d.Item.Capability)),
	)

	res, err := w.processor.Process(itemCtx, d.Item)
	if err != nil {
		// The item is redelivered; its subject was left uncrawled.
		logger.Error("process item failed", zap.Error(err))
		d.Nack()
		return false
	}
	switch res.Disposition {
	case pipeline.Dropped:
		logger.Warn("item dropped", zap.String("reason", res.Reason))
	case pipeline.PassThrough:
		logger.Debug("item passed through")
	default:
		logger.Debug("item processed", zap.Int("discovered", res.Discovered))
	}
	d.Ack()
	return true
}
