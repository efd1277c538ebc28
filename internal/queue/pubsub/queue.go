// Package pubsub implements the outcome queue on Google Cloud Pub/Sub. The
// crawl engine publishes JSON-encoded items to a topic; the frontier pulls
// them from a subscription and acks each one after it is applied.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
	"github.com/JakeFAU/movie-frontier/internal/queue"
)

// Config names the topic and subscription the queue uses.
type Config struct {
	ProjectID      string
	Topic          string
	Subscription   string
	MaxOutstanding int
}

// Queue publishes to a topic and receives from a subscription.
type Queue struct {
	client     *pubsub.Client
	ownsClient bool
	topic      *pubsub.Topic
	sub        *pubsub.Subscription
	logger     *zap.Logger

	deliveries chan *queue.Delivery
	closed     chan struct{}

	mu        sync.Mutex
	recv      *receiver
	closeOnce sync.Once
}

// receiver tracks one sub.Receive call. err is set before done closes.
type receiver struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a Pub/Sub client using Application Default Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	q, err := NewWithClient(ctx, client, cfg, logger)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (close client: %v)", err, closeErr)
		}
		return nil, err
	}
	q.ownsClient = true
	return q, nil
}

// NewWithClient builds a queue on an existing client after checking that the
// topic and subscription exist. The caller keeps ownership of client.
func NewWithClient(ctx context.Context, client *pubsub.Client, cfg Config, logger *zap.Logger) (*Queue, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	if cfg.Topic == "" || cfg.Subscription == "" {
		return nil, errors.New("topic and subscription are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	topic := client.Topic(cfg.Topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pubsub topic %q: %w", cfg.Topic, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %q does not exist", cfg.Topic)
	}
	sub := client.Subscription(cfg.Subscription)
	exists, err = sub.Exists(ctx)
	if err != nil {
		topic.Stop()
		return nil, fmt.Errorf("check pubsub subscription %q: %w", cfg.Subscription, err)
	}
	if !exists {
		topic.Stop()
		return nil, fmt.Errorf("pubsub subscription %q does not exist", cfg.Subscription)
	}
	if cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	}
	return &Queue{
		client:     client,
		topic:      topic,
		sub:        sub,
		logger:     logger,
		deliveries: make(chan *queue.Delivery),
		closed:     make(chan struct{}),
	}, nil
}

// Enqueue publishes item and waits for the server to accept it.
func (q *Queue) Enqueue(ctx context.Context, item frontier.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	res := q.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"capability": string(item.Capability)},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish item: %w", err)
	}
	return nil
}

// Dequeue starts the subscription receiver on first use and returns the next
// message. The message stays outstanding until the delivery is settled. When
// the receiver fails, Dequeue returns its error once and the following call
// starts a new one.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	recv, err := q.startReceiving()
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.closed:
		return nil, queue.ErrClosed
	case <-recv.done:
		select {
		case <-q.closed:
			return nil, queue.ErrClosed
		default:
		}
		if recv.err != nil {
			return nil, fmt.Errorf("receive: %w", recv.err)
		}
		return nil, errors.New("receive stopped")
	case d := <-q.deliveries:
		return d, nil
	}
}

// Close stops receiving, flushes pending publishes and, when the queue
// created the client, closes it.
func (q *Queue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.closed)
		q.mu.Lock()
		recv := q.recv
		q.mu.Unlock()
		if recv != nil {
			recv.cancel()
			<-recv.done
		}
		q.topic.Stop()
		if q.ownsClient {
			if closeErr := q.client.Close(); closeErr != nil {
				err = fmt.Errorf("close pubsub client: %w", closeErr)
			}
		}
	})
	return err
}

// startReceiving returns the running receiver, starting one if none is
// active. A receiver that stops with an error is discarded so the next call
// starts a fresh Receive.
func (q *Queue) startReceiving() (*receiver, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.closed:
		return nil, queue.ErrClosed
	default:
	}
	if q.recv != nil {
		return q.recv, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	recv := &receiver{cancel: cancel, done: make(chan struct{})}
	q.recv = recv
	go func() {
		err := q.sub.Receive(ctx, q.handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Error("pubsub receive stopped", zap.Error(err))
		}
		q.mu.Lock()
		recv.err = err
		if q.recv == recv {
			select {
			case <-q.closed:
			default:
				q.recv = nil
			}
		}
		q.mu.Unlock()
		cancel()
		close(recv.done)
	}()
	return recv, nil
}

func (q *Queue) handle(ctx context.Context, msg *pubsub.Message) {
	var item frontier.Item
	if err := json.Unmarshal(msg.Data, &item); err != nil {
		// Redelivering an undecodable message would loop forever.
		q.logger.Warn("dropping undecodable message", zap.String("message_id", msg.ID), zap.Error(err))
		msg.Ack()
		return
	}
	d := queue.NewDelivery(msg.ID, item, msg.Ack, msg.Nack)
	select {
	case q.deliveries <- d:
	case <-ctx.Done():
		msg.Nack()
	}
}
