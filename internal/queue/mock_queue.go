package queue

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// MockQueue is a mock implementation of the Queue interface for testing.
type MockQueue struct {
	mock.Mock
}

// Enqueue is the mock implementation of the Enqueue method.
func (m *MockQueue) Enqueue(ctx context.Context, item frontier.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// Dequeue is the mock implementation of the Dequeue method.
func (m *MockQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).(*Delivery)
	return d, args.Error(1)
}

// Close is the mock implementation of the Close method.
func (m *MockQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}
