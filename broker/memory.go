package broker

import (
	"context"
	"sync"

	"github.com/skillsenselab/meshkit/logger"
)

// MemoryBroker is an in-process Broker for tests and local development.
// Messages are delivered synchronously to subscribers present at publish
// time; queues with no subscriber drop messages, matching the contract's
// at-most-once, best-effort semantics.
type MemoryBroker struct {
	log *logger.Logger

	mu          sync.RWMutex
	subscribers map[string][]Handler
	connected   bool
	closed      bool
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker creates an in-memory broker.
func NewMemoryBroker(log *logger.Logger) *MemoryBroker {
	return &MemoryBroker{
		log:         log.WithComponent("broker.memory"),
		subscribers: make(map[string][]Handler),
	}
}

// Connect marks the broker connected.
func (b *MemoryBroker) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.connected = true
	return nil
}

// Publish delivers the message to every current subscriber of the queue.
func (b *MemoryBroker) Publish(ctx context.Context, queue string, message []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	if !b.connected {
		b.mu.RUnlock()
		return ErrNotConnected
	}
	handlers := make([]Handler, len(b.subscribers[queue]))
	copy(handlers, b.subscribers[queue])
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, message); err != nil {
			b.log.Error("handler failed", logger.ErrorFields(queue, err))
		}
	}
	return nil
}

// Subscribe registers a handler for the queue.
func (b *MemoryBroker) Subscribe(_ context.Context, queue string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if !b.connected {
		return ErrNotConnected
	}
	b.subscribers[queue] = append(b.subscribers[queue], handler)
	return nil
}

// Close drops all subscriptions.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.connected = false
	b.subscribers = make(map[string][]Handler)
	return nil
}
