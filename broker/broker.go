package broker

import (
	"context"
	"errors"
)

// Common broker errors.
var (
	// ErrClosed is returned by operations on a closed broker.
	ErrClosed = errors.New("broker is closed")
	// ErrNotConnected is returned when publishing before Connect.
	ErrNotConnected = errors.New("broker is not connected")
)

// Handler processes a message delivered to a subscription. A non-nil
// error is logged by the broker; the message is not redelivered.
type Handler func(ctx context.Context, message []byte) error

// Broker is the message-broker collaborator contract. Implementations
// provide at-most-once, best-effort delivery with no ordering guarantee.
type Broker interface {
	// Connect establishes connectivity to the broker backend.
	Connect(ctx context.Context) error

	// Publish sends a message to the named queue.
	Publish(ctx context.Context, queue string, message []byte) error

	// Subscribe registers a handler for the named queue. The
	// subscription lives until Close.
	Subscribe(ctx context.Context, queue string, handler Handler) error

	// Close releases all broker resources and stops subscriptions.
	Close() error
}
