package broker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skillsenselab/meshkit/logger"
)

func TestMemoryBroker_PublishBeforeConnect(t *testing.T) {
	b := NewMemoryBroker(logger.Nop())
	err := b.Publish(context.Background(), "events", []byte("x"))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestMemoryBroker_DeliversToSubscribers(t *testing.T) {
	b := NewMemoryBroker(logger.Nop())
	ctx := context.Background()
	b.Connect(ctx)

	var mu sync.Mutex
	var got [][]byte
	b.Subscribe(ctx, "events", func(_ context.Context, msg []byte) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	})

	if err := b.Publish(ctx, "events", []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || string(got[0]) != "hello" {
		t.Errorf("got %v, want [hello]", got)
	}
}

func TestMemoryBroker_DropsWhenNoSubscriber(t *testing.T) {
	b := NewMemoryBroker(logger.Nop())
	ctx := context.Background()
	b.Connect(ctx)

	// Best-effort contract: publishing into the void succeeds.
	if err := b.Publish(ctx, "nowhere", []byte("x")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func TestMemoryBroker_HandlerErrorDoesNotFailPublish(t *testing.T) {
	b := NewMemoryBroker(logger.Nop())
	ctx := context.Background()
	b.Connect(ctx)
	b.Subscribe(ctx, "events", func(context.Context, []byte) error {
		return errors.New("handler boom")
	})

	if err := b.Publish(ctx, "events", []byte("x")); err != nil {
		t.Errorf("at-most-once delivery must not surface handler errors, got %v", err)
	}
}

func TestMemoryBroker_Close(t *testing.T) {
	b := NewMemoryBroker(logger.Nop())
	ctx := context.Background()
	b.Connect(ctx)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Publish(ctx, "events", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if err := b.Connect(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on reconnect after Close, got %v", err)
	}
}

func TestKafkaConfig_Defaults(t *testing.T) {
	cfg := KafkaConfig{}
	cfg.ApplyDefaults()
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestNewKafkaBroker_NotConnectedOperations(t *testing.T) {
	b, err := NewKafkaBroker(KafkaConfig{Brokers: []string{"localhost:9092"}}, logger.Nop())
	if err != nil {
		t.Fatalf("NewKafkaBroker failed: %v", err)
	}

	if err := b.Publish(context.Background(), "events", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := b.Subscribe(context.Background(), "events", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on unconnected broker should succeed, got %v", err)
	}
}
