package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/skillsenselab/meshkit/logger"
)

// KafkaConfig configures the Kafka broker adapter.
type KafkaConfig struct {
	// Brokers is the list of bootstrap broker addresses (host:port).
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	// GroupID is the consumer group for subscriptions.
	GroupID string `yaml:"group_id" mapstructure:"group_id"`
	// DialTimeout bounds the connectivity check in Connect.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// BatchTimeout is the producer's max batching delay.
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *KafkaConfig) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
}

// Validate checks that the configuration is valid.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("broker.brokers is required")
	}
	return nil
}

// KafkaBroker adapts kafka-go to the Broker contract. Queues map to
// topics; subscriptions read through a consumer group so redeliveries
// after crashes stay within Kafka's own semantics.
type KafkaBroker struct {
	cfg KafkaConfig
	log *logger.Logger

	mu        sync.Mutex
	writer    *kafkago.Writer
	readers   []*kafkago.Reader
	cancelFns []context.CancelFunc
	wg        sync.WaitGroup
	connected bool
	closed    bool
}

var _ Broker = (*KafkaBroker)(nil)

// NewKafkaBroker creates a Kafka-backed broker.
func NewKafkaBroker(cfg KafkaConfig, log *logger.Logger) (*KafkaBroker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka broker config: %w", err)
	}
	return &KafkaBroker{
		cfg: cfg,
		log: log.WithComponent("broker.kafka"),
	}, nil
}

// Connect verifies broker connectivity and initializes the shared writer.
func (b *KafkaBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.connected {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.DialTimeout)
	defer cancel()

	conn, err := kafkago.DialContext(dialCtx, "tcp", b.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial %s: %w", b.cfg.Brokers[0], err)
	}
	_ = conn.Close()

	b.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(b.cfg.Brokers...),
		Balancer:               &kafkago.LeastBytes{},
		BatchTimeout:           b.cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
	b.connected = true

	b.log.Info("connected", logger.Fields("brokers", b.cfg.Brokers))
	return nil
}

// Publish sends a message to the named queue (topic).
func (b *KafkaBroker) Publish(ctx context.Context, queue string, message []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if !b.connected {
		b.mu.Unlock()
		return ErrNotConnected
	}
	w := b.writer
	b.mu.Unlock()

	if err := w.WriteMessages(ctx, kafkago.Message{
		Topic: queue,
		Value: message,
	}); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", queue, err)
	}
	return nil
}

// Subscribe starts a background consume loop for the named queue.
func (b *KafkaBroker) Subscribe(ctx context.Context, queue string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.connected {
		return ErrNotConnected
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       queue,
		GroupID:     b.cfg.GroupID,
		StartOffset: kafkago.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	b.readers = append(b.readers, reader)

	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancelFns = append(b.cancelFns, cancel)

	b.wg.Add(1)
	go b.consume(loopCtx, reader, queue, handler)

	b.log.Info("subscribed", logger.Fields("queue", queue, "group_id", b.cfg.GroupID))
	return nil
}

// Close stops all subscriptions and releases the writer.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.connected = false
	for _, cancel := range b.cancelFns {
		cancel()
	}
	writer := b.writer
	readers := b.readers
	b.mu.Unlock()

	b.wg.Wait()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("kafka broker close: %v", errs)
	}
	return nil
}

// consume reads messages until the subscription is cancelled. Handler
// errors are logged and the loop moves on: delivery is at-most-once.
func (b *KafkaBroker) consume(ctx context.Context, reader *kafkago.Reader, queue string, handler Handler) {
	defer b.wg.Done()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("read failed", logger.ErrorFields(queue, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(ctx, msg.Value); err != nil {
			b.log.Error("handler failed", logger.ErrorFields(queue, err))
		}
	}
}
