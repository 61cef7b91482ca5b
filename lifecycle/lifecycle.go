package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillsenselab/meshkit/broker"
	"github.com/skillsenselab/meshkit/component"
	"github.com/skillsenselab/meshkit/logger"
	"github.com/skillsenselab/meshkit/registry"
)

// Lifecycle manages one service instance's registration, heartbeat,
// and shutdown. It implements component.Component so it can be driven
// by a component registry alongside the rest of the service.
type Lifecycle struct {
	cfg    Config
	reg    *registry.Registry
	broker broker.Broker
	log    *logger.Logger

	instanceID string

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
	running  bool
	runMu    sync.Mutex
}

var _ component.Component = (*Lifecycle)(nil)

// New creates a lifecycle for one service instance. The broker may be
// nil when the service does not consume or produce messages.
func New(cfg Config, reg *registry.Registry, b broker.Broker, log *logger.Logger) (*Lifecycle, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lifecycle config: %w", err)
	}
	return &Lifecycle{
		cfg:      cfg,
		reg:      reg,
		broker:   b,
		log:      log.WithComponent("lifecycle"),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Name implements component.Component.
func (l *Lifecycle) Name() string { return "lifecycle" }

// InstanceID returns the generated instance id. Empty before Start.
func (l *Lifecycle) InstanceID() string { return l.instanceID }

// Start registers the instance, connects the broker, marks the
// instance healthy, and launches the heartbeat loop.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.running {
		return fmt.Errorf("lifecycle already started")
	}
	select {
	case <-l.stopChan:
		return fmt.Errorf("lifecycle cannot be restarted")
	default:
	}

	l.instanceID = fmt.Sprintf("%s-%s", l.cfg.ServiceName, uuid.NewString()[:8])

	l.reg.Register(registry.ServiceInstance{
		ID:       l.instanceID,
		Name:     l.cfg.ServiceName,
		Host:     l.cfg.Host,
		Port:     l.cfg.Port,
		Version:  l.cfg.Version,
		Status:   registry.StatusStarting,
		Metadata: l.cfg.Metadata,
	})

	if l.broker != nil {
		if err := l.broker.Connect(ctx); err != nil {
			l.reg.Deregister(l.cfg.ServiceName, l.instanceID)
			return fmt.Errorf("broker connect: %w", err)
		}
	}

	l.reg.UpdateStatus(l.cfg.ServiceName, l.instanceID, registry.StatusHealthy)
	l.running = true

	go l.heartbeatLoop()

	l.log.Info("service started", logger.Fields(
		logger.FieldService, l.cfg.ServiceName,
		logger.FieldInstance, l.instanceID,
		"addr", fmt.Sprintf("%s:%d", l.cfg.Host, l.cfg.Port),
	))
	return nil
}

// Stop marks the instance stopping, closes the broker, deregisters,
// and waits for the heartbeat loop to exit.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.runMu.Lock()
	if !l.running {
		l.runMu.Unlock()
		return nil
	}
	l.running = false
	l.runMu.Unlock()

	l.reg.UpdateStatus(l.cfg.ServiceName, l.instanceID, registry.StatusStopping)

	var brokerErr error
	if l.broker != nil {
		brokerErr = l.broker.Close()
	}

	l.reg.Deregister(l.cfg.ServiceName, l.instanceID)

	l.stopOnce.Do(func() { close(l.stopChan) })
	select {
	case <-l.doneChan:
	case <-ctx.Done():
		return fmt.Errorf("heartbeat loop did not stop: %w", ctx.Err())
	}

	l.log.Info("service stopped", logger.Fields(
		logger.FieldService, l.cfg.ServiceName,
		logger.FieldInstance, l.instanceID,
	))
	if brokerErr != nil {
		return fmt.Errorf("broker close: %w", brokerErr)
	}
	return nil
}

// Health implements component.Component.
func (l *Lifecycle) Health(_ context.Context) component.Health {
	l.runMu.Lock()
	running := l.running
	l.runMu.Unlock()

	h := component.Health{Name: l.Name(), Status: component.StatusHealthy}
	if !running {
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	}
	return h
}

// heartbeatLoop refreshes liveness on a fixed interval. A heartbeat
// that reports an unknown instance means the registry evicted us while
// we were unreachable; the loop re-registers and retries on the
// shorter backoff. Errors never terminate the loop.
func (l *Lifecycle) heartbeatLoop() {
	defer close(l.doneChan)

	timer := time.NewTimer(l.cfg.HeartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-timer.C:
		}

		delay := l.cfg.HeartbeatInterval
		if !l.reg.Heartbeat(l.cfg.ServiceName, l.instanceID) {
			l.runMu.Lock()
			running := l.running
			l.runMu.Unlock()
			if !running {
				// Shutdown already deregistered us; do not resurrect.
				return
			}
			l.log.Warn("heartbeat rejected, re-registering", logger.Fields(
				logger.FieldService, l.cfg.ServiceName,
				logger.FieldInstance, l.instanceID,
			))
			l.reg.Register(registry.ServiceInstance{
				ID:       l.instanceID,
				Name:     l.cfg.ServiceName,
				Host:     l.cfg.Host,
				Port:     l.cfg.Port,
				Version:  l.cfg.Version,
				Status:   registry.StatusHealthy,
				Metadata: l.cfg.Metadata,
			})
			delay = l.cfg.HeartbeatRetry
		}
		timer.Reset(delay)
	}
}
