package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/meshkit/component"
	"github.com/skillsenselab/meshkit/logger"
)

// SweeperConfig configures the staleness sweeper.
type SweeperConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// MaxAge is the heartbeat age beyond which an instance is evicted.
	MaxAge time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *SweeperConfig) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MaxAge <= 0 {
		c.MaxAge = time.Minute
	}
}

// Sweeper periodically evicts stale instances from a Registry. It runs
// independently of any single service's lifecycle so that crashed
// processes are removed even though they never deregistered.
type Sweeper struct {
	reg      *Registry
	cfg      SweeperConfig
	log      *logger.Logger
	stopChan chan struct{}
	doneChan chan struct{}
	running  bool
}

// ensure Sweeper satisfies component.Component.
var _ component.Component = (*Sweeper)(nil)

// NewSweeper creates a sweeper for the given registry.
func NewSweeper(reg *Registry, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	cfg.ApplyDefaults()
	return &Sweeper{
		reg: reg,
		cfg: cfg,
		log: log.WithComponent("registry-sweeper"),
	}
}

// Name returns the component name.
func (s *Sweeper) Name() string { return "registry-sweeper" }

// Start launches the background sweep loop.
func (s *Sweeper) Start(_ context.Context) error {
	if s.running {
		return nil
	}
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.running = true

	go s.run()

	s.log.Info("sweeper started", logger.Fields(
		"interval", s.cfg.Interval.String(),
		"max_age", s.cfg.MaxAge.String(),
	))
	return nil
}

// Stop signals the loop to stop and waits for it to finish.
func (s *Sweeper) Stop(_ context.Context) error {
	if !s.running {
		return nil
	}
	close(s.stopChan)
	<-s.doneChan
	s.running = false
	return nil
}

// Health reports whether the sweep loop is running.
func (s *Sweeper) Health(_ context.Context) component.Health {
	if !s.running {
		return component.Health{
			Name:    s.Name(),
			Status:  component.StatusUnhealthy,
			Message: "sweeper not running",
		}
	}
	return component.Health{
		Name:    s.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("interval=%s max_age=%s", s.cfg.Interval, s.cfg.MaxAge),
	}
}

func (s *Sweeper) run() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.reg.EvictStale(s.cfg.MaxAge); removed > 0 {
				s.log.Info("sweep removed stale instances", logger.Fields(
					"removed", removed,
				))
			}
		case <-s.stopChan:
			return
		}
	}
}
