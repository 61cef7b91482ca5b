package breaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a bounded number of trial requests.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GaugeValue returns the stable numeric encoding used by the
// circuit_breaker_state metric: 0=closed 1=open 2=half-open.
func (s State) GaugeValue() int64 {
	return int64(s)
}

// ErrOpen is returned by Execute when the breaker denies the call.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker.
type Config struct {
	// Name identifies the downstream service this breaker guards.
	Name string `yaml:"name" mapstructure:"name"`
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit while closed.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	// ResetTimeout is how long the circuit stays open before a trial
	// call is allowed.
	ResetTimeout time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
	// HalfOpenMaxCalls is the number of trial successes required to
	// close the circuit again.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls"`
	// OnStateChange is called outside the breaker lock when the state
	// changes. Used to drive the state gauge.
	OnStateChange func(name string, from, to State) `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 3
	}
}

// DefaultConfig returns the baseline breaker configuration.
func DefaultConfig(name string) Config {
	cfg := Config{Name: name}
	cfg.ApplyDefaults()
	return cfg
}

// Breaker is a mutex-synchronized circuit breaker state machine.
// It is mutated by every concurrent caller targeting the same
// downstream, so all transitions happen under the lock.
type Breaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	failureCount    int
	halfOpenCalls   int
	lastFailureTime time.Time
}

// New creates a circuit breaker in the closed state.
func New(cfg Config) *Breaker {
	cfg.ApplyDefaults()
	return &Breaker{
		cfg:   cfg,
		state: StateClosed,
	}
}

// Allow reports whether a request may proceed. While open it transitions
// to half-open once the reset timeout has elapsed since the last failure,
// admitting the probing call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true

	case StateOpen:
		if time.Since(b.lastFailureTime) > b.cfg.ResetTimeout {
			notify := b.toState(StateHalfOpen)
			b.mu.Unlock()
			notify()
			return true
		}
		b.mu.Unlock()
		return false

	case StateHalfOpen:
		allowed := b.halfOpenCalls < b.cfg.HalfOpenMaxCalls
		b.mu.Unlock()
		return allowed

	default:
		b.mu.Unlock()
		return false
	}
}

// RecordSuccess records a successful call. In half-open state enough
// successes close the circuit; in any other state it is a no-op.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()

	if b.state != StateHalfOpen {
		b.mu.Unlock()
		return
	}

	b.halfOpenCalls++
	if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
		notify := b.toState(StateClosed)
		b.mu.Unlock()
		notify()
		return
	}
	b.mu.Unlock()
}

// RecordFailure records a failed call. A closed breaker opens once the
// failure threshold is reached; an open breaker refreshes its failure
// time; a half-open breaker re-opens on a single failure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.lastFailureTime = time.Now()
			notify := b.toState(StateOpen)
			b.mu.Unlock()
			notify()
			return
		}

	case StateOpen:
		b.lastFailureTime = time.Now()

	case StateHalfOpen:
		b.lastFailureTime = time.Now()
		notify := b.toState(StateOpen)
		b.mu.Unlock()
		notify()
		return
	}
	b.mu.Unlock()
}

// Execute runs fn through the breaker, recording its outcome.
// Returns ErrOpen without calling fn when the breaker denies the call.
func (b *Breaker) Execute(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}

	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// State returns the current state without triggering transitions.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count (meaningful while closed).
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Name returns the downstream service name this breaker guards.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// toState transitions to a new state and resets the counters tied to the
// state being left or entered. Callers hold b.mu; the returned func fires
// the state-change hook and must be invoked after unlocking.
func (b *Breaker) toState(to State) func() {
	from := b.state
	if from == to {
		return func() {}
	}
	b.state = to

	// failureCount is only meaningful in closed, halfOpenCalls only in
	// half-open; both reset on every boundary they cross.
	b.failureCount = 0
	b.halfOpenCalls = 0

	if b.cfg.OnStateChange == nil {
		return func() {}
	}
	hook := b.cfg.OnStateChange
	name := b.cfg.Name
	return func() { hook(name, from, to) }
}
