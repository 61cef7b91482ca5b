package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/skillsenselab/meshkit/logger"
	"github.com/skillsenselab/meshkit/telemetry"
)

// Common registry errors.
var (
	// ErrNoHealthyInstance indicates the named service has no healthy
	// instance to select. Distinct from a tripped circuit: it signals a
	// discovery/health problem, not a failure-rate problem.
	ErrNoHealthyInstance = errors.New("no healthy instance for service")
)

// Registry is a concurrent two-level table of service instances keyed by
// service name and instance id. All mutating operations are linearizable
// under a single registry-wide lock; snapshot reads return copies.
type Registry struct {
	mu       sync.RWMutex
	services map[string]map[string]ServiceInstance

	selector Selector
	metrics  *telemetry.Metrics
	log      *logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithSelector overrides the instance selection strategy used by Pick.
// The baseline is uniform random selection.
func WithSelector(s Selector) Option {
	return func(r *Registry) { r.selector = s }
}

// New creates an empty registry.
func New(metrics *telemetry.Metrics, log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		services: make(map[string]map[string]ServiceInstance),
		selector: NewRandomSelector(),
		metrics:  metrics,
		log:      log.WithComponent("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or replaces the instance under (name, id) and maintains
// the active-instance gauge. Re-registering an existing id replaces the
// record without duplicating it.
func (r *Registry) Register(inst ServiceInstance) {
	stored := inst.clone()
	if stored.LastHeartbeat.IsZero() {
		stored.LastHeartbeat = time.Now()
	}
	if stored.Status == "" {
		stored.Status = StatusStarting
	}

	r.mu.Lock()
	byID, ok := r.services[stored.Name]
	if !ok {
		byID = make(map[string]ServiceInstance)
		r.services[stored.Name] = byID
	}
	_, replaced := byID[stored.ID]
	byID[stored.ID] = stored
	r.mu.Unlock()

	if !replaced {
		r.metrics.AddActiveInstances(context.Background(), stored.Name, 1)
	}
	r.log.Debug("instance registered", logger.Fields(
		logger.FieldInstance, stored.ID,
		"service", stored.Name,
		"addr", stored.Addr(),
		"replaced", replaced,
	))
}

// Deregister removes the record if present and reports whether anything
// was removed.
func (r *Registry) Deregister(name, id string) bool {
	r.mu.Lock()
	byID, ok := r.services[name]
	if ok {
		_, ok = byID[id]
		if ok {
			delete(byID, id)
			if len(byID) == 0 {
				delete(r.services, name)
			}
		}
	}
	r.mu.Unlock()

	if ok {
		r.metrics.AddActiveInstances(context.Background(), name, -1)
		r.log.Debug("instance deregistered", logger.Fields(
			logger.FieldInstance, id,
			"service", name,
		))
	}
	return ok
}

// Instances returns a snapshot of all instances for a name, any status.
// Unknown names yield an empty slice.
func (r *Registry) Instances(name string) []ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.services[name]
	out := make([]ServiceInstance, 0, len(byID))
	for _, inst := range byID {
		out = append(out, inst.clone())
	}
	return out
}

// Pick returns one healthy instance of the named service, chosen by the
// configured selection strategy (uniform random by default).
func (r *Registry) Pick(name string) (ServiceInstance, error) {
	r.mu.RLock()
	byID := r.services[name]
	healthy := make([]ServiceInstance, 0, len(byID))
	for _, inst := range byID {
		if inst.Status == StatusHealthy {
			healthy = append(healthy, inst.clone())
		}
	}
	r.mu.RUnlock()

	if len(healthy) == 0 {
		return ServiceInstance{}, ErrNoHealthyInstance
	}
	return r.selector.Select(name, healthy), nil
}

// UpdateStatus sets the status of an instance. Reports false when the
// instance is unknown.
func (r *Registry) UpdateStatus(name, id string, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.services[name]
	if !ok {
		return false
	}
	inst, ok := byID[id]
	if !ok {
		return false
	}
	inst.Status = status
	byID[id] = inst
	return true
}

// Heartbeat refreshes the instance's liveness timestamp. Reports false
// when the instance is unknown.
func (r *Registry) Heartbeat(name, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.services[name]
	if !ok {
		return false
	}
	inst, ok := byID[id]
	if !ok {
		return false
	}
	inst.LastHeartbeat = time.Now()
	byID[id] = inst
	return true
}

// EvictStale removes every instance whose last heartbeat is older than
// maxAge and returns the number removed. Crashed processes that stopped
// heartbeating are evicted here even though they never deregistered.
func (r *Registry) EvictStale(maxAge time.Duration) int {
	type victim struct{ name, id string }
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	var victims []victim
	for name, byID := range r.services {
		for id, inst := range byID {
			if inst.LastHeartbeat.Before(cutoff) {
				victims = append(victims, victim{name, id})
			}
		}
	}
	for _, v := range victims {
		delete(r.services[v.name], v.id)
		if len(r.services[v.name]) == 0 {
			delete(r.services, v.name)
		}
	}
	r.mu.Unlock()

	for _, v := range victims {
		r.metrics.AddActiveInstances(context.Background(), v.name, -1)
		r.log.Info("stale instance evicted", logger.Fields(
			logger.FieldInstance, v.id,
			"service", v.name,
			"max_age", maxAge.String(),
		))
	}
	return len(victims)
}

// ServiceNames returns the names that currently have registered instances.
func (r *Registry) ServiceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	return names
}

// Snapshot returns a copy of the whole table, keyed by service name.
// Used by the ops surface; never exposes registry-owned records.
func (r *Registry) Snapshot() map[string][]ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]ServiceInstance, len(r.services))
	for name, byID := range r.services {
		insts := make([]ServiceInstance, 0, len(byID))
		for _, inst := range byID {
			insts = append(insts, inst.clone())
		}
		out[name] = insts
	}
	return out
}
