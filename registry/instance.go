package registry

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a service instance.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusStopping  Status = "stopping"
)

// ServiceInstance describes one running copy of a named service.
type ServiceInstance struct {
	// ID is an opaque unique identifier within the service name.
	ID string `json:"id"`
	// Name is the logical service name used for discovery.
	Name string `json:"name"`
	// Host and Port are where the instance answers calls.
	Host string `json:"host"`
	Port int    `json:"port"`
	// Version is the instance's reported build version.
	Version string `json:"version,omitempty"`
	// Status gates discovery: only healthy instances are selectable.
	Status Status `json:"status"`
	// Metadata carries open-ended key-value pairs (region, protocol, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
	// LastHeartbeat is the time of the most recent liveness signal.
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Addr returns the instance's host:port.
func (si ServiceInstance) Addr() string {
	return fmt.Sprintf("%s:%d", si.Host, si.Port)
}

// clone returns a deep copy so registry-owned records never leak.
func (si ServiceInstance) clone() ServiceInstance {
	out := si
	if si.Metadata != nil {
		out.Metadata = make(map[string]string, len(si.Metadata))
		for k, v := range si.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
