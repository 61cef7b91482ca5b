package lifecycle

import (
	"fmt"
	"time"
)

// Config holds the identity and heartbeat settings for a service
// instance managed by the lifecycle.
type Config struct {
	// ServiceName is the logical name the instance registers under.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// Host is the address other services reach this instance at.
	Host string `yaml:"host" mapstructure:"host"`
	// Port is the instance's serving port.
	Port int `yaml:"port" mapstructure:"port"`
	// Version is an optional build or release identifier.
	Version string `yaml:"version" mapstructure:"version"`
	// Metadata is attached to the registered instance record.
	Metadata map[string]string `yaml:"metadata" mapstructure:"metadata"`

	// HeartbeatInterval is the steady-state heartbeat period.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	// HeartbeatRetry is the shortened delay after a failed heartbeat.
	HeartbeatRetry time.Duration `yaml:"heartbeat_retry" mapstructure:"heartbeat_retry"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.HeartbeatRetry <= 0 {
		c.HeartbeatRetry = 5 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("lifecycle.service_name is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("lifecycle.port must be in 1..65535, got %d", c.Port)
	}
	return nil
}
