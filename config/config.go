package config

import (
	"fmt"

	"github.com/skillsenselab/meshkit/broker"
	"github.com/skillsenselab/meshkit/caller"
	"github.com/skillsenselab/meshkit/lifecycle"
	"github.com/skillsenselab/meshkit/logger"
	"github.com/skillsenselab/meshkit/registry"
	"github.com/skillsenselab/meshkit/telemetry"
	"github.com/skillsenselab/meshkit/version"
)

// Base contains the identity fields every service needs.
type Base struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults applies default values to the base section.
func (c *Base) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
}

// Validate validates the base section.
func (c *Base) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("base.name is required")
	}
	switch c.Environment {
	case "development", "staging", "production":
		return nil
	}
	return fmt.Errorf("base.environment must be one of [development, staging, production] (got: %s)", c.Environment)
}

// Config is the full meshkit configuration tree.
type Config struct {
	Base      Base                   `yaml:"base" mapstructure:"base"`
	Logging   logger.Config          `yaml:"logging" mapstructure:"logging"`
	Lifecycle lifecycle.Config       `yaml:"lifecycle" mapstructure:"lifecycle"`
	Sweeper   registry.SweeperConfig `yaml:"sweeper" mapstructure:"sweeper"`
	Caller    caller.Config          `yaml:"caller" mapstructure:"caller"`
	Broker    broker.KafkaConfig     `yaml:"broker" mapstructure:"broker"`
	Telemetry telemetry.MeterConfig  `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills every section's zero-valued fields and threads the
// service identity into the sections that tag by it.
func (c *Config) ApplyDefaults() {
	if c.Base.Version == "" {
		c.Base.Version = version.Version
	}
	c.Base.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Lifecycle.ApplyDefaults()
	c.Sweeper.ApplyDefaults()
	c.Caller.ApplyDefaults()
	c.Broker.ApplyDefaults()
	c.Telemetry.ApplyDefaults()

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Base.Name
	}
	if c.Lifecycle.ServiceName == "" {
		c.Lifecycle.ServiceName = c.Base.Name
	}
	if c.Lifecycle.Version == "" {
		c.Lifecycle.Version = c.Base.Version
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Base.Name
	}
	if c.Telemetry.ServiceVersion == "0.0.0" && c.Base.Version != "" {
		c.Telemetry.ServiceVersion = c.Base.Version
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = c.Base.Environment
	}
	if c.Broker.GroupID == "" {
		c.Broker.GroupID = c.Base.Name
	}
}

// Validate validates all sections.
func (c *Config) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Lifecycle.Validate(); err != nil {
		return err
	}
	return c.Broker.Validate()
}
