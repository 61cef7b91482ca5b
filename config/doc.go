// Package config loads meshkit configuration from YAML files and the
// environment. A config.yml provides the base, a .env file (if present)
// and real environment variables override it, and the result is
// unmarshaled into the typed Config tree. Every section carries its own
// ApplyDefaults and Validate.
package config
