// Package component defines the lifecycle interface shared by meshkit's
// long-running pieces (service lifecycle, registry sweeper, broker, ops
// server) and a registry that starts them in order and stops them in
// reverse order.
package component
