// Package ops exposes the operational HTTP surface: component health,
// a registry snapshot, and the state of every circuit breaker. It is a
// read-only window for operators and probes; application traffic never
// flows through it.
package ops
