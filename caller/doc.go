// Package caller implements the guarded remote-call path: a circuit
// breaker per downstream service composed with registry-based discovery.
//
// A call first consults the downstream's breaker (fail-fast, no network
// or registry work when open), then picks a healthy instance from the
// registry, then issues the HTTP request bounded by the per-call timeout.
// Breaker state and metrics are updated before any error is returned, so
// monitoring reflects reality even when the caller ignores the error.
package caller
