// Package lifecycle orchestrates a service instance's own lifetime
// against the registry and the message broker: register at startup,
// heartbeat while running, deregister at shutdown.
//
// The lifecycle moves the instance through starting -> healthy ->
// stopping. The heartbeat loop is best-effort and self-healing: a
// failed heartbeat is logged and retried on a shorter backoff, and an
// instance that was evicted while unreachable re-registers itself.
package lifecycle
