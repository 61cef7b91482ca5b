// Package breaker implements a per-downstream circuit breaker.
//
// A breaker fails calls fast once a failure threshold is crossed (open),
// then allows a bounded number of trial calls after a reset timeout
// (half-open) before closing again. Any failure during the trial period
// fully re-opens the circuit; trial successes do not carry over.
package breaker
