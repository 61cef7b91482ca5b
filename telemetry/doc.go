// Package telemetry initializes OpenTelemetry metrics export and defines
// the stable meshkit metric surface:
//
//	service_requests_total{service_name}
//	service_errors_total{service_name}
//	service_latency_seconds{service_name}
//	circuit_breaker_state{service_name}   0=closed 1=open 2=half-open
//	service_active_instances{service_name}
//
// Metric names and labels are a contract for operator tooling; renaming
// them is a breaking change.
package telemetry
