package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/skillsenselab/meshkit"

// Metrics holds the instruments of the meshkit metric surface.
// One Metrics value is shared by the registry, breakers and caller.
type Metrics struct {
	requestsTotal   metric.Int64Counter
	errorsTotal     metric.Int64Counter
	latencySeconds  metric.Float64Histogram
	breakerState    metric.Int64Gauge
	activeInstances metric.Int64UpDownCounter
}

// NewMetrics creates the meshkit instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestsTotal, err := meter.Int64Counter("service_requests_total",
		metric.WithDescription("Total remote calls issued per downstream service"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating service_requests_total counter: %w", err)
	}

	errorsTotal, err := meter.Int64Counter("service_errors_total",
		metric.WithDescription("Total failed remote calls per downstream service"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating service_errors_total counter: %w", err)
	}

	latencySeconds, err := meter.Float64Histogram("service_latency_seconds",
		metric.WithDescription("Round-trip latency of remote calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating service_latency_seconds histogram: %w", err)
	}

	breakerState, err := meter.Int64Gauge("circuit_breaker_state",
		metric.WithDescription("Circuit breaker state per downstream service (0=closed 1=open 2=half-open)"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating circuit_breaker_state gauge: %w", err)
	}

	activeInstances, err := meter.Int64UpDownCounter("service_active_instances",
		metric.WithDescription("Registered instances per service name"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating service_active_instances gauge: %w", err)
	}

	return &Metrics{
		requestsTotal:   requestsTotal,
		errorsTotal:     errorsTotal,
		latencySeconds:  latencySeconds,
		breakerState:    breakerState,
		activeInstances: activeInstances,
	}, nil
}

// NewDefaultMetrics creates instruments on the global meter provider.
// Before InitMeter runs this yields no-op instruments, which keeps
// tests and metric-less deployments free of setup.
func NewDefaultMetrics() *Metrics {
	m, err := NewMetrics(Meter(meterName))
	if err != nil {
		// The no-op meter never fails to create instruments; a real
		// provider failing here means misconfigured instrumentation.
		panic(err)
	}
	return m
}

func serviceAttr(serviceName string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("service_name", serviceName))
}

// RecordRequest counts a completed remote call to the named service.
func (m *Metrics) RecordRequest(ctx context.Context, serviceName string) {
	m.requestsTotal.Add(ctx, 1, serviceAttr(serviceName))
}

// RecordError counts a failed remote call to the named service.
func (m *Metrics) RecordError(ctx context.Context, serviceName string) {
	m.errorsTotal.Add(ctx, 1, serviceAttr(serviceName))
}

// ObserveLatency records the round-trip time of a remote call. It is
// recorded on both success and failure paths so rising latency stays
// visible while a circuit is flapping.
func (m *Metrics) ObserveLatency(ctx context.Context, serviceName string, d time.Duration) {
	m.latencySeconds.Record(ctx, d.Seconds(), serviceAttr(serviceName))
}

// RecordBreakerState publishes the current breaker state for a service.
func (m *Metrics) RecordBreakerState(ctx context.Context, serviceName string, state int64) {
	m.breakerState.Record(ctx, state, serviceAttr(serviceName))
}

// AddActiveInstances adjusts the registered-instance gauge for a service.
func (m *Metrics) AddActiveInstances(ctx context.Context, serviceName string, delta int64) {
	m.activeInstances.Add(ctx, delta, serviceAttr(serviceName))
}
