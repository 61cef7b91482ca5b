package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestNewDefaultMetrics(t *testing.T) {
	m := NewDefaultMetrics()
	if m == nil {
		t.Fatal("expected non-nil metrics")
	}

	// Against the global no-op provider every instrument call must be safe.
	ctx := context.Background()
	m.RecordRequest(ctx, "billing")
	m.RecordError(ctx, "billing")
	m.ObserveLatency(ctx, "billing", 25*time.Millisecond)
	m.RecordBreakerState(ctx, "billing", 1)
	m.AddActiveInstances(ctx, "billing", 1)
	m.AddActiveInstances(ctx, "billing", -1)
}

func TestMeterConfig_ApplyDefaults(t *testing.T) {
	cfg := MeterConfig{ServiceName: "search"}
	cfg.ApplyDefaults()

	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("Endpoint = %q, want localhost:4318", cfg.Endpoint)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("Interval = %v, want 15s", cfg.Interval)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
}
