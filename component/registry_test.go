package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/skillsenselab/meshkit/logger"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

func newTestRegistry() *Registry {
	return NewRegistry(logger.Nop())
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{name: "registry"})

	err := r.Register(&mockComponent{name: "registry"})
	if err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := newTestRegistry()
	c := &mockComponent{name: "broker"}
	r.Register(c)

	got := r.Get("broker")
	if got == nil {
		t.Fatal("expected to get registered component")
	}
	if got.Name() != "broker" {
		t.Errorf("expected 'broker', got %q", got.Name())
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartAllOrder(t *testing.T) {
	r := newTestRegistry()
	order := []string{}

	r.Register(&mockComponent{name: "broker", startOrder: &order})
	r.Register(&mockComponent{name: "lifecycle", startOrder: &order})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if len(order) != 2 || order[0] != "broker" || order[1] != "lifecycle" {
		t.Errorf("expected start order [broker, lifecycle], got %v", order)
	}
}

func TestStartAllError(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{name: "broker", startErr: fmt.Errorf("connection refused")})

	if err := r.StartAll(context.Background()); err == nil {
		t.Error("expected error from StartAll")
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	r := newTestRegistry()
	order := []string{}

	r.Register(&mockComponent{name: "broker", stopOrder: &order})
	r.Register(&mockComponent{name: "lifecycle", stopOrder: &order})
	r.StartAll(context.Background())

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 2 || order[0] != "lifecycle" || order[1] != "broker" {
		t.Errorf("expected stop order [lifecycle, broker], got %v", order)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := newTestRegistry()
	order := []string{}
	r.Register(&mockComponent{name: "broker", stopOrder: &order})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("unstarted component should not be stopped, got %v", order)
	}
}

func TestStopAllCollectsErrors(t *testing.T) {
	r := newTestRegistry()
	order := []string{}
	r.Register(&mockComponent{name: "a", stopErr: fmt.Errorf("boom"), stopOrder: &order})
	r.Register(&mockComponent{name: "b", stopOrder: &order})
	r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Error("expected aggregated stop error")
	}
	if len(order) != 2 {
		t.Errorf("all components should be attempted, got %v", order)
	}
}

func TestHealthAll(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{name: "a", health: Health{Name: "a", Status: StatusHealthy}})
	r.Register(&mockComponent{name: "b", health: Health{Name: "b", Status: StatusDegraded}})

	hs := r.HealthAll(context.Background())
	if len(hs) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(hs))
	}
	if hs[1].Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", hs[1].Status)
	}
}
