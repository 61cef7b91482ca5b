package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/skillsenselab/meshkit/logger"
	"github.com/skillsenselab/meshkit/telemetry"
)

func newTestRegistry(opts ...Option) *Registry {
	return New(telemetry.NewDefaultMetrics(), logger.Nop(), opts...)
}

func healthyInstance(name, id string) ServiceInstance {
	return ServiceInstance{
		ID:     id,
		Name:   name,
		Host:   "10.0.0.1",
		Port:   8080,
		Status: StatusHealthy,
	}
}

func TestRegister_ThenInstances(t *testing.T) {
	r := newTestRegistry()
	r.Register(healthyInstance("billing", "b1"))

	got := r.Instances("billing")
	if len(got) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(got))
	}
	if got[0].ID != "b1" {
		t.Errorf("ID = %q, want b1", got[0].ID)
	}
	if got[0].LastHeartbeat.IsZero() {
		t.Error("Register must stamp LastHeartbeat")
	}
}

func TestRegister_SameIDReplaces(t *testing.T) {
	r := newTestRegistry()
	r.Register(healthyInstance("billing", "b1"))

	replacement := healthyInstance("billing", "b1")
	replacement.Port = 9090
	r.Register(replacement)

	got := r.Instances("billing")
	if len(got) != 1 {
		t.Fatalf("re-registering the same id must replace, got %d instances", len(got))
	}
	if got[0].Port != 9090 {
		t.Errorf("Port = %d, want 9090 (replacement record)", got[0].Port)
	}
}

func TestInstances_UnknownNameIsEmpty(t *testing.T) {
	r := newTestRegistry()
	if got := r.Instances("ghost"); len(got) != 0 {
		t.Errorf("expected empty slice, got %v", got)
	}
}

func TestInstances_SnapshotIsACopy(t *testing.T) {
	r := newTestRegistry()
	inst := healthyInstance("billing", "b1")
	inst.Metadata = map[string]string{"region": "eu"}
	r.Register(inst)

	snap := r.Instances("billing")
	snap[0].Status = StatusUnhealthy
	snap[0].Metadata["region"] = "us"

	again := r.Instances("billing")
	if again[0].Status != StatusHealthy {
		t.Error("mutating a snapshot must not affect the registry record")
	}
	if again[0].Metadata["region"] != "eu" {
		t.Error("snapshot metadata must be a copy")
	}
}

func TestDeregister(t *testing.T) {
	r := newTestRegistry()
	r.Register(healthyInstance("billing", "b1"))

	if !r.Deregister("billing", "b1") {
		t.Error("expected true when removing a present instance")
	}
	if r.Deregister("billing", "b1") {
		t.Error("expected false for an already-removed instance")
	}
	if len(r.Instances("billing")) != 0 {
		t.Error("instance should be gone")
	}
}

func TestPick_OnlyHealthy(t *testing.T) {
	r := newTestRegistry()

	a := healthyInstance("search", "a")
	b := healthyInstance("search", "b")
	b.Status = StatusUnhealthy
	r.Register(a)
	r.Register(b)

	for i := 0; i < 100; i++ {
		inst, err := r.Pick("search")
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		if inst.ID != "a" {
			t.Fatalf("Pick returned %q; must never return a non-healthy instance", inst.ID)
		}
	}
}

func TestPick_NoHealthyInstance(t *testing.T) {
	r := newTestRegistry()

	if _, err := r.Pick("ghost"); err != ErrNoHealthyInstance {
		t.Errorf("unknown service: err = %v, want ErrNoHealthyInstance", err)
	}

	inst := healthyInstance("billing", "b1")
	inst.Status = StatusDegraded
	r.Register(inst)
	if _, err := r.Pick("billing"); err != ErrNoHealthyInstance {
		t.Errorf("degraded-only service: err = %v, want ErrNoHealthyInstance", err)
	}
}

func TestPick_SpreadsAcrossHealthyInstances(t *testing.T) {
	r := newTestRegistry()
	r.Register(healthyInstance("search", "a"))
	r.Register(healthyInstance("search", "b"))

	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		inst, err := r.Pick("search")
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		seen[inst.ID]++
	}
	if len(seen) != 2 {
		t.Errorf("uniform random selection over 200 picks should hit both instances, saw %v", seen)
	}
}

func TestUpdateStatus(t *testing.T) {
	r := newTestRegistry()
	r.Register(healthyInstance("billing", "b1"))

	if !r.UpdateStatus("billing", "b1", StatusDegraded) {
		t.Error("expected true for a known instance")
	}
	if got := r.Instances("billing")[0].Status; got != StatusDegraded {
		t.Errorf("Status = %q, want degraded", got)
	}
	if r.UpdateStatus("billing", "nope", StatusHealthy) {
		t.Error("expected false for an unknown id")
	}
	if r.UpdateStatus("ghost", "b1", StatusHealthy) {
		t.Error("expected false for an unknown service")
	}
}

func TestHeartbeat(t *testing.T) {
	r := newTestRegistry()
	inst := healthyInstance("billing", "b1")
	inst.LastHeartbeat = time.Now().Add(-time.Hour)
	r.Register(inst)

	if !r.Heartbeat("billing", "b1") {
		t.Fatal("expected true for a known instance")
	}
	got := r.Instances("billing")[0].LastHeartbeat
	if time.Since(got) > time.Second {
		t.Errorf("Heartbeat should refresh LastHeartbeat, got %v", got)
	}
	if r.Heartbeat("billing", "nope") {
		t.Error("expected false for an unknown instance")
	}
}

func TestEvictStale(t *testing.T) {
	r := newTestRegistry()

	stale := healthyInstance("billing", "stale")
	stale.LastHeartbeat = time.Now().Add(-61 * time.Second)
	fresh := healthyInstance("billing", "fresh")
	fresh.LastHeartbeat = time.Now().Add(-59 * time.Second)
	r.Register(stale)
	r.Register(fresh)

	removed := r.EvictStale(60 * time.Second)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	got := r.Instances("billing")
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("expected only the fresh instance to survive, got %v", got)
	}
}

func TestEvictStale_EmptiesServiceEntry(t *testing.T) {
	r := newTestRegistry()
	stale := healthyInstance("billing", "b1")
	stale.LastHeartbeat = time.Now().Add(-2 * time.Minute)
	r.Register(stale)

	if removed := r.EvictStale(time.Minute); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if names := r.ServiceNames(); len(names) != 0 {
		t.Errorf("empty services should be dropped from the table, got %v", names)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				r.Register(healthyInstance("search", id))
				r.Heartbeat("search", id)
				r.UpdateStatus("search", id, StatusHealthy)
				r.Instances("search")
				r.Pick("search")
			}
		}(i)
	}
	wg.Wait()

	if got := len(r.Instances("search")); got != 8 {
		t.Errorf("expected 8 instances after concurrent churn, got %d", got)
	}
}

func TestSnapshot(t *testing.T) {
	r := newTestRegistry()
	r.Register(healthyInstance("billing", "b1"))
	r.Register(healthyInstance("search", "s1"))

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 services, got %d", len(snap))
	}
	if len(snap["billing"]) != 1 || snap["billing"][0].ID != "b1" {
		t.Errorf("unexpected billing snapshot: %v", snap["billing"])
	}
}
