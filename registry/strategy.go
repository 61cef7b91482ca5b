package registry

import (
	"math/rand"
	"sync"
	"time"
)

// Selector chooses one instance from a non-empty healthy set.
// Implementations must be safe for concurrent use.
type Selector interface {
	Select(serviceName string, healthy []ServiceInstance) ServiceInstance
}

// randomSelector picks uniformly at random. This is the baseline
// load-balancing contract.
type randomSelector struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomSelector returns the baseline uniform-random selector.
func NewRandomSelector() Selector {
	return &randomSelector{
		r: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *randomSelector) Select(_ string, healthy []ServiceInstance) ServiceInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return healthy[s.r.Intn(len(healthy))]
}

// roundRobinSelector cycles through instances per service name.
type roundRobinSelector struct {
	mu   sync.Mutex
	next map[string]int
}

// NewRoundRobinSelector returns a selector that rotates through the
// healthy set per service name.
func NewRoundRobinSelector() Selector {
	return &roundRobinSelector{next: make(map[string]int)}
}

func (s *roundRobinSelector) Select(serviceName string, healthy []ServiceInstance) ServiceInstance {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.next[serviceName]
	inst := healthy[idx%len(healthy)]
	s.next[serviceName] = (idx + 1) % len(healthy)
	return inst
}
