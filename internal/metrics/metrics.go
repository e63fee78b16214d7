// Package metrics scores a flight from the stream of installed states.
package metrics

import (
	"sync"

	"github.com/san-kum/ufosim/internal/ufo"
)

// Metric accumulates one figure over observed states.
type Metric interface {
	Name() string
	Observe(s ufo.State)
	Value() float64
	Reset()
}

// Set fans states out to several metrics. Observe may be registered as a
// state observer and called from any goroutine.
type Set struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewSet(metrics ...Metric) *Set {
	return &Set{metrics: metrics}
}

// Default is the set the CLI records with every run.
func Default() *Set {
	return NewSet(NewControlEffort(), NewEnergy(StandardGravity), NewStability(10), NewPeakSpeed())
}

func (s *Set) Observe(st ufo.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Observe(st)
	}
}

// Values returns every metric's current value keyed by name.
func (s *Set) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Reset()
	}
}
