package physics

import (
	"math"

	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/ufo"
)

// Stagnation counts consecutive ticks in which the vehicle made no progress:
// position, speed, heading and inclination all unchanged within epsilon and
// no control change pending. It is driven by the simulation goroutine only.
type Stagnation struct {
	limit int
	eps   float64
	count int
}

func NewStagnation(cfg config.Config) *Stagnation {
	return &Stagnation{limit: cfg.StagnationTicks, eps: cfg.StagnationEpsilon}
}

// Observe records one tick and reports true exactly once per episode, on the
// tick the run of no-progress ticks reaches the limit.
func (m *Stagnation) Observe(prev, next ufo.State) bool {
	if m.progressed(prev, next) {
		m.count = 0
		return false
	}
	m.count++
	return m.count == m.limit
}

func (m *Stagnation) Stagnant() bool { return m.count >= m.limit }
func (m *Stagnation) Ticks() int     { return m.count }
func (m *Stagnation) Reset()         { m.count = 0 }

func (m *Stagnation) progressed(prev, next ufo.State) bool {
	if next.HasPendingDeltas() {
		return true
	}
	if next.Position().Sub(prev.Position()).Norm() > m.eps {
		return true
	}
	return math.Abs(next.V-prev.V) > m.eps ||
		math.Abs(next.D-prev.D) > m.eps ||
		math.Abs(next.I-prev.I) > m.eps
}
