package metrics

import "github.com/san-kum/ufosim/internal/ufo"

const StandardGravity = 9.80665

// Energy is the mean specific mechanical energy, kinetic plus potential,
// in J/kg.
type Energy struct {
	gravity float64
	total   float64
	samples int
}

func NewEnergy(gravity float64) *Energy {
	return &Energy{gravity: gravity}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(s ufo.State) {
	e.total += Specific(s, e.gravity)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *Energy) Reset() {
	e.total = 0
	e.samples = 0
}

// Specific returns the specific mechanical energy of s.
func Specific(s ufo.State, gravity float64) float64 {
	return 0.5*s.V*s.V + gravity*s.Z
}
