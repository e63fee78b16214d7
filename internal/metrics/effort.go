package metrics

import (
	"math"

	"github.com/san-kum/ufosim/internal/ufo"
)

// ControlEffort is the mean magnitude of the pending control deltas.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(s ufo.State) {
	c.sum += math.Abs(s.DeltaV) + math.Abs(s.DeltaD) + math.Abs(s.DeltaI)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakSpeed is the highest speed seen.
type PeakSpeed struct {
	peak float64
}

func NewPeakSpeed() *PeakSpeed { return &PeakSpeed{} }

func (p *PeakSpeed) Name() string { return "peak_speed" }

func (p *PeakSpeed) Observe(s ufo.State) {
	if s.V > p.peak {
		p.peak = s.V
	}
}

func (p *PeakSpeed) Value() float64 { return p.peak }
func (p *PeakSpeed) Reset()         { p.peak = 0 }
