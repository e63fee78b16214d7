package metrics

import (
	"math"

	"github.com/san-kum/ufosim/internal/ufo"
)

// Stability is the share of samples whose acceleration magnitude stays
// within a comfort threshold, in m/s². An empty flight scores 1.
type Stability struct {
	limit float64
	calm  int
	total int
	worst float64
}

func NewStability(limit float64) *Stability {
	return &Stability{limit: limit}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(st ufo.State) {
	a := math.Sqrt(st.AX*st.AX + st.AY*st.AY + st.AZ*st.AZ)
	s.worst = math.Max(s.worst, a)
	s.total++
	if a <= s.limit {
		s.calm++
	}
}

func (s *Stability) Value() float64 {
	if s.total == 0 {
		return 1
	}
	return float64(s.calm) / float64(s.total)
}

// Worst is the largest acceleration magnitude observed.
func (s *Stability) Worst() float64 { return s.worst }

func (s *Stability) Reset() {
	*s = Stability{limit: s.limit}
}
