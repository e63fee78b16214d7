package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/ufo"
)

// Result summarizes one finished run.
type Result struct {
	Final   ufo.State
	Outcome ufo.Outcome
	Phase   phase.Phase
	Ticks   uint64
	Err     error
}

// Fleet runs independent simulations side by side. A failing run does not
// stop the others; its error is reported in its Result.
type Fleet struct {
	sims  []*Simulation
	limit int
}

// NewFleet returns a fleet running at most limit simulations at once. A
// limit <= 0 runs them all together.
func NewFleet(limit int, sims ...*Simulation) *Fleet {
	return &Fleet{sims: sims, limit: limit}
}

func (f *Fleet) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(f.sims))

	g, gctx := errgroup.WithContext(ctx)
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}
	for i, s := range f.sims {
		g.Go(func() error {
			err := s.Run(gctx)
			results[i] = Result{
				Final:   s.Snapshot(),
				Outcome: s.Outcome(),
				Phase:   s.Phase(),
				Ticks:   s.Ticks(),
				Err:     err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}
