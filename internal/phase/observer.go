package phase

import (
	"sync/atomic"

	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/ufo"
)

type published struct {
	phase    Phase
	analysis ManeuverAnalysis
}

// Observer keeps the snapshot history and publishes the derived phase and
// analysis. Ingest and Reset must be called from a single goroutine; Phase
// and Analysis may be called from any goroutine.
type Observer struct {
	cfg     config.Config
	history *History
	current atomic.Pointer[published]
}

func NewObserver(cfg config.Config) *Observer {
	o := &Observer{cfg: cfg, history: NewHistory(cfg.HistorySize)}
	o.current.Store(&published{})
	return o
}

// Ingest appends s to the history and recomputes phase and analysis.
func (o *Observer) Ingest(s ufo.State) Phase {
	o.history.Push(s)
	p := &published{
		phase:    Compute(s, o.cfg),
		analysis: Analyze(o.history.Last(o.cfg.AnalysisWindow), o.cfg),
	}
	o.current.Store(p)
	return p.phase
}

// Reset drops the history, so trends restart from s.
func (o *Observer) Reset(s ufo.State) {
	o.history.Reset()
	o.Ingest(s)
}

func (o *Observer) Phase() Phase               { return o.current.Load().phase }
func (o *Observer) Analysis() ManeuverAnalysis { return o.current.Load().analysis }
