package phase

import (
	"math"

	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/ufo"
)

// ManeuverAnalysis summarizes how the vehicle moved across a window of
// snapshots.
type ManeuverAnalysis struct {
	Samples int

	AltitudeDelta float64
	HeadingDelta  float64 // signed, shortest arc, degrees
	SpeedDelta    float64
	DistanceDelta float64

	Ascending    bool
	Descending   bool
	Turning      bool
	Accelerating bool
	Decelerating bool
	Stagnant     bool
}

// Analyze compares the last cfg.AnalysisWindow snapshots of window.
// Fewer than two samples yield an empty analysis; Stagnant is only reported
// once the window is full.
func Analyze(window []ufo.State, cfg config.Config) ManeuverAnalysis {
	if len(window) > cfg.AnalysisWindow {
		window = window[len(window)-cfg.AnalysisWindow:]
	}
	a := ManeuverAnalysis{Samples: len(window)}
	if len(window) < 2 {
		return a
	}

	first, last := window[0], window[len(window)-1]
	a.AltitudeDelta = last.Z - first.Z
	a.SpeedDelta = last.V - first.V
	a.DistanceDelta = last.Dist - first.Dist
	for i := 1; i < len(window); i++ {
		a.HeadingDelta += headingDiff(window[i-1].D, window[i].D)
	}

	th := cfg.TrendThreshold
	a.Ascending = a.AltitudeDelta > th
	a.Descending = a.AltitudeDelta < -th
	a.Turning = math.Abs(a.HeadingDelta) > th
	a.Accelerating = a.SpeedDelta > th
	a.Decelerating = a.SpeedDelta < -th

	if len(window) == cfg.AnalysisWindow {
		a.Stagnant = stagnant(window, cfg.StagnationEpsilon)
	}
	return a
}

// stagnant reports whether position, heading and speed all stay within eps
// of the first sample across the whole window.
func stagnant(window []ufo.State, eps float64) bool {
	ref := window[0]
	for _, s := range window[1:] {
		if s.Position().Sub(ref.Position()).Norm() > eps ||
			math.Abs(headingDiff(ref.D, s.D)) > eps ||
			math.Abs(s.V-ref.V) > eps {
			return false
		}
	}
	return true
}

// headingDiff returns b-a folded into (-180, 180].
func headingDiff(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}
