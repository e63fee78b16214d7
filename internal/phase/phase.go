// Package phase classifies the raw state stream into a flight phase and a
// maneuver analysis. Everything here is a derived, read-only view: nothing
// in this package writes to the simulation.
package phase

import (
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/ufo"
)

type Phase int

const (
	Idle Phase = iota
	Takeoff
	Flying
	Landing
	Landed
	Crashed
)

var names = [...]string{"idle", "takeoff", "flying", "landing", "landed", "crashed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(names) {
		return "unknown"
	}
	return names[p]
}

// Parse is the inverse of String.
func Parse(s string) (Phase, bool) {
	for i, n := range names {
		if n == s {
			return Phase(i), true
		}
	}
	return Idle, false
}

type rule struct {
	phase Phase
	match func(s ufo.State, cfg config.Config) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{Crashed, func(s ufo.State, cfg config.Config) bool {
		return s.Crashed || (onGround(s, cfg) && s.V >= cfg.VelocityTolerance && s.VZ <= 0)
	}},
	{Landed, func(s ufo.State, cfg config.Config) bool {
		untouched := s.V == 0 && s.Dist == 0
		return onGround(s, cfg) && s.V < cfg.VelocityTolerance && !untouched
	}},
	{Landing, func(s ufo.State, cfg config.Config) bool {
		return s.Z < cfg.ApproachAltitude && s.VZ < 0
	}},
	{Takeoff, func(s ufo.State, cfg config.Config) bool {
		return s.Z < cfg.ApproachAltitude && s.VZ > 0
	}},
	{Flying, func(s ufo.State, cfg config.Config) bool {
		return s.Z > cfg.AltitudeTolerance
	}},
}

func onGround(s ufo.State, cfg config.Config) bool {
	return s.Z <= cfg.AltitudeTolerance
}

// Compute returns the phase of s. It depends on nothing but its arguments.
func Compute(s ufo.State, cfg config.Config) Phase {
	for _, r := range rules {
		if r.match(s, cfg) {
			return r.phase
		}
	}
	return Idle
}
