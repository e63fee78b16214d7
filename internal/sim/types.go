package sim

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/ufo"
)

// ErrAutopilotDone is returned by an Autopilot that has nothing more to do.
var ErrAutopilotDone = errors.New("sim: autopilot done")

// Cockpit is what an autopilot sees of the simulation. It can read state
// and submit commands; it cannot write state directly.
type Cockpit interface {
	Config() config.Config
	Snapshot() ufo.State
	Phase() phase.Phase
	Maneuver() phase.ManeuverAnalysis
	CreateCommandQueue() *command.Queue
	ExecuteCommandQueue(q *command.Queue) error
	WaitFor(pred func(ufo.State) bool, timeout time.Duration) bool
}

// Autopilot is called periodically on its own goroutine while the
// simulation runs.
type Autopilot interface {
	Fly(ctx context.Context, c Cockpit) error
}

// AutopilotFunc adapts a function to Autopilot.
type AutopilotFunc func(ctx context.Context, c Cockpit) error

func (f AutopilotFunc) Fly(ctx context.Context, c Cockpit) error { return f(ctx, c) }

type Option func(*Simulation)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulation) { s.log = log }
}

func WithAutopilot(a Autopilot) Option {
	return func(s *Simulation) { s.autopilot = a }
}

// WithClock replaces the wall-clock timer used to pace ticks and autopilot
// calls.
func WithClock(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Simulation) { s.after = after }
}

// WithInitialState starts the vehicle from s instead of a fresh state.
// Reset still returns to a fresh state.
func WithInitialState(st ufo.State) Option {
	return func(s *Simulation) { s.initial = st }
}
