// Package sim wires the core together: it owns the state manager, the
// command executor and the phase observer, and drives ticks on one
// goroutine and the autopilot on another.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/physics"
	"github.com/san-kum/ufosim/internal/state"
	"github.com/san-kum/ufosim/internal/ufo"
)

var (
	errFinished = errors.New("sim: flight finished")
	errReset    = errors.New("sim: reset")
)

type Simulation struct {
	cfg       config.Config
	log       zerolog.Logger
	after     func(time.Duration) <-chan time.Time
	autopilot Autopilot
	initial   ufo.State

	states     *state.Manager
	exec       *command.Executor
	observer   *phase.Observer
	stagnation *physics.Stagnation

	// tickMu serializes Tick and Reset. Every write to the state manager
	// happens under it.
	tickMu    sync.Mutex
	lastPhase phase.Phase

	ticks    atomic.Uint64
	outcome  atomic.Int32
	stagnant atomic.Bool
	paused   atomic.Bool
	flying   atomic.Bool
}

// New validates cfg and builds a simulation at rest.
func New(cfg config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		cfg:     cfg,
		log:     zerolog.Nop(),
		after:   time.After,
		initial: ufo.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.initial.IsValid() {
		return nil, fmt.Errorf("sim: initial state: %w", ufo.ErrComputation)
	}
	s.log = s.log.With().Str("component", "sim").Logger()

	s.states = state.New(s.initial, s.log)
	s.exec = command.NewExecutor(s.states, s.log,
		command.WithClock(s.simTime),
		command.WithDefaultTimeout(cfg.CommandTimeout))
	s.observer = phase.NewObserver(cfg)
	s.lastPhase = s.observer.Ingest(s.initial)
	s.stagnation = physics.NewStagnation(cfg)
	return s, nil
}

func (s *Simulation) Config() config.Config { return s.cfg }

func (s *Simulation) Snapshot() ufo.State              { return s.states.Snapshot() }
func (s *Simulation) Phase() phase.Phase               { return s.observer.Phase() }
func (s *Simulation) Maneuver() phase.ManeuverAnalysis { return s.observer.Analysis() }

// Ticks counts the physics steps taken since construction.
func (s *Simulation) Ticks() uint64 { return s.ticks.Load() }

// Outcome is the outcome of the most recent tick.
func (s *Simulation) Outcome() ufo.Outcome { return ufo.Outcome(s.outcome.Load()) }

// Stagnant reports whether the vehicle has made no progress for the
// configured number of ticks.
func (s *Simulation) Stagnant() bool { return s.stagnant.Load() }

func (s *Simulation) Subscribe(fn func(ufo.State)) state.Token { return s.states.Subscribe(fn) }
func (s *Simulation) Unsubscribe(tok state.Token)              { s.states.Unsubscribe(tok) }

func (s *Simulation) CreateCommandQueue() *command.Queue { return command.NewQueue() }

// ExecuteCommandQueue hands q to the simulation goroutine. q is sealed and
// starts running on the next tick.
func (s *Simulation) ExecuteCommandQueue(q *command.Queue) error {
	return s.exec.Enqueue(q)
}

// WaitFor blocks until pred holds or timeout elapses. A timeout of zero
// waits forever.
func (s *Simulation) WaitFor(pred func(ufo.State) bool, timeout time.Duration) bool {
	return s.states.WaitFor(pred, timeout)
}

func (s *Simulation) Pause()       { s.paused.Store(true) }
func (s *Simulation) Resume()      { s.paused.Store(false) }
func (s *Simulation) Paused() bool { return s.paused.Load() }

// Reset returns the vehicle to a fresh state and cancels pending queues.
func (s *Simulation) Reset() (ufo.State, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.exec.Cancel(errReset)
	fresh, err := s.states.Reset()
	if err != nil {
		return ufo.State{}, err
	}
	s.observer.Reset(fresh)
	s.lastPhase = s.observer.Phase()
	s.stagnation.Reset()
	s.stagnant.Store(false)
	s.outcome.Store(int32(ufo.Continuing))
	s.log.Info().Msg("simulation reset")
	return fresh, nil
}

// Tick advances the simulation by one step of cfg.Dt and runs pending
// commands against the result. A computation error leaves the state
// untouched and is returned as a *ufo.StepError.
func (s *Simulation) Tick() (ufo.Outcome, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	prev := s.states.Snapshot()
	n := s.ticks.Add(1)

	next, outcome, err := physics.Step(prev, s.cfg)
	if err != nil {
		return ufo.Continuing, &ufo.StepError{Tick: n, Time: prev.FlightTime, State: prev, Wrapped: err}
	}
	installed, err := s.states.Update(func(ufo.State) ufo.State { return next })
	if err != nil {
		return ufo.Continuing, &ufo.StepError{Tick: n, Time: prev.FlightTime, State: prev, Wrapped: err}
	}

	current := s.exec.Process(installed)
	if current.Crashed {
		outcome = ufo.Crashed
	}
	s.outcome.Store(int32(outcome))

	if p := s.observer.Ingest(current); p != s.lastPhase {
		s.log.Info().
			Stringer("from", s.lastPhase).
			Stringer("to", p).
			Float64("t", current.FlightTime).
			Float64("z", current.Z).
			Float64("v", current.V).
			Msg("phase changed")
		s.lastPhase = p
	}

	if s.stagnation.Observe(prev, current) {
		s.log.Warn().
			Int("ticks", s.stagnation.Ticks()).
			Float64("t", current.FlightTime).
			Msg("no progress")
	}
	s.stagnant.Store(s.stagnation.Stagnant())

	switch outcome {
	case ufo.Crashed:
		if !prev.Crashed {
			s.log.Warn().Float64("t", current.FlightTime).Float64("x", current.X).Float64("y", current.Y).Msg("crashed")
		}
	case ufo.Landed:
		s.log.Info().Float64("t", current.FlightTime).Float64("dist", current.Dist).Msg("landed")
	}
	return outcome, nil
}

// Run ticks until ctx ends, the vehicle crashes, MaxFlightTime is reached,
// the vehicle is landed with no autopilot still flying, or a tick fails. The
// autopilot, if any, runs on its own goroutine every AutopilotInterval
// until it returns ErrAutopilotDone.
func (s *Simulation) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.autopilot != nil {
		s.flying.Store(true)
		g.Go(func() error {
			defer s.flying.Store(false)
			return s.fly(ctx)
		})
	}
	g.Go(func() error { return s.loop(ctx) })

	err := g.Wait()
	s.exec.Cancel(errFinished)
	if errors.Is(err, errFinished) {
		return nil
	}
	return err
}

func (s *Simulation) loop(ctx context.Context) error {
	var interval time.Duration
	if s.cfg.SpeedFactor > 0 {
		interval = time.Duration(float64(s.cfg.TickDuration()) / s.cfg.SpeedFactor)
	}
	s.log.Debug().Dur("interval", interval).Msg("loop started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.paused.Load() {
			if err := s.sleep(ctx, s.cfg.TickDuration()); err != nil {
				return err
			}
			continue
		}

		outcome, err := s.Tick()
		if err != nil {
			s.log.Error().Err(err).Msg("tick failed")
			return err
		}
		if s.finished(outcome) {
			return errFinished
		}

		if interval > 0 {
			if err := s.sleep(ctx, interval); err != nil {
				return err
			}
		}
	}
}

func (s *Simulation) finished(outcome ufo.Outcome) bool {
	if outcome == ufo.Crashed {
		return true
	}
	cur := s.Snapshot()
	switch {
	case s.observer.Phase() == phase.Landed && cur.Z == 0 && !s.flying.Load():
		return true
	case s.cfg.MaxFlightTime > 0 && cur.FlightTime >= s.cfg.MaxFlightTime:
		s.log.Info().Float64("limit", s.cfg.MaxFlightTime).Msg("flight time limit reached")
		return true
	}
	return false
}

func (s *Simulation) fly(ctx context.Context) error {
	log := s.log.With().Str("autopilot", fmt.Sprintf("%T", s.autopilot)).Logger()
	for {
		err := s.autopilot.Fly(ctx, s)
		switch {
		case errors.Is(err, ErrAutopilotDone):
			log.Debug().Msg("autopilot done")
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			log.Error().Err(err).Msg("autopilot failed")
			return fmt.Errorf("sim: autopilot: %w", err)
		}
		if err := s.sleep(ctx, s.cfg.AutopilotInterval); err != nil {
			return err
		}
	}
}

func (s *Simulation) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.after(d):
		return nil
	}
}

// simTime is the executor's clock: simulated time since construction.
func (s *Simulation) simTime() time.Duration {
	return time.Duration(s.ticks.Load()) * s.cfg.TickDuration()
}
