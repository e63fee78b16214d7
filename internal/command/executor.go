package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/ufosim/internal/locked"
	"github.com/san-kum/ufosim/internal/state"
	"github.com/san-kum/ufosim/internal/ufo"
)

// Clock returns the time elapsed on whatever timeline waits are measured
// against. The simulation loop supplies simulated time.
type Clock func() time.Duration

type Option func(*Executor)

func WithClock(c Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithDefaultTimeout sets the deadline for waits that carry none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) { e.defaultTimeout = d }
}

// Executor drains queues, in the order they were enqueued, against a state
// manager. Process must be called from a single goroutine.
type Executor struct {
	states         *state.Manager
	log            zerolog.Logger
	clock          Clock
	defaultTimeout time.Duration

	pending *locked.Mutex[[]*Queue]
}

func NewExecutor(states *state.Manager, log zerolog.Logger, opts ...Option) *Executor {
	start := time.Now()
	e := &Executor{
		states:  states,
		log:     log.With().Str("component", "executor").Logger(),
		clock:   func() time.Duration { return time.Since(start) },
		pending: locked.NewMutex[[]*Queue](nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue seals q and schedules it after every queue already pending.
func (e *Executor) Enqueue(q *Queue) error {
	if err := q.seal(); err != nil {
		return err
	}
	next, total := q.Progress()
	e.log.Debug().Str("queue", q.ID().String()).Int("commands", total-next).Msg("queue enqueued")
	return e.pending.With(func(p *[]*Queue) error {
		*p = append(*p, q)
		return nil
	})
}

// Pending returns the number of queues not yet finished.
func (e *Executor) Pending() int {
	var n int
	_ = e.pending.With(func(p *[]*Queue) error {
		n = len(*p)
		return nil
	})
	return n
}

// Cancel fails every pending queue with cause and drops them.
func (e *Executor) Cancel(cause error) {
	var queues []*Queue
	_ = e.pending.With(func(p *[]*Queue) error {
		queues, *p = *p, nil
		return nil
	})
	for _, q := range queues {
		if err := q.cancel(fmt.Errorf("%w: %v", ErrCanceled, cause)); err != nil {
			e.log.Error().Err(err).Str("queue", q.ID().String()).Msg("queue canceled from one of its own commands")
		}
	}
}

// Process runs pending commands against current until every queue is done
// or the head queue waits on a condition that does not hold yet. It never
// blocks on a condition. It returns the state after the last SetState.
func (e *Executor) Process(current ufo.State) ufo.State {
	for {
		q := e.head()
		if q == nil {
			return current
		}
		var finished bool
		current, finished = e.drain(q, current)
		if !finished {
			return current
		}
		e.pop(q)
	}
}

func (e *Executor) head() *Queue {
	var q *Queue
	_ = e.pending.With(func(p *[]*Queue) error {
		if len(*p) > 0 {
			q = (*p)[0]
		}
		return nil
	})
	return q
}

func (e *Executor) pop(q *Queue) {
	_ = e.pending.With(func(p *[]*Queue) error {
		if len(*p) > 0 && (*p)[0] == q {
			*p = (*p)[1:]
		}
		return nil
	})
}

func (e *Executor) drain(q *Queue, current ufo.State) (ufo.State, bool) {
	log := e.log.With().Str("queue", q.ID().String()).Logger()
	finished := false

	err := q.data.With(func(d *queueData) error {
		for d.failure == nil && d.next < len(d.cmds) {
			cmd := d.cmds[d.next]
			advance, err := e.run(d, cmd, &current, log)
			if err != nil {
				f := &Failure{Queue: q.ID(), Index: d.next, Kind: cmd.Kind, Label: cmd.Label, Err: err}
				log.Error().Err(f).Msg("queue failed")
				d.fail(f)
				break
			}
			if !advance {
				return nil
			}
			d.next++
			d.waiting = false
		}
		if d.failure == nil {
			log.Debug().Int("commands", len(d.cmds)).Msg("queue completed")
		}
		d.finish()
		finished = true
		return nil
	})
	if errors.Is(err, locked.ErrReentrant) {
		// Process reached from inside one of this queue's own commands.
		log.Error().Msg("executor reentered from a running command")
		return current, false
	}
	return current, finished
}

// run executes one command. It reports whether the cursor may advance.
func (e *Executor) run(d *queueData, cmd Command, current *ufo.State, log zerolog.Logger) (bool, error) {
	switch cmd.Kind {
	case KindSetState:
		// observers run on this goroutine and may panic
		err := protect(func() error {
			s, err := e.states.Update(cmd.Mutate)
			if err != nil {
				return err
			}
			*current = s
			return nil
		})
		if err != nil {
			return false, err
		}
		return true, nil

	case KindWaitCondition:
		if cmd.Until(*current) {
			return true, nil
		}
		if current.Crashed {
			return false, ufo.ErrCrashed
		}
		now := e.clock()
		if !d.waiting {
			d.waiting, d.waitSince = true, now
		}
		timeout := cmd.Timeout
		if timeout == 0 {
			timeout = e.defaultTimeout
		}
		if timeout > 0 && now-d.waitSince >= timeout {
			return false, fmt.Errorf("%w after %v", ErrWaitTimeout, now-d.waitSince)
		}
		return false, nil

	case KindExecute:
		snap := *current
		if err := protect(func() error { return cmd.Run(snap) }); err != nil {
			return false, fmt.Errorf("%w: %w", ErrCommandFailed, err)
		}
		return true, nil

	case KindLog:
		log.Info().Int("index", d.next).Str("label", cmd.Label).Msg(cmd.Message)
		return true, nil
	}
	return false, fmt.Errorf("%w: unknown kind %v", ErrInvalidCommand, cmd.Kind)
}

func protect(fn func() error) (err error) {
	defer func() {
		switch r := recover().(type) {
		case nil:
		case error:
			err = fmt.Errorf("panic: %w", r)
		default:
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
