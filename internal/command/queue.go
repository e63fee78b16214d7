package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/ufosim/internal/locked"
)

type queueData struct {
	cmds    []Command
	next    int
	sealed  bool
	failure error

	// start of the current wait on the executor clock
	waiting   bool
	waitSince time.Duration

	done   chan struct{}
	closed bool
}

func (d *queueData) finish() {
	if !d.closed {
		d.closed = true
		close(d.done)
	}
}

func (d *queueData) fail(err error) {
	if d.failure == nil {
		d.failure = err
	}
	d.finish()
}

// Queue is an ordered script of commands. It is safe for concurrent use.
type Queue struct {
	id   uuid.UUID
	data *locked.Mutex[queueData]
	done <-chan struct{}
}

func NewQueue() *Queue {
	done := make(chan struct{})
	return &Queue{
		id:   uuid.New(),
		data: locked.NewMutex(queueData{done: done}),
		done: done,
	}
}

func (q *Queue) ID() uuid.UUID { return q.id }

// Push appends cmd. It fails once the queue is sealed or failed.
func (q *Queue) Push(cmd Command) error {
	if err := cmd.validate(); err != nil {
		return err
	}
	return q.data.With(func(d *queueData) error {
		switch {
		case d.failure != nil:
			return fmt.Errorf("%w: %v", ErrQueueFailed, d.failure)
		case d.sealed:
			return ErrQueueSealed
		}
		d.cmds = append(d.cmds, cmd)
		return nil
	})
}

// MustPush is Push for scripts built in one place; it panics on error.
func (q *Queue) MustPush(cmds ...Command) *Queue {
	for _, c := range cmds {
		if err := q.Push(c); err != nil {
			panic(err)
		}
	}
	return q
}

// read runs fn under the queue lock. Reading a queue from inside one of its
// own running commands, or from an observer they trigger, is a programming
// error and panics.
func (q *Queue) read(fn func(d *queueData)) {
	err := q.data.With(func(d *queueData) error {
		fn(d)
		return nil
	})
	if err != nil {
		panic(fmt.Errorf("command: queue %s read from one of its own commands: %w", q.id, err))
	}
}

// IsCompleted reports whether the cursor has reached the end.
func (q *Queue) IsCompleted() bool {
	var completed bool
	q.read(func(d *queueData) { completed = d.next == len(d.cmds) })
	return completed
}

// Progress returns the cursor and the number of commands.
func (q *Queue) Progress() (next, total int) {
	q.read(func(d *queueData) { next, total = d.next, len(d.cmds) })
	return next, total
}

// Err returns the failure that stopped the queue, if any.
func (q *Queue) Err() error {
	var err error
	q.read(func(d *queueData) { err = d.failure })
	return err
}

// Done is closed when the queue completes or fails.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Wait blocks until the queue is done or ctx ends. It returns the queue's
// failure, or the context error.
func (q *Queue) Wait(ctx context.Context) error {
	select {
	case <-q.done:
		return q.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) seal() error {
	return q.data.With(func(d *queueData) error {
		if d.sealed {
			return ErrQueueSealed
		}
		d.sealed = true
		return nil
	})
}

func (q *Queue) cancel(cause error) error {
	return q.data.With(func(d *queueData) error {
		d.fail(&Failure{Queue: q.id, Index: d.next, Err: cause})
		return nil
	})
}
