// Package command lets a producer, typically an autopilot, script deferred
// state changes without driving the simulation goroutine itself.
//
// A [Queue] is an append-only list of [Command] values with a cursor. Once
// handed to an [Executor] it is sealed; the executor drains it tick by tick
// against the state manager and closes [Queue.Done] when the cursor reaches
// the end or a command fails.
//
// # Lock order
//
// The executor runs commands while holding the queue's lock and reaches the
// state manager from there. The reverse direction never happens: the state
// manager knows nothing about queues, and nothing holding the state lock
// touches a queue.
package command

import (
	"fmt"
	"time"

	"github.com/san-kum/ufosim/internal/ufo"
)

type Kind int

const (
	KindSetState Kind = iota
	KindWaitCondition
	KindExecute
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindSetState:
		return "set_state"
	case KindWaitCondition:
		return "wait_condition"
	case KindExecute:
		return "execute"
	case KindLog:
		return "log"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is one deferred instruction. Only the fields of its Kind are used.
type Command struct {
	Kind  Kind
	Label string

	Mutate func(ufo.State) ufo.State

	Until   func(ufo.State) bool
	Timeout time.Duration

	Run func(ufo.State) error

	Message string
}

// SetState installs mutator(current) through the state manager.
func SetState(mutator func(ufo.State) ufo.State) Command {
	return Command{Kind: KindSetState, Mutate: mutator}
}

// WaitCondition holds the queue until pred is true for the current state.
// A timeout of zero falls back to the executor's default deadline.
func WaitCondition(pred func(ufo.State) bool, timeout time.Duration) Command {
	return Command{Kind: KindWaitCondition, Until: pred, Timeout: timeout}
}

// Execute calls fn with the current snapshot for its side effects. An error
// or a panic fails the queue.
func Execute(fn func(ufo.State) error) Command {
	return Command{Kind: KindExecute, Run: fn}
}

func Log(message string) Command {
	return Command{Kind: KindLog, Message: message}
}

// Labeled returns a copy of c carrying label in logs and failures.
func (c Command) Labeled(label string) Command {
	c.Label = label
	return c
}

func (c Command) validate() error {
	var missing bool
	switch c.Kind {
	case KindSetState:
		missing = c.Mutate == nil
	case KindWaitCondition:
		missing = c.Until == nil || c.Timeout < 0
	case KindExecute:
		missing = c.Run == nil
	case KindLog:
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrInvalidCommand, c.Kind)
	}
	if missing {
		return fmt.Errorf("%w: %v without a function or with a negative timeout", ErrInvalidCommand, c.Kind)
	}
	return nil
}
