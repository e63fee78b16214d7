package command

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCommand indicates a command missing the function its kind needs.
	ErrInvalidCommand = errors.New("command: invalid command")

	// ErrQueueSealed indicates a push to a queue already handed to the executor.
	ErrQueueSealed = errors.New("command: queue sealed")

	// ErrQueueFailed indicates a push to, or a wait on, a failed queue.
	ErrQueueFailed = errors.New("command: queue failed")

	// ErrWaitTimeout indicates a wait condition that did not become true
	// before its deadline.
	ErrWaitTimeout = errors.New("command: wait condition timed out")

	// ErrCommandFailed indicates an Execute closure that returned an error
	// or panicked.
	ErrCommandFailed = errors.New("command: execute failed")

	// ErrCanceled indicates a queue dropped because the executor stopped.
	ErrCanceled = errors.New("command: canceled")
)

// Failure records which command failed a queue and why.
type Failure struct {
	Queue uuid.UUID
	Index int
	Kind  Kind
	Label string
	Err   error
}

func (f *Failure) Error() string {
	if f.Label != "" {
		return fmt.Sprintf("queue %s: command %d (%v %q): %v", f.Queue, f.Index, f.Kind, f.Label, f.Err)
	}
	return fmt.Sprintf("queue %s: command %d (%v): %v", f.Queue, f.Index, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
