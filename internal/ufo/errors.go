package ufo

import (
	"errors"
	"fmt"
)

// Domain errors shared across the simulation core.
var (
	// ErrInvalidConfig indicates a configuration rejected at construction.
	ErrInvalidConfig = errors.New("ufo: invalid configuration")

	// ErrComputation indicates NaN or Inf produced during integration.
	ErrComputation = errors.New("ufo: computation produced NaN or Inf")

	// ErrReentrantUpdate indicates a state update issued from inside a
	// mutator running on the same goroutine.
	ErrReentrantUpdate = errors.New("ufo: reentrant state update")

	// ErrCrashed indicates an operation that can no longer succeed because
	// the vehicle crashed.
	ErrCrashed = errors.New("ufo: vehicle crashed")
)

// StepError wraps an error with the tick at which it happened.
type StepError struct {
	Tick    uint64
	Time    float64
	State   State
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("tick %d (t=%.4f): %v", e.Tick, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
