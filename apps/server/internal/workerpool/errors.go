package workerpool

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("task timed out")

// ErrStopped is returned for submissions after Stop and for tasks still queued
// when the pool stops.
var ErrStopped = errors.New("worker pool stopped")

// TimeoutError is delivered to a waiter when no outcome arrived before the
// task deadline. Queued reports whether the task was still waiting for a
// worker when it expired.
type TimeoutError struct {
	TaskID string
	After  time.Duration
	Queued bool
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s", e.TaskID, e.After)
}

// Is reports ErrTimeout equivalence.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	TaskID string
	Value  any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.TaskID, e.Value)
}
