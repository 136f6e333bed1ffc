package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown or expired job id.
	ErrNotFound = errors.New("runner: job not found")

	// ErrClosed indicates Submit was called after Close.
	ErrClosed = errors.New("runner: closed")

	// ErrEmptyNamespace indicates Submit was called without a namespace.
	ErrEmptyNamespace = errors.New("runner: namespace is required")

	// ErrNilCompute indicates New was called without a computation.
	ErrNilCompute = errors.New("runner: compute function is nil")

	// ErrComputation matches every *ComputationError.
	ErrComputation = errors.New("runner: computation failed")

	// ErrInvalidResult indicates a computation returned bytes that are not JSON.
	ErrInvalidResult = errors.New("runner: result is not valid JSON")
)

// ComputationError records why a computation unit failed.
type ComputationError struct {
	JobID     string
	Namespace string
	Err       error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("runner: computation %s in %s failed: %v", e.JobID, e.Namespace, e.Err)
}

// Unwrap matches ErrComputation and the underlying cause.
func (e *ComputationError) Unwrap() []error {
	return []error{ErrComputation, e.Err}
}

// PanicError is the cause recorded when a computation panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
