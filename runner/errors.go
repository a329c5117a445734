package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

var (
	// ErrRunAborted wraps the context error when a run is cancelled.
	ErrRunAborted = errors.New("run aborted")

	// ErrTargetNotFound is recorded when a replay finishes without reaching
	// the test it was started for.
	ErrTargetNotFound = errors.New("target test was not declared during replay")

	// ErrContextClosed is returned when a body registers a child after the
	// runner stopped waiting for it, e.g. after a timeout.
	ErrContextClosed = errors.New("test context is closed")

	// ErrDuplicateTest is returned when a parent declares two children with
	// the same name.
	ErrDuplicateTest = errors.New("duplicate test name")
)

// InstantiationError is fatal for the whole run: the spec factory could not
// produce an instance, so no further replays are possible.
type InstantiationError struct {
	Spec string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate spec %s: %v", e.Spec, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// IsInstantiationError checks if the error is or wraps an InstantiationError
func IsInstantiationError(err error) bool {
	var instErr *InstantiationError
	return err != nil && errors.As(err, &instErr)
}

// AncestorFailureError is recorded for a target whose replay stopped because
// a container on the path to it failed.
type AncestorFailureError struct {
	Ancestor types.Description
	Err      error
}

func (e *AncestorFailureError) Error() string {
	return fmt.Sprintf("ancestor %q failed: %v", e.Ancestor, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *AncestorFailureError) Unwrap() error {
	return e.Err
}

// DuplicateResultError reports a second result for the same test. It points
// at a bookkeeping bug in the runner, not at a failing test.
type DuplicateResultError struct {
	Description types.Description
}

func (e *DuplicateResultError) Error() string {
	return fmt.Sprintf("result for %q already recorded", e.Description)
}

// IsDuplicateResultError checks if the error is or wraps a DuplicateResultError
func IsDuplicateResultError(err error) bool {
	var dupErr *DuplicateResultError
	return err != nil && errors.As(err, &dupErr)
}

// TimeoutError is the cause of a body context that ran out of time.
type TimeoutError struct {
	Description types.Description
	Timeout     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("test %q timed out after %v", e.Description, e.Timeout)
}

// PanicError wraps a value recovered from a panicking body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("test panicked: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
