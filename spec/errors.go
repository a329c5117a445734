package spec

import (
	"errors"
	"fmt"
)

// AssertionError marks a body error as a failed check rather than an
// unexpected error. The runner reports it with status fail.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Message)
}

// Fail returns an AssertionError with a formatted message.
func Fail(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertionError checks if the error is or wraps an AssertionError
func IsAssertionError(err error) bool {
	var assertErr *AssertionError
	return err != nil && errors.As(err, &assertErr)
}
