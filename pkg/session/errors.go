package session

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	ErrNotFound         = errors.New("no matching resource")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrTimeout          = errors.New("transport timeout")
)

// RetryError is returned when a query used up its attempts.
// It matches ErrTimeout and the last attempt's error.
type RetryError struct {
	// Command is the query text.
	Command string

	// Attempts is the number of attempts made.
	Attempts int

	// Last is the error of the final attempt.
	Last error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("query %q failed after %d attempts: %v", e.Command, e.Attempts, e.Last)
}

// Unwrap returns ErrTimeout and the last cause.
func (e *RetryError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Last}
}
