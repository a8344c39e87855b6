package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Bus errors.
var (
	// ErrTimeout marks timeout-class failures.
	ErrTimeout = errors.New("bus timeout")

	// ErrClosed indicates I/O on a closed resource.
	ErrClosed = errors.New("resource closed")

	// ErrInvalidResourceID indicates a malformed resource id.
	ErrInvalidResourceID = errors.New("invalid resource id")

	// ErrUnsupportedInterface indicates no opener is registered for the bus interface.
	ErrUnsupportedInterface = errors.New("unsupported bus interface")
)

// IsTimeout reports whether err is a timeout-class failure: ErrTimeout,
// a net.Error timeout, an expired deadline or a context deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify wraps timeout-class failures so they match ErrTimeout while
// keeping the cause.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
