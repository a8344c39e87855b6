package command

import (
	"errors"
	"fmt"
)

// Command errors.
var (
	ErrUnknownPath     = errors.New("unknown command path")
	ErrMissingValue    = errors.New("command requires a value")
	ErrUnexpectedValue = errors.New("command takes no value")
	ErrInvalidValue    = errors.New("invalid numeric value")
	ErrOutOfRange      = errors.New("value out of range")
	ErrInvalidTable    = errors.New("invalid command table")
)

// RangeViolation describes a numeric value that was clamped into range.
// It is reported, not returned: the command is still rendered with Applied.
type RangeViolation struct {
	// Path is the registry path of the numeric node (e.g. "am.set").
	Path string

	// Requested is the value the caller asked for.
	Requested Value

	// Applied is the bound that was rendered instead.
	Applied Value

	// Min and Max are the node's inclusive bounds.
	Min float64
	Max float64
}

// Error implements error.
func (r RangeViolation) Error() string {
	return fmt.Sprintf("%s: %s out of range [%s, %s], using %s",
		r.Path, r.Requested, formatFloat(r.Min, -1), formatFloat(r.Max, -1), r.Applied)
}

// Unwrap lets errors.Is match ErrOutOfRange.
func (r RangeViolation) Unwrap() error {
	return ErrOutOfRange
}
