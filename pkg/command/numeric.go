package command

import "math"

// Numeric renders "{prefix} {value}{suffix}" with the value clamped into
// [min, max].
type Numeric struct {
	path   string
	name   string
	prefix string
	suffix string
	min    float64
	max    float64
	prec   int
	report func(RangeViolation)
}

// Rendered is the result of rendering a command.
type Rendered struct {
	// Text is the exact string sent to the device.
	Text string

	// Clamp is non-nil when a numeric argument was corrected.
	Clamp *RangeViolation
}

// String returns the command text.
func (r Rendered) String() string { return r.Text }

// Clamped reports whether the argument was corrected.
func (r Rendered) Clamped() bool { return r.Clamp != nil }

// Path returns the registry path of the node.
func (n *Numeric) Path() string { return n.path }

// Min returns the inclusive lower bound.
func (n *Numeric) Min() float64 { return n.min }

// Max returns the inclusive upper bound.
func (n *Numeric) Max() float64 { return n.max }

// Suffix returns the unit suffix appended after the value.
func (n *Numeric) Suffix() string { return n.suffix }

// Clamp returns f limited to [min, max] and whether it was changed.
// NaN is treated as below range.
func (n *Numeric) Clamp(f float64) (float64, bool) {
	switch {
	case math.IsNaN(f):
		return n.min, true
	case f > n.max:
		return n.max, true
	case f < n.min:
		return n.min, true
	}
	return f, false
}

// Render clamps v and renders the command. A clamp is reported to the
// registry's handler and returned on the result.
func (n *Numeric) Render(v Value) Rendered {
	applied := v
	var violation *RangeViolation
	if f, clamped := n.Clamp(v.f); clamped {
		applied = v.rebase(f, n.prec)
		violation = &RangeViolation{
			Path:      n.path,
			Requested: v,
			Applied:   applied,
			Min:       n.min,
			Max:       n.max,
		}
		if n.report != nil {
			n.report(*violation)
		}
	}
	return Rendered{
		Text:  n.prefix + " " + applied.String() + n.suffix,
		Clamp: violation,
	}
}

// Val renders the command text for v.
func (n *Numeric) Val(v Value) string {
	return n.Render(v).Text
}
