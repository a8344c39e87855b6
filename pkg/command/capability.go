package command

import "strings"

// Toggle renders the on/off pair of a node.
type Toggle struct {
	prefix string
}

// On returns "{prefix} ON".
func (t Toggle) On() string { return t.prefix + " ON" }

// Off returns "{prefix} OF". The device expects the two-letter form.
func (t Toggle) Off() string { return t.prefix + " OF" }

// Step renders the increment/decrement pair of a node.
type Step struct {
	prefix string
}

// Up returns "{prefix} UP".
func (s Step) Up() string { return s.prefix + " UP" }

// Down returns "{prefix} DN".
func (s Step) Down() string { return s.prefix + " DN" }

// RateSelect renders the modulation source selection of a node.
type RateSelect struct {
	prefix string
}

// Set400Hz selects the internal 400 Hz oscillator.
func (r RateSelect) Set400Hz() string { return r.prefix + " T4" }

// Set1kHz selects the internal 1 kHz oscillator.
func (r RateSelect) Set1kHz() string { return r.prefix + " T1" }

// SetExternal selects the external modulation input.
func (r RateSelect) SetExternal() string { return r.prefix + " XD" }

// Literal is a command without arguments, e.g. "GTL".
type Literal struct {
	text string
}

// String returns the command text.
func (l Literal) String() string { return l.text }

// Choice is one member of a fixed enumeration.
type Choice struct {
	// Name is the symbolic name used in registry paths.
	Name string

	// Token is the argument sent to the device.
	Token string
}

// Enum renders "{prefix} {token}" for a fixed set of choices.
type Enum struct {
	prefix  string
	choices []Choice
}

// Select returns the command for the named choice. Names are matched
// case-insensitively.
func (e Enum) Select(name string) (string, bool) {
	for _, c := range e.choices {
		if strings.EqualFold(c.Name, name) {
			return e.prefix + " " + c.Token, true
		}
	}
	return "", false
}

// Choices returns a copy of the enumeration members in table order.
func (e Enum) Choices() []Choice {
	out := make([]Choice, len(e.choices))
	copy(out, e.choices)
	return out
}

// text is used by the typed wrappers whose choices are checked when the
// registry is built.
func (e Enum) text(name string) string {
	s, _ := e.Select(name)
	return s
}
