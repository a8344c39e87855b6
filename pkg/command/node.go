package command

import (
	"fmt"
	"strings"
)

// Operation names shared by all nodes. Level and choice names come from
// the table.
const (
	OpOn       = "on"
	OpOff      = "off"
	OpUp       = "up"
	OpDown     = "down"
	Op400Hz    = "400hz"
	Op1kHz     = "1khz"
	OpExternal = "ext"
)

// Node is one named, immutable entry of a registry. It owns the capability
// builders declared for it in the table.
type Node struct {
	name   string
	prefix string

	toggle  *Toggle
	step    *Step
	rate    *RateSelect
	literal *Literal
	levels  []*Numeric
	enum    *Enum
}

// Name returns the registry name.
func (n *Node) Name() string { return n.name }

// Prefix returns the device subsystem token.
func (n *Node) Prefix() string { return n.prefix }

// Levels returns the numeric setters in table order.
func (n *Node) Levels() []*Numeric {
	out := make([]*Numeric, len(n.levels))
	copy(out, n.levels)
	return out
}

// Level returns the numeric setter with the given name.
func (n *Node) Level(name string) (*Numeric, bool) {
	l := n.level(name)
	return l, l != nil
}

// Ops returns the operations accepted by Render in a stable order. The
// empty string is the node itself (a literal or a bare numeric).
func (n *Node) Ops() []string {
	var ops []string
	if n.literal != nil {
		ops = append(ops, "")
	}
	if n.toggle != nil {
		ops = append(ops, OpOn, OpOff)
	}
	if n.step != nil {
		ops = append(ops, OpUp, OpDown)
	}
	if n.rate != nil {
		ops = append(ops, Op400Hz, Op1kHz, OpExternal)
	}
	for _, l := range n.levels {
		ops = append(ops, l.name)
	}
	if n.enum != nil {
		for _, c := range n.enum.choices {
			ops = append(ops, c.Name)
		}
	}
	return ops
}

// TakesValue reports whether op renders a numeric argument.
func (n *Node) TakesValue(op string) bool {
	return n.level(op) != nil
}

// Render renders op. Numeric operations parse arg with ParseValue; all
// other operations reject a non-empty arg.
func (n *Node) Render(op, arg string) (Rendered, error) {
	arg = strings.TrimSpace(arg)
	if lvl := n.level(op); lvl != nil {
		if arg == "" {
			return Rendered{}, fmt.Errorf("%s: %w", n.path(op), ErrMissingValue)
		}
		v, err := ParseValue(arg)
		if err != nil {
			return Rendered{}, fmt.Errorf("%s: %w", n.path(op), err)
		}
		return lvl.Render(v), nil
	}

	text, ok := n.fixed(op)
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownPath, n.path(op))
	}
	if arg != "" {
		return Rendered{}, fmt.Errorf("%s: %w", n.path(op), ErrUnexpectedValue)
	}
	return Rendered{Text: text}, nil
}

func (n *Node) level(op string) *Numeric {
	for _, l := range n.levels {
		if strings.EqualFold(l.name, op) {
			return l
		}
	}
	return nil
}

func (n *Node) fixed(op string) (string, bool) {
	switch op = strings.ToLower(op); {
	case op == "" && n.literal != nil:
		return n.literal.String(), true
	case op == OpOn && n.toggle != nil:
		return n.toggle.On(), true
	case op == OpOff && n.toggle != nil:
		return n.toggle.Off(), true
	case op == OpUp && n.step != nil:
		return n.step.Up(), true
	case op == OpDown && n.step != nil:
		return n.step.Down(), true
	case op == Op400Hz && n.rate != nil:
		return n.rate.Set400Hz(), true
	case op == Op1kHz && n.rate != nil:
		return n.rate.Set1kHz(), true
	case op == OpExternal && n.rate != nil:
		return n.rate.SetExternal(), true
	}
	if n.enum != nil {
		return n.enum.Select(op)
	}
	return "", false
}

func (n *Node) path(op string) string {
	if op == "" {
		return n.name
	}
	return n.name + "." + op
}
