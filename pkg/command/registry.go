package command

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	onClamp func(RangeViolation)
}

// WithLogger sets the logger that receives clamp warnings.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClampHandler replaces the clamp warning with a custom handler.
func WithClampHandler(fn func(RangeViolation)) Option {
	return func(o *options) { o.onClamp = fn }
}

func (o options) reporter() func(RangeViolation) {
	if o.onClamp != nil {
		return o.onClamp
	}
	logger := o.logger
	return func(v RangeViolation) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		l.Warn("command value out of range, clamped",
			"path", v.Path,
			"requested", v.Requested.String(),
			"applied", v.Applied.String(),
			"min", v.Min,
			"max", v.Max)
	}
}

// Registry is the fixed tree of command nodes for one device. It is built
// once and is safe for concurrent reads.
type Registry struct {
	AM                Modulation
	FM                Modulation
	Output            Output
	Freq              Frequency
	ControlOut        ControlOutput
	PilotSignal       SwitchedLevel
	MainAndSubCh      ChannelMode
	NegPeakClipper    Toggle
	PreEmphasis       PreEmphasis
	TotalFMDeviation  *Numeric
	CompositeOutLevel *Numeric
	GoToLocal         Literal

	nodes map[string]*Node
	order []string
}

// NewRegistry builds a registry from a command table. The table must
// declare every node the typed accessors need; extra nodes are reachable
// through Render.
func NewRegistry(table []NodeSpec, opts ...Option) (*Registry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	report := o.reporter()

	r := &Registry{nodes: make(map[string]*Node, len(table))}
	for i, spec := range table {
		node, err := buildNode(spec, report)
		if err != nil {
			return nil, fmt.Errorf("%w: node[%d] %q: %v", ErrInvalidTable, i, spec.Name, err)
		}
		key := strings.ToLower(node.name)
		if _, dup := r.nodes[key]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrInvalidTable, spec.Name)
		}
		r.nodes[key] = node
		r.order = append(r.order, node.name)
	}

	if err := r.bind(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on an invalid table.
func MustRegistry(table []NodeSpec, opts ...Option) *Registry {
	r, err := NewRegistry(table, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a registry for the VP-8122A table.
func Default(opts ...Option) *Registry {
	return MustRegistry(VP8122A(), opts...)
}

// Node returns the node registered under name.
func (r *Registry) Node(name string) (*Node, bool) {
	n, ok := r.nodes[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// Nodes returns the node names in table order.
func (r *Registry) Nodes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Paths returns every renderable path in table order.
func (r *Registry) Paths() []string {
	var paths []string
	for _, name := range r.order {
		n := r.nodes[strings.ToLower(name)]
		for _, op := range n.Ops() {
			paths = append(paths, n.path(op))
		}
	}
	return paths
}

// TakesValue reports whether path renders a numeric argument.
func (r *Registry) TakesValue(path string) (bool, error) {
	n, op, err := r.lookup(path)
	if err != nil {
		return false, err
	}
	return n.TakesValue(op), nil
}

// Render renders the command at path ("am.set", "freq.MHz", "go_to_local").
// arg is required for numeric paths and must be empty otherwise.
func (r *Registry) Render(path, arg string) (Rendered, error) {
	n, op, err := r.lookup(path)
	if err != nil {
		return Rendered{}, err
	}
	return n.Render(op, arg)
}

// Compile renders a sequence of path tokens in order. A numeric path
// consumes the following token as its value:
//
//	am.set 30 am.on freq.MHz 0.531
func (r *Registry) Compile(args []string) ([]Rendered, error) {
	var out []Rendered
	for i := 0; i < len(args); i++ {
		n, op, err := r.lookup(args[i])
		if err != nil {
			return nil, err
		}
		var arg string
		if n.TakesValue(op) {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s: %w", args[i], ErrMissingValue)
			}
			i++
			arg = args[i]
		}
		cmd, err := n.Render(op, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (r *Registry) lookup(path string) (*Node, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrUnknownPath)
	}
	name, op, _ := strings.Cut(path, ".")
	n, ok := r.nodes[strings.ToLower(name)]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return n, op, nil
}

func buildNode(spec NodeSpec, report func(RangeViolation)) (*Node, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" || strings.ContainsAny(name, ". \t") {
		return nil, errors.New("invalid name")
	}
	prefix := strings.TrimSpace(spec.Prefix)
	if prefix == "" {
		return nil, errors.New("empty prefix")
	}

	n := &Node{name: name, prefix: prefix}
	if spec.Toggle {
		n.toggle = &Toggle{prefix: prefix}
	}
	if spec.Step {
		n.step = &Step{prefix: prefix}
	}
	if spec.Rate {
		n.rate = &RateSelect{prefix: prefix}
	}
	if spec.Literal {
		n.literal = &Literal{text: prefix}
	}

	for _, l := range spec.Levels {
		if math.IsNaN(l.Min) || math.IsNaN(l.Max) || l.Min > l.Max {
			return nil, fmt.Errorf("level %q: bounds [%v, %v]", l.Name, l.Min, l.Max)
		}
		if l.Precision < 0 {
			return nil, fmt.Errorf("level %q: negative precision %d", l.Name, l.Precision)
		}
		n.levels = append(n.levels, &Numeric{
			path:   n.path(l.Name),
			name:   l.Name,
			prefix: prefix,
			suffix: l.Suffix,
			min:    l.Min,
			max:    l.Max,
			prec:   l.Precision,
			report: report,
		})
	}

	if len(spec.Choices) > 0 {
		choices := make([]Choice, 0, len(spec.Choices))
		for _, c := range spec.Choices {
			if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Token) == "" {
				return nil, fmt.Errorf("choice %q: empty name or token", c.Name)
			}
			choices = append(choices, c)
		}
		n.enum = &Enum{prefix: prefix, choices: choices}
	}

	seen := make(map[string]bool)
	for _, op := range n.Ops() {
		key := strings.ToLower(op)
		if seen[key] {
			return nil, fmt.Errorf("duplicate operation %q", op)
		}
		seen[key] = true
	}
	return n, nil
}

// binder wires the typed accessors and collects everything the table lacks.
type binder struct {
	r    *Registry
	errs []error
}

func (r *Registry) bind() error {
	b := &binder{r: r}

	am := b.node("am")
	r.AM = Modulation{Toggle: b.toggle(am), RateSelect: b.rate(am), Set: b.level(am, "set")}
	fm := b.node("fm")
	r.FM = Modulation{Toggle: b.toggle(fm), RateSelect: b.rate(fm), Set: b.level(fm, "set")}

	out := b.node("output")
	r.Output = Output{
		Toggle:    b.toggle(out),
		DBm:       b.level(out, "dBm"),
		DBuV:      b.level(out, "dBuV"),
		MV:        b.level(out, "mV"),
		UV:        b.level(out, "uV"),
		impedance: b.enum(out, "imp_50R", "imp_75R"),
	}

	freq := b.node("freq")
	r.Freq = Frequency{MHz: b.level(freq, "MHz"), KHz: b.level(freq, "kHz")}

	co := b.node("control_out")
	r.ControlOut = ControlOutput{Toggle: b.toggle(co), Step: b.step(co), Set: b.level(co, "set")}

	pl := b.node("pilot_signal")
	r.PilotSignal = SwitchedLevel{Toggle: b.toggle(pl), Set: b.level(pl, "set")}

	r.MainAndSubCh = ChannelMode{enum: b.enum(b.node("main_and_sub_ch"),
		"off", "mono_int", "l_eq_r_int", "l_int", "r_int", "l_eq_minus_r_int",
		"mono_ext", "l_eq_r_ext", "l_ext", "r_ext", "l_eq_minus_r_ext", "l_r_ext")}
	r.NegPeakClipper = b.toggle(b.node("neg_peak_clipper"))
	r.PreEmphasis = PreEmphasis{enum: b.enum(b.node("fm_stereo_pre_emphasis"),
		"off", "25us", "50us", "75us")}
	r.TotalFMDeviation = b.level(b.node("total_fm_deviation"), "")
	r.CompositeOutLevel = b.level(b.node("composite_signal_out_level"), "")
	r.GoToLocal = b.literal(b.node("go_to_local"))

	return errors.Join(b.errs...)
}

func (b *binder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *binder) node(name string) *Node {
	if n, ok := b.r.nodes[name]; ok {
		return n
	}
	b.fail("missing node %q", name)
	return &Node{name: name}
}

func (b *binder) toggle(n *Node) Toggle {
	if n.toggle == nil {
		b.fail("%s: no on/off", n.name)
		return Toggle{}
	}
	return *n.toggle
}

func (b *binder) step(n *Node) Step {
	if n.step == nil {
		b.fail("%s: no up/down", n.name)
		return Step{}
	}
	return *n.step
}

func (b *binder) rate(n *Node) RateSelect {
	if n.rate == nil {
		b.fail("%s: no rate select", n.name)
		return RateSelect{}
	}
	return *n.rate
}

func (b *binder) literal(n *Node) Literal {
	if n.literal == nil {
		b.fail("%s: not a literal", n.name)
		return Literal{}
	}
	return *n.literal
}

func (b *binder) level(n *Node, name string) *Numeric {
	if l := n.level(name); l != nil {
		return l
	}
	b.fail("missing level %s", n.path(name))
	return &Numeric{path: n.path(name)}
}

func (b *binder) enum(n *Node, names ...string) Enum {
	if n.enum == nil {
		b.fail("%s: no choices", n.name)
		return Enum{}
	}
	for _, name := range names {
		if _, ok := n.enum.Select(name); !ok {
			b.fail("missing choice %s", n.path(name))
		}
	}
	return *n.enum
}
