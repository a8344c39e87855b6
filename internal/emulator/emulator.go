// Package emulator keeps the front-panel state of a simulated VP-8122A.
//
// Commands are validated against the same table the registry renders
// from, so every line vpctl can produce is accepted and anything else is
// counted as rejected. A query "XX?" answers with the last accepted
// command of subsystem XX; the real generator does not answer queries
// other than the identity, so clients must not rely on them.
package emulator

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rfbench/vp8122a-go/pkg/command"
)

// DefaultIdentity is the reply to "*IDN?".
const DefaultIdentity = "Panasonic,VP-8122A,0,1.00"

// Wire tokens of the capability commands.
const (
	tokenOn       = "ON"
	tokenOff      = "OF"
	tokenUp       = "UP"
	tokenDown     = "DN"
	token400Hz    = "T4"
	token1kHz     = "T1"
	tokenExternal = "XD"
)

// Config configures an Emulator.
type Config struct {
	// Identity answers "*IDN?" (default: DefaultIdentity).
	Identity string

	// Table is the accepted command table (default: command.VP8122A()).
	Table []command.NodeSpec

	// Logger receives one debug line per command (default: slog.Default()).
	Logger *slog.Logger
}

// Setting is the emulated state of one subsystem.
type Setting struct {
	// On is the toggle state.
	On bool

	// Value is the last numeric value and Unit its suffix.
	Value float64
	Unit  string

	// Rate is the modulation source token (T4, T1 or XD).
	Rate string

	// Choice is the name of the last selected choice (e.g. "mono_int").
	Choice string

	// Last is the last accepted command line.
	Last string
}

// State is a snapshot of the emulated instrument.
type State struct {
	// Remote is set by any accepted command and cleared by go-to-local.
	Remote bool

	// Settings are keyed by subsystem prefix ("AM", "FR").
	Settings map[string]Setting

	// Rejected counts unknown or malformed commands.
	Rejected int
}

// Emulator answers raw socket lines like the instrument.
// It is safe for concurrent use.
type Emulator struct {
	identity string
	logger   *slog.Logger
	nodes    map[string]command.NodeSpec

	mu       sync.Mutex
	remote   bool
	settings map[string]*Setting
	rejected int
}

// New creates an emulator in local mode with every subsystem off.
func New(cfg Config) *Emulator {
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if cfg.Table == nil {
		cfg.Table = command.VP8122A()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Emulator{
		identity: cfg.Identity,
		logger:   cfg.Logger,
		nodes:    make(map[string]command.NodeSpec, len(cfg.Table)),
		settings: make(map[string]*Setting, len(cfg.Table)),
	}
	for _, n := range cfg.Table {
		e.nodes[strings.ToUpper(n.Prefix)] = n
	}
	return e
}

// Handle processes one received line. It matches transport.Handler.
func (e *Emulator) Handle(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.HasSuffix(line, "?") {
		return e.query(strings.ToUpper(strings.TrimSuffix(line, "?")))
	}

	fields := strings.Fields(line)
	prefix := strings.ToUpper(fields[0])
	node, ok := e.nodes[prefix]
	if !ok || len(fields) > 2 {
		e.reject(line, "unknown command")
		return "", false
	}

	if node.Literal {
		if len(fields) != 1 {
			e.reject(line, "unexpected argument")
			return "", false
		}
		e.remote = false
		e.logger.Debug("go to local", "line", line)
		return "", false
	}
	if len(fields) != 2 {
		e.reject(line, "missing argument")
		return "", false
	}

	s := e.setting(prefix)
	if reason := apply(node, s, strings.ToUpper(fields[1])); reason != "" {
		e.reject(line, reason)
		return "", false
	}
	s.Last = prefix + " " + fields[1]
	e.remote = true
	e.logger.Debug("command", "line", line)
	return "", false
}

// State returns a snapshot of the emulated instrument.
func (e *Emulator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Remote:   e.remote,
		Settings: make(map[string]Setting, len(e.settings)),
		Rejected: e.rejected,
	}
	for k, v := range e.settings {
		st.Settings[k] = *v
	}
	return st
}

func (e *Emulator) query(what string) (string, bool) {
	if what == "*IDN" {
		return e.identity, true
	}
	if s, ok := e.settings[what]; ok && s.Last != "" {
		return s.Last, true
	}
	e.logger.Debug("query without reply", "query", what+"?")
	return "", false
}

func (e *Emulator) setting(prefix string) *Setting {
	s, ok := e.settings[prefix]
	if !ok {
		s = &Setting{}
		e.settings[prefix] = s
	}
	return s
}

func (e *Emulator) reject(line, reason string) {
	e.rejected++
	e.logger.Warn("command rejected", "line", line, "reason", reason)
}

// apply updates s from arg and returns a reason when arg is not accepted.
// Choices are matched before levels since "50" is both an impedance token
// and a valid unitless number.
func apply(node command.NodeSpec, s *Setting, arg string) string {
	switch {
	case node.Toggle && arg == tokenOn:
		s.On = true
		return ""
	case node.Toggle && arg == tokenOff:
		s.On = false
		return ""
	case node.Step && (arg == tokenUp || arg == tokenDown):
		return step(node, s, arg == tokenUp)
	case node.Rate && (arg == token400Hz || arg == token1kHz || arg == tokenExternal):
		s.Rate = arg
		return ""
	}

	for _, c := range node.Choices {
		if strings.EqualFold(c.Token, arg) {
			s.Choice = c.Name
			return ""
		}
	}

	return level(node, s, arg)
}

func level(node command.NodeSpec, s *Setting, arg string) string {
	// Suffixed levels first, so "0.531MZ" is not parsed by a unitless level.
	for _, pass := range []bool{true, false} {
		for _, l := range node.Levels {
			if (l.Suffix != "") != pass {
				continue
			}
			num := arg
			if l.Suffix != "" {
				if !strings.HasSuffix(arg, strings.ToUpper(l.Suffix)) {
					continue
				}
				num = strings.TrimSuffix(arg, strings.ToUpper(l.Suffix))
			}
			f, err := strconv.ParseFloat(num, 64)
			if err != nil || math.IsNaN(f) {
				continue
			}
			if f < l.Min || f > l.Max {
				return "value out of range"
			}
			s.Value = f
			s.Unit = l.Suffix
			return ""
		}
	}
	if len(node.Levels) == 0 {
		return "unsupported argument"
	}
	return "invalid value"
}

// step moves the first unitless level by one within its bounds.
func step(node command.NodeSpec, s *Setting, up bool) string {
	for _, l := range node.Levels {
		if l.Suffix != "" {
			continue
		}
		v := s.Value - 1
		if up {
			v = s.Value + 1
		}
		s.Value = math.Min(math.Max(v, l.Min), l.Max)
		s.Unit = ""
		return ""
	}
	return "no steppable level"
}
