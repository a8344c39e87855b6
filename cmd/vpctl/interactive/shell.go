// Package interactive provides the interactive command-line interface
// for vpctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rfbench/vp8122a-go/pkg/command"
	"github.com/rfbench/vp8122a-go/pkg/procedure"
)

// Session is the instrument connection driven by the shell.
// Implemented by session.Session.
type Session interface {
	Send(ctx context.Context, cmd string) error
	Apply(ctx context.Context, cmds []command.Rendered) error
	Query(ctx context.Context, cmd string) (string, error)
	ResourceID() string
	Identity() string
	Connected() bool
}

// Shell handles interactive mode for vpctl.
type Shell struct {
	sess Session
	reg  *command.Registry
	out  io.Writer
	rl   *readline.Instance
}

// New creates a shell that writes to out. Call Run to read commands
// from the terminal, or Execute to drive it directly.
func New(sess Session, reg *command.Registry, out io.Writer) *Shell {
	return &Shell{sess: sess, reg: reg, out: out}
}

// Stdout returns a writer that coordinates with the readline prompt once
// Run has started, or the shell's writer before that.
func (s *Shell) Stdout() io.Writer {
	if s.rl != nil {
		return s.rl.Stdout()
	}
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    s.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	s.rl = rl
	s.out = rl.Stdout()
	defer rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return nil
		}

		if s.Execute(ctx, line) {
			cancel()
			return nil
		}
	}
}

// Execute runs one input line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) (quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "list", "ls":
		s.cmdList(args)

	case "raw":
		s.cmdRaw(ctx, input)

	case "query":
		s.cmdQuery(ctx, input)

	case "init":
		s.cmdInit(ctx)

	case "retune":
		s.cmdRetune(ctx, args)

	case "status":
		s.cmdStatus()

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true

	default:
		s.cmdApply(ctx, parts)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
VP-8122A Commands:
  Settings:
    <path> [value] ...   - Send commands in order, e.g. am.set 30 am.on
    init                 - Measurement setup (AM 30 % at 1 kHz, 20.0 dBuV, 0.531 MHz)
    retune <MHz>         - Output off, set carrier, output on
    raw <text>           - Send text as-is

  Queries:
    query <text>         - Send a query and print the reply

  General:
    list [prefix]        - List command paths
    status               - Show connection status
    help                 - Show this help
    quit                 - Exit

  Paths:
    node.op - e.g. output.dBuV, freq.MHz, control_out.off, go_to_local`)
}

// cmdApply compiles and sends path tokens.
func (s *Shell) cmdApply(ctx context.Context, tokens []string) {
	cmds, err := s.reg.Compile(tokens)
	if err != nil {
		if errors.Is(err, command.ErrUnknownPath) {
			fmt.Fprintf(s.out, "Unknown command: %v (type 'help' for commands)\n", err)
			return
		}
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.sess.Apply(ctx, cmds); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	for _, c := range cmds {
		s.printSent(c)
	}
}

func (s *Shell) printSent(c command.Rendered) {
	if c.Clamped() {
		fmt.Fprintf(s.out, "  > %s  (clamped from %s)\n", c.Text, c.Clamp.Requested)
		return
	}
	fmt.Fprintf(s.out, "  > %s\n", c.Text)
}

// cmdRaw sends the text after the keyword unchanged.
func (s *Shell) cmdRaw(ctx context.Context, input string) {
	text := rest(input)
	if text == "" {
		fmt.Fprintln(s.out, "Usage: raw <text>")
		return
	}
	if err := s.sess.Send(ctx, text); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "  > %s\n", text)
}

func (s *Shell) cmdQuery(ctx context.Context, input string) {
	text := rest(input)
	if text == "" {
		fmt.Fprintln(s.out, "Usage: query <text>")
		return
	}
	reply, err := s.sess.Query(ctx, text)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "  < %s\n", reply)
}

func (s *Shell) cmdInit(ctx context.Context) {
	cmds := procedure.InitMeasurementCommands(s.reg, procedure.DefaultSetup())
	if err := s.sess.Apply(ctx, cmds); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	for _, c := range cmds {
		s.printSent(c)
	}
}

func (s *Shell) cmdRetune(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: retune <MHz>")
		return
	}
	mhz, err := command.ParseValue(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid frequency: %v\n", err)
		return
	}
	cmds := procedure.RetuneCommands(s.reg, mhz)
	if err := s.sess.Apply(ctx, cmds); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	for _, c := range cmds {
		s.printSent(c)
	}
}

func (s *Shell) cmdList(args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = strings.ToLower(args[0])
	}
	for _, p := range s.reg.Paths() {
		if !strings.HasPrefix(strings.ToLower(p), prefix) {
			continue
		}
		if v, _ := s.reg.TakesValue(p); v {
			fmt.Fprintf(s.out, "  %s <value>\n", p)
		} else {
			fmt.Fprintf(s.out, "  %s\n", p)
		}
	}
}

func (s *Shell) cmdStatus() {
	if !s.sess.Connected() {
		fmt.Fprintln(s.out, "Not connected")
		return
	}
	fmt.Fprintf(s.out, "Resource: %s\n", s.sess.ResourceID())
	if id := s.sess.Identity(); id != "" {
		fmt.Fprintf(s.out, "Identity: %s\n", id)
	}
}

// completer offers the shell keywords and every command path.
func (s *Shell) completer() *readline.PrefixCompleter {
	words := []string{"help", "list", "raw", "query", "init", "retune", "status", "quit"}
	words = append(words, s.reg.Paths()...)
	sort.Strings(words)

	items := make([]readline.PrefixCompleterInterface, len(words))
	for i, w := range words {
		items[i] = readline.PcItem(w)
	}
	return readline.NewPrefixCompleter(items...)
}

// rest returns the input after its first word.
func rest(input string) string {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return ""
	}
	_, after, _ := strings.Cut(strings.TrimSpace(input), fields[0])
	return strings.TrimSpace(after)
}
