// Command vpctl drives a Panasonic VP-8122A signal generator.
//
// Positional arguments are command paths compiled in order; a numeric
// path takes the following argument as its value. The instrument is
// selected from static resource ids, a Prologix GPIB controller and mDNS
// discovery.
//
// Usage:
//
//	vpctl [flags] [path [value]]...
//
// Flags:
//
//	-config string      Configuration file (.yaml, .yml or .toml)
//	-resource string    Select the instrument by resource id substring
//	-resources string   Comma-separated static resource ids
//	-discover           Browse mDNS for raw socket instruments
//	-prologix string    Prologix controller serial port for GPIB resources
//	-capture string     Protocol capture file (read with vp-log)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-log-format string  Log format: text, json (default "text")
//	-otlp string        OTLP/HTTP trace endpoint
//	-list               List resources and exit
//	-dry-run            Print the commands without connecting
//	-init               Run the measurement setup first
//	-retune string      Move the carrier to the given MHz
//	-query string       Send a query and print the reply (repeatable)
//	-i                  Start the interactive shell
//
// Examples:
//
//	# Measurement setup on the first GPIB instrument
//	vpctl -prologix /dev/ttyUSB0 -resource GPIB0::7 -init
//
//	# Set 30 % AM at 1 kHz and switch the output on
//	vpctl -resources TCPIP0::10.0.0.7::5025::SOCKET am.set 30 am.1khz control_out.on
//
//	# Show what would be sent
//	vpctl -dry-run output.dBuV 20.0 freq.MHz 0.531
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rfbench/vp8122a-go/cmd/vpctl/interactive"
	"github.com/rfbench/vp8122a-go/internal/config"
	"github.com/rfbench/vp8122a-go/internal/logging"
	"github.com/rfbench/vp8122a-go/internal/tracing"
	"github.com/rfbench/vp8122a-go/pkg/command"
	"github.com/rfbench/vp8122a-go/pkg/discovery"
	"github.com/rfbench/vp8122a-go/pkg/log"
	"github.com/rfbench/vp8122a-go/pkg/procedure"
	"github.com/rfbench/vp8122a-go/pkg/session"
	"github.com/rfbench/vp8122a-go/pkg/transport"
)

// disconnectTimeout bounds the go-to-local command on exit.
const disconnectTimeout = 5 * time.Second

// queryList collects repeated -query flags.
type queryList []string

func (q *queryList) String() string { return strings.Join(*q, ",") }

func (q *queryList) Set(s string) error {
	*q = append(*q, s)
	return nil
}

// options holds the flags that are not part of the config file.
type options struct {
	configPath  string
	list        bool
	dryRun      bool
	init        bool
	retune      string
	queries     queryList
	interactive bool
	args        []string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "vpctl: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout io.Writer) error {
	opts, cfg, err := parseArgs(argv)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, "vpctl", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	reg := command.Default(command.WithLogger(logger))

	cmds, err := plan(reg, opts)
	if err != nil {
		return err
	}
	if opts.dryRun {
		for _, c := range cmds {
			fmt.Fprintln(stdout, c.Text)
		}
		return nil
	}

	mgr := newManager(cfg, logger)
	if opts.list {
		ids, err := mgr.ListResources(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(stdout, id)
		}
		return nil
	}

	scfg := cfg.SessionConfig()
	scfg.Logger = logger
	protocolLogger, captureCloser, err := newProtocolLogger(cfg.Capture, logger)
	if err != nil {
		return err
	}
	defer captureCloser()
	scfg.ProtocolLogger = protocolLogger

	sess := session.New(mgr, scfg)
	id, err := sess.Connect(ctx, cfg.Filter())
	if err != nil {
		return err
	}
	logger.Info("using instrument", "resource", id, "identity", sess.Identity())
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer dcancel()
		if err := sess.Disconnect(dctx); err != nil {
			logger.Warn("disconnect failed", "error", err)
		}
	}()

	if err := sess.Apply(ctx, cmds); err != nil {
		return err
	}
	for _, q := range opts.queries {
		reply, err := sess.Query(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s\n", q, reply)
	}

	if opts.interactive {
		return interactive.New(sess, reg, stdout).Run(ctx, cancel)
	}
	return nil
}

// parseArgs layers flags over the loaded configuration.
func parseArgs(argv []string) (options, config.Config, error) {
	var opts options
	fs := flag.NewFlagSet("vpctl", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Configuration file (.yaml, .yml or .toml)")
	resource := fs.String("resource", "", "Select the instrument by resource id substring")
	resources := fs.String("resources", "", "Comma-separated static resource ids")
	discover := fs.Bool("discover", false, "Browse mDNS for raw socket instruments")
	prologix := fs.String("prologix", "", "Prologix controller serial port for GPIB resources")
	capture := fs.String("capture", "", "Protocol capture file")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: text, json")
	otlp := fs.String("otlp", "", "OTLP/HTTP trace endpoint")
	fs.BoolVar(&opts.list, "list", false, "List resources and exit")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print the commands without connecting")
	fs.BoolVar(&opts.init, "init", false, "Run the measurement setup first")
	fs.StringVar(&opts.retune, "retune", "", "Move the carrier to the given MHz")
	fs.Var(&opts.queries, "query", "Send a query and print the reply (repeatable)")
	fs.BoolVar(&opts.interactive, "i", false, "Start the interactive shell")

	if err := fs.Parse(argv); err != nil {
		return opts, config.Config{}, err
	}
	opts.args = fs.Args()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return opts, config.Config{}, err
	}

	// Only flags given on the command line override the file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "resource":
			cfg.Resource = *resource
		case "resources":
			cfg.Resources = splitList(*resources)
		case "discover":
			cfg.Discover = *discover
		case "prologix":
			cfg.Prologix.Port = *prologix
		case "capture":
			cfg.Capture = *capture
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "otlp":
			cfg.OTLPEndpoint = *otlp
		}
	})

	if err := cfg.Validate(); err != nil {
		return opts, config.Config{}, err
	}
	return opts, cfg, nil
}

// plan renders the commands to send after connecting: the measurement
// setup, then the retune, then the positional paths.
func plan(reg *command.Registry, opts options) ([]command.Rendered, error) {
	var cmds []command.Rendered
	if opts.init {
		cmds = append(cmds, procedure.InitMeasurementCommands(reg, procedure.DefaultSetup())...)
	}
	if opts.retune != "" {
		mhz, err := command.ParseValue(opts.retune)
		if err != nil {
			return nil, fmt.Errorf("retune: %w", err)
		}
		cmds = append(cmds, procedure.RetuneCommands(reg, mhz)...)
	}
	compiled, err := reg.Compile(opts.args)
	if err != nil {
		return nil, err
	}
	return append(cmds, compiled...), nil
}

// newManager wires the resource sources enabled by cfg.
func newManager(cfg config.Config, logger *slog.Logger) *transport.Manager {
	mopts := []transport.ManagerOption{
		transport.WithManagerLogger(logger),
		transport.WithResources(cfg.Resources...),
		transport.WithOpener(transport.InterfaceTCPIP, &transport.SocketOpener{
			Timeout:    cfg.Timeout,
			Terminator: cfg.Terminator,
		}),
	}
	if cfg.Prologix.Port != "" {
		mopts = append(mopts, transport.WithOpener(transport.InterfaceGPIB, &transport.PrologixOpener{
			Port:        cfg.Prologix.Port,
			Timeout:     cfg.Timeout,
			ClearOnOpen: cfg.Prologix.ClearOnOpen,
		}))
	}
	if cfg.Discover {
		mopts = append(mopts, transport.WithLister(discovery.NewBrowser(discovery.BrowserConfig{
			BrowseTimeout: cfg.BrowseTimeout,
			Logger:        logger,
		})))
	}
	return transport.NewManager(mopts...)
}

// newProtocolLogger mirrors capture events to the debug log and, when path
// is set, to a capture file.
func newProtocolLogger(path string, logger *slog.Logger) (log.Logger, func(), error) {
	adapter := log.NewSlogAdapter(logger)
	if path == "" {
		return adapter, func() {}, nil
	}
	file, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture: %w", err)
	}
	closeFn := func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Warn("capture close failed", "error", err)
		}
		if n := file.Dropped(); n > 0 {
			logger.Warn("capture dropped events", "count", n)
		}
	}
	return log.NewMultiLogger(adapter, file), closeFn, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
