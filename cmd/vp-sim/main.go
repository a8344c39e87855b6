// Command vp-sim emulates a VP-8122A behind a raw socket.
//
// It accepts every command vpctl can render, keeps the front-panel state,
// answers *IDN? and, when -advertise is set, publishes itself over mDNS so
// that vpctl -discover finds it.
//
// Usage:
//
//	vp-sim [flags]
//
// Flags:
//
//	-addr string        Listen address (default ":5025")
//	-identity string    Reply to *IDN?
//	-advertise string   mDNS instance name (empty disables advertising)
//	-interface string   Network interface for mDNS (default all)
//	-capture string     Protocol capture file (read with vp-log)
//	-state string       Front-panel state file, restored on start and saved on exit
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-log-format string  Log format: text, json (default "text")
//
// Examples:
//
//	# Emulator on the default SCPI raw port, advertised as "bench-vp"
//	vp-sim -advertise bench-vp
//
//	# Drive it
//	vpctl -discover -resource 5025 -init
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rfbench/vp8122a-go/internal/emulator"
	"github.com/rfbench/vp8122a-go/internal/logging"
	"github.com/rfbench/vp8122a-go/pkg/discovery"
	"github.com/rfbench/vp8122a-go/pkg/log"
	"github.com/rfbench/vp8122a-go/pkg/transport"
)

// Config holds the emulator configuration.
type Config struct {
	Addr      string
	Identity  string
	Advertise string
	Interface string
	Capture   string
	StateFile string
	LogLevel  string
	LogFormat string
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "vp-sim: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "vp-sim: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(argv []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("vp-sim", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", ":5025", "Listen address")
	fs.StringVar(&cfg.Identity, "identity", emulator.DefaultIdentity, "Reply to *IDN?")
	fs.StringVar(&cfg.Advertise, "advertise", "", "mDNS instance name (empty disables advertising)")
	fs.StringVar(&cfg.Interface, "interface", "", "Network interface for mDNS (default all)")
	fs.StringVar(&cfg.Capture, "capture", "", "Protocol capture file")
	fs.StringVar(&cfg.StateFile, "state", "", "Front-panel state file")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text, json")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.Advertise != "" {
		if err := discovery.ValidateInstanceName(cfg.Advertise); err != nil {
			return Config{}, fmt.Errorf("-advertise: %w", err)
		}
	}
	return cfg, nil
}

// run serves until ctx is done.
func run(ctx context.Context, cfg Config, stderr io.Writer) error {
	logger, closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: stderr,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	emu := emulator.New(emulator.Config{Identity: cfg.Identity, Logger: logger})

	store, err := restoreState(emu, cfg.StateFile, logger)
	if err != nil {
		return err
	}

	var capture log.Logger
	if cfg.Capture != "" {
		fl, err := log.NewFileLogger(cfg.Capture)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer fl.Close()
		capture = fl
	}

	srv, err := transport.NewServer(transport.ServerConfig{
		Address: cfg.Addr,
		Handler: emu.Handle,
		Logger:  capture,
		OnConnect: func(conn *transport.ServerConn) {
			logger.Info("client connected", "remote", conn.RemoteAddr(), "conn_id", conn.ConnID())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			logger.Info("client disconnected", "remote", conn.RemoteAddr(), "conn_id", conn.ConnID())
		},
		OnError: func(conn *transport.ServerConn, err error) {
			if conn == nil {
				logger.Warn("accept failed", "error", err)
				return
			}
			logger.Warn("connection error", "remote", conn.RemoteAddr(), "error", err)
		},
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Stop()
	logger.Info("emulator listening", "addr", srv.Addr().String(), "resource", srv.ResourceID())

	if cfg.Advertise != "" {
		info, err := instrumentInfo(cfg.Advertise, srv.Addr())
		if err != nil {
			return err
		}
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{Interface: cfg.Interface})
		if err := adv.Advertise(info); err != nil {
			return fmt.Errorf("advertise: %w", err)
		}
		defer adv.Stop()
		logger.Info("advertising", "instance", cfg.Advertise, "port", info.Port)
	}

	<-ctx.Done()

	st := emu.State()
	logger.Info("emulator stopped",
		"remote", st.Remote,
		"subsystems", len(st.Settings),
		"rejected", st.Rejected,
		"connections", srv.ConnectionCount())

	if store != nil {
		if err := store.Save(st); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

// restoreState loads path into emu. It returns nil without a state file.
func restoreState(emu *emulator.Emulator, path string, logger *slog.Logger) (*emulator.StateStore, error) {
	if path == "" {
		return nil, nil
	}
	store := emulator.NewStateStore(path)
	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		emu.Restore(snap)
		logger.Info("state restored", "file", path, "saved_at", snap.SavedAt)
	}
	return store, nil
}

// instrumentInfo describes the emulator for mDNS on the port of addr.
func instrumentInfo(name string, addr net.Addr) (*discovery.InstrumentInfo, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.Port <= 0 || tcp.Port > 65535 {
		return nil, fmt.Errorf("advertise: no TCP port in %v", addr)
	}
	return &discovery.InstrumentInfo{
		InstanceName: name,
		Port:         uint16(tcp.Port),
		Manufacturer: "Panasonic",
		Model:        "VP-8122A",
		Serial:       "SIM",
		Firmware:     "1.00",
	}, nil
}
