// Package config loads vpctl configuration.
//
// Values are layered: built-in defaults, then a YAML (.yaml, .yml) or TOML
// (.toml) file, then VPCTL_* environment variables. Command-line flags are
// applied by the caller, which then calls Validate.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rfbench/vp8122a-go/internal/logging"
	"github.com/rfbench/vp8122a-go/pkg/discovery"
	"github.com/rfbench/vp8122a-go/pkg/session"
	"github.com/rfbench/vp8122a-go/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VPCTL_"

// Config errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidConfig     = errors.New("invalid config")
)

// Config is the complete vpctl configuration.
type Config struct {
	// Resource selects the instrument by case-insensitive substring of its
	// resource id (e.g. "GPIB0::7" or "10.0.0.7").
	Resource string `yaml:"resource" toml:"resource" env:"RESOURCE"`

	// Resources are static resource ids offered besides discovery.
	Resources []string `yaml:"resources" toml:"resources" env:"RESOURCES" envSeparator:","`

	// Discover enables mDNS browsing for raw socket instruments.
	Discover bool `yaml:"discover" toml:"discover" env:"DISCOVER"`

	// BrowseTimeout bounds one mDNS browse.
	BrowseTimeout time.Duration `yaml:"browse_timeout" toml:"browse_timeout" env:"BROWSE_TIMEOUT"`

	// Timeout is the per-operation bus timeout.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`

	// Terminator ends every line on socket resources.
	Terminator string `yaml:"terminator" toml:"terminator" env:"TERMINATOR"`

	Session  SessionConfig  `yaml:"session" toml:"session" envPrefix:"SESSION_"`
	Prologix PrologixConfig `yaml:"prologix" toml:"prologix" envPrefix:"PROLOGIX_"`
	Log      LogConfig      `yaml:"log" toml:"log" envPrefix:"LOG_"`

	// Capture is the protocol capture file (empty disables capture).
	Capture string `yaml:"capture" toml:"capture" env:"CAPTURE"`

	// OTLPEndpoint is the OTLP/HTTP trace endpoint (empty disables tracing).
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// SessionConfig holds the session timing and retry budget.
type SessionConfig struct {
	CommandDelay      time.Duration `yaml:"command_delay" toml:"command_delay" env:"COMMAND_DELAY"`
	RetryDelay        time.Duration `yaml:"retry_delay" toml:"retry_delay" env:"RETRY_DELAY"`
	MaxAttempts       int           `yaml:"max_attempts" toml:"max_attempts" env:"MAX_ATTEMPTS"`
	RetryTimeoutsOnly bool          `yaml:"retry_timeouts_only" toml:"retry_timeouts_only" env:"RETRY_TIMEOUTS_ONLY"`
	IdentityQuery     string        `yaml:"identity_query" toml:"identity_query" env:"IDENTITY_QUERY"`
	InitQueries       []string      `yaml:"init_queries" toml:"init_queries" env:"INIT_QUERIES" envSeparator:","`
	LocalCommand      string        `yaml:"local_command" toml:"local_command" env:"LOCAL_COMMAND"`
}

// PrologixConfig enables GPIB resources through a Prologix controller.
type PrologixConfig struct {
	// Port is the controller's serial device (empty disables GPIB).
	Port string `yaml:"port" toml:"port" env:"PORT"`

	// ClearOnOpen sends a device clear when a resource is opened.
	ClearOnOpen bool `yaml:"clear_on_open" toml:"clear_on_open" env:"CLEAR_ON_OPEN"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" env:"FORMAT"`

	// File enables a rotating log file besides stderr.
	File       string `yaml:"file" toml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// Default returns the built-in configuration.
func Default() Config {
	sc := session.DefaultConfig()
	return Config{
		BrowseTimeout: discovery.BrowseTimeout,
		Timeout:       transport.DefaultTimeout,
		Terminator:    transport.DefaultTerminator,
		Session: SessionConfig{
			CommandDelay:  sc.CommandDelay,
			RetryDelay:    sc.RetryDelay,
			MaxAttempts:   sc.MaxAttempts,
			IdentityQuery: sc.IdentityQuery,
			LocalCommand:  sc.LocalCommand,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.BrowseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("browse_timeout must be positive, got %s", c.BrowseTimeout))
	}
	if c.Terminator == "" {
		errs = append(errs, errors.New("terminator must not be empty"))
	}
	if c.Session.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("session.max_attempts must be at least 1, got %d", c.Session.MaxAttempts))
	}
	if c.Session.CommandDelay < 0 {
		errs = append(errs, fmt.Errorf("session.command_delay must not be negative, got %s", c.Session.CommandDelay))
	}
	if c.Session.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("session.retry_delay must not be negative, got %s", c.Session.RetryDelay))
	}
	for _, id := range c.Resources {
		if _, err := transport.ParseResourceID(id); err != nil {
			errs = append(errs, fmt.Errorf("resources: %w", err))
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log rotation limits must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SessionConfig converts the session section. Zero delays are passed as
// negative so they disable the wait instead of selecting the default.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		CommandDelay:      explicit(c.Session.CommandDelay),
		RetryDelay:        explicit(c.Session.RetryDelay),
		MaxAttempts:       c.Session.MaxAttempts,
		RetryTimeoutsOnly: c.Session.RetryTimeoutsOnly,
		IdentityQuery:     c.Session.IdentityQuery,
		InitQueries:       append([]string(nil), c.Session.InitQueries...),
		LocalCommand:      c.Session.LocalCommand,
	}
}

// Filter returns the resource filter for Connect.
func (c *Config) Filter() transport.Filter {
	return transport.Contains(c.Resource)
}

func explicit(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
