package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rfbench/vp8122a-go/pkg/log"
)

// Default timing and retry budget.
const (
	DefaultCommandDelay  = 250 * time.Millisecond
	DefaultRetryDelay    = 5 * time.Second
	DefaultMaxAttempts   = 10
	DefaultIdentityQuery = "*IDN?"
	DefaultLocalCommand  = "GTL"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures a Session.
type Config struct {
	// CommandDelay is the settle time after every write and every
	// successful query. Zero selects the default; negative disables it.
	CommandDelay time.Duration

	// RetryDelay is the wait between failed query attempts.
	// Zero selects the default; negative disables it.
	RetryDelay time.Duration

	// MaxAttempts bounds query attempts. Values below 1 select the default.
	MaxAttempts int

	// RetryTimeoutsOnly fails a query at once on errors that are not
	// timeouts. By default every error is retried.
	RetryTimeoutsOnly bool

	// IdentityQuery is sent after Connect. Empty skips it.
	IdentityQuery string

	// InitQueries are sent after the identity query, e.g. for GPIB
	// adapters that need "*PRCL:OFF" or "*ECHO:ON".
	InitQueries []string

	// LocalCommand returns the front panel to local control on
	// Disconnect. Empty skips it.
	LocalCommand string

	// Sleep replaces the wall clock wait (tests record sleeps here).
	Sleep SleepFunc

	// ProtocolLogger receives capture events (optional).
	ProtocolLogger log.Logger

	// Logger receives operational messages (default: slog.Default()).
	Logger *slog.Logger

	// Tracer creates spans (default: the global provider's tracer).
	Tracer trace.Tracer
}

// DefaultConfig returns the timing of the original bench setup.
func DefaultConfig() Config {
	return Config{
		CommandDelay:  DefaultCommandDelay,
		RetryDelay:    DefaultRetryDelay,
		MaxAttempts:   DefaultMaxAttempts,
		IdentityQuery: DefaultIdentityQuery,
		LocalCommand:  DefaultLocalCommand,
	}
}

// withDefaults fills zero durations, attempts and collaborators.
// String fields are used as given so callers can disable them.
func (c Config) withDefaults() Config {
	switch {
	case c.CommandDelay == 0:
		c.CommandDelay = DefaultCommandDelay
	case c.CommandDelay < 0:
		c.CommandDelay = 0
	}
	switch {
	case c.RetryDelay == 0:
		c.RetryDelay = DefaultRetryDelay
	case c.RetryDelay < 0:
		c.RetryDelay = 0
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	if c.ProtocolLogger == nil {
		c.ProtocolLogger = log.NoopLogger{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = defaultTracer()
	}
	return c
}

// sleepContext waits for d. A done context ends the wait early.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
