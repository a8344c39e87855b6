package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gotmc/prologix"
	"github.com/gotmc/prologix/driver/vcp"
)

// PrologixOpener opens GPIB resources through a Prologix GPIB-USB
// controller on a virtual serial port.
type PrologixOpener struct {
	// Port is the serial device (e.g. "/dev/ttyUSB0").
	Port string

	// Timeout bounds each Write/Query (default: 2s).
	Timeout time.Duration

	// ClearOnOpen sends Selected Device Clear after addressing the instrument.
	ClearOnOpen bool
}

// Open opens the serial port and addresses the instrument.
func (o *PrologixOpener) Open(ctx context.Context, id ResourceID) (Resource, error) {
	if id.Interface != InterfaceGPIB {
		return nil, fmt.Errorf("%w: prologix opener cannot open %s", ErrUnsupportedInterface, id)
	}
	if o.Port == "" {
		return nil, fmt.Errorf("prologix: no serial port configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := vcp.NewVCP(o.Port)
	if err != nil {
		return nil, fmt.Errorf("prologix: open %s: %w", o.Port, err)
	}
	ctrl, err := prologix.NewController(port, id.Address, o.ClearOnOpen)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("prologix: controller at GPIB %d: %w", id.Address, err)
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PrologixConn{
		id:      id.String(),
		timeout: timeout,
		command: func(cmd string) error { return ctrl.Command("%s", cmd) },
		query:   func(cmd string) (string, error) { return ctrl.Query(cmd) },
		local:   func() error { return ctrl.FrontPanel(true) },
		release: func() error {
			port.Flush()
			return port.Close()
		},
	}, nil
}

// PrologixConn is an open GPIB resource.
type PrologixConn struct {
	id      string
	timeout time.Duration

	command func(cmd string) error
	query   func(cmd string) (string, error)
	local   func() error
	release func() error

	mu     sync.Mutex
	closed bool

	// inflight is closed when an abandoned call returns. The controller
	// is not touched again before that.
	inflight chan struct{}
}

// ID returns the resource id.
func (c *PrologixConn) ID() string { return c.id }

// Write sends one command to the addressed instrument.
func (c *PrologixConn) Write(ctx context.Context, cmd string) error {
	_, err := c.do(ctx, "write", func() (string, error) {
		return "", c.command(cmd)
	})
	return err
}

// Query sends one command and reads the reply.
func (c *PrologixConn) Query(ctx context.Context, cmd string) (string, error) {
	return c.do(ctx, "query", func() (string, error) {
		reply, err := c.query(cmd)
		if err == io.EOF && reply != "" {
			err = nil
		}
		return trimReply(reply), err
	})
}

// Close returns the front panel to local control and closes the port. A
// call abandoned on timeout is given one more timeout to finish; if it is
// still stuck the port is closed without going to local.
func (c *PrologixConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.inflight != nil {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		select {
		case <-c.inflight:
			c.inflight = nil
		case <-timer.C:
			return c.release()
		}
	}
	c.local()
	return c.release()
}

// do runs fn bounded by the resource timeout. The serial driver has no
// deadline API, so a stuck call is abandoned and reported as a timeout.
// Until it returns, later calls wait for it within their own timeout
// instead of issuing a new command.
func (c *PrologixConn) do(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	if c.inflight != nil {
		select {
		case <-c.inflight:
			c.inflight = nil
		case <-timer.C:
			return "", fmt.Errorf("%s: %w after %v: previous call still in progress", op, ErrTimeout, c.timeout)
		case <-ctx.Done():
			return "", classify(op, ctx.Err())
		}
	}

	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		r, err := fn()
		done <- result{r, err}
	}()

	select {
	case r := <-done:
		return r.reply, classify(op, r.err)
	case <-timer.C:
		c.inflight = finished
		return "", fmt.Errorf("%s: %w after %v", op, ErrTimeout, c.timeout)
	case <-ctx.Done():
		c.inflight = finished
		return "", classify(op, ctx.Err())
	}
}

func trimReply(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
