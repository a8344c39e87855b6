package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rfbench/vp8122a-go/pkg/log"
)

// DefaultTimeout bounds each Write and Query.
const DefaultTimeout = 2 * time.Second

// drainWindow bounds how long a query waits for the late reply of a failed
// one before sending.
const drainWindow = 50 * time.Millisecond

// SocketOpener opens TCPIP SOCKET resources.
type SocketOpener struct {
	// Timeout bounds dialing and each Write/Query (default: 2s).
	Timeout time.Duration

	// Terminator ends each command line (default: "\n").
	Terminator string
}

// Open dials the resource.
func (o *SocketOpener) Open(ctx context.Context, id ResourceID) (Resource, error) {
	if id.Interface != InterfaceTCPIP {
		return nil, fmt.Errorf("%w: socket opener cannot open %s", ErrUnsupportedInterface, id)
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Apply timeout if the context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", id.HostPort())
	if err != nil {
		return nil, classify("dial "+id.String(), err)
	}
	return newSocketConn(conn, id.String(), timeout, o.Terminator), nil
}

// SocketConn is an open raw socket resource.
type SocketConn struct {
	conn    net.Conn
	framer  *Framer
	id      string
	timeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
}

func newSocketConn(conn net.Conn, id string, timeout time.Duration, terminator string) *SocketConn {
	return &SocketConn{
		conn:    conn,
		framer:  NewFramer(conn, terminator),
		id:      id,
		timeout: timeout,
		closed:  make(chan struct{}),
	}
}

// ID returns the resource id.
func (c *SocketConn) ID() string { return c.id }

// RemoteAddr returns the remote network address.
func (c *SocketConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetLogger enables line capture on this resource.
func (c *SocketConn) SetLogger(logger log.Logger, sessionID string) {
	c.framer.SetLogger(logger, sessionID, c.id)
}

// Write sends one command line.
func (c *SocketConn) Write(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}
	c.conn.SetWriteDeadline(c.deadline(ctx))
	defer c.conn.SetWriteDeadline(time.Time{})

	return classify("write", c.framer.WriteLine(cmd))
}

// Query sends one command line and reads one reply line.
func (c *SocketConn) Query(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return "", err
	}
	dl := c.deadline(ctx)
	defer c.conn.SetDeadline(time.Time{})

	if c.framer.Stale() {
		c.drain(dl)
	}
	c.conn.SetDeadline(dl)

	if err := c.framer.WriteLine(cmd); err != nil {
		return "", classify("query write", err)
	}
	reply, err := c.framer.ReadLine()
	if err != nil {
		return "", classify("query read", err)
	}
	return reply, nil
}

// Close closes the connection.
func (c *SocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *SocketConn) checkOpen() error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
		return nil
	}
}

// drain drops input left over from a failed query so that the next reply
// read is the answer to the next command.
func (c *SocketConn) drain(dl time.Time) {
	wait := time.Now().Add(min(drainWindow, c.timeout))
	if wait.After(dl) {
		wait = dl
	}
	c.conn.SetReadDeadline(wait)
	c.framer.Drain()
}

// deadline is the earlier of the context deadline and now+timeout.
func (c *SocketConn) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(dl) {
		dl = d
	}
	return dl
}
