package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rfbench/vp8122a-go/pkg/log"
)

// Handler processes one received line. If reply is true the returned text
// is written back as one line (it must not be empty); otherwise nothing
// is sent, which the client sees as a timeout.
type Handler func(line string) (text string, reply bool)

// ServerConfig configures a line server.
type ServerConfig struct {
	// Address to listen on (e.g., ":5025" or "127.0.0.1:0").
	Address string

	// Handler processes received lines (required).
	Handler Handler

	// Terminator ends each reply line (default: "\n").
	Terminator string

	// Logger for protocol capture (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnError is called when an error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts raw socket connections and answers them line by line.
// It stands in for an instrument in tests and in the vp-sim tool.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new line server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}
	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ResourceID returns the socket resource id of the listener.
func (s *Server) ResourceID() string {
	addr, ok := s.Addr().(*net.TCPAddr)
	if !ok {
		return ""
	}
	return SocketID(addr.IP.String(), addr.Port)
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	framer := NewFramer(conn, s.config.Terminator)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID, conn.RemoteAddr().String())
	}

	sconn := &ServerConn{
		conn:    conn,
		framer:  framer,
		server:  s,
		closeCh: make(chan struct{}),
		connID:  connID,
	}

	s.logState(sconn, "", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(sconn, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(c *ServerConn, from, to string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.connID,
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		Resource:  c.conn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
		},
	})
}

// ServerConn represents a client connection to the server.
type ServerConn struct {
	conn      net.Conn
	framer    *Framer
	server    *Server
	closeCh   chan struct{}
	closeOnce sync.Once
	connID    string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		line, err := c.framer.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && c.server.config.OnError != nil && c.server.running.Load() {
				select {
				case <-c.closeCh:
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}
		if line == "" {
			continue
		}

		text, reply := c.server.config.Handler(line)
		if !reply {
			continue
		}
		if err := c.framer.WriteLine(text); err != nil {
			if c.server.config.OnError != nil {
				c.server.config.OnError(c, err)
			}
			return
		}
	}
}
