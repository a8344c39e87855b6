package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rfbench/vp8122a-go/pkg/command"
	"github.com/rfbench/vp8122a-go/pkg/log"
	"github.com/rfbench/vp8122a-go/pkg/transport"
)

const tracerName = "github.com/rfbench/vp8122a-go/pkg/session"

func defaultTracer() trace.Tracer { return otel.Tracer(tracerName) }

// State represents the session state.
type State uint8

const (
	// StateDisconnected indicates no open resource.
	StateDisconnected State = iota

	// StateConnected indicates an open resource under remote control.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// captureLogger is implemented by transports that record raw lines.
type captureLogger interface {
	SetLogger(logger log.Logger, sessionID string)
}

// Session is the live connection to one instrument.
type Session struct {
	mgr transport.ResourceManager
	cfg Config
	id  string

	mu         sync.Mutex
	res        transport.Resource
	resourceID string
	identity   string
}

// New creates a disconnected session that opens resources through mgr.
func New(mgr transport.ResourceManager, cfg Config) *Session {
	return &Session{
		mgr: mgr,
		cfg: cfg.withDefaults(),
		id:  uuid.New().String(),
	}
}

// ID returns the session id used in capture events.
func (s *Session) ID() string { return s.id }

// ResourceID returns the id of the open resource, or "".
func (s *Session) ResourceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resourceID
}

// Identity returns the reply to the identity query, or "".
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.res != nil {
		return StateConnected
	}
	return StateDisconnected
}

// Connected reports whether a resource is open.
func (s *Session) Connected() bool { return s.State() == StateConnected }

// Connect opens the first listed resource accepted by filter (nil accepts
// all) and returns its id. It fails with ErrNotFound without retrying when
// nothing matches. The identity and init queries run afterwards; their
// failures are logged and do not undo the connection.
func (s *Session) Connect(ctx context.Context, filter transport.Filter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.cfg.Tracer.Start(ctx, "session.Connect")
	defer span.End()

	if s.res != nil {
		return "", s.fail(span, ErrAlreadyConnected)
	}

	ids, err := s.mgr.ListResources(ctx)
	if err != nil {
		return "", s.fail(span, fmt.Errorf("list resources: %w", err))
	}

	var id string
	for _, candidate := range ids {
		if filter == nil || filter(candidate) {
			id = candidate
			break
		}
	}
	if id == "" {
		s.logError("connect", ErrNotFound)
		return "", s.fail(span, fmt.Errorf("%w among %d resources", ErrNotFound, len(ids)))
	}
	span.SetAttributes(attribute.String("vp.resource", id))

	res, err := s.mgr.Open(ctx, id)
	if err != nil {
		s.logError("open "+id, err)
		return "", s.fail(span, fmt.Errorf("open %s: %w", id, err))
	}
	if cl, ok := res.(captureLogger); ok {
		cl.SetLogger(s.cfg.ProtocolLogger, s.id)
	}

	s.res = res
	s.resourceID = id
	s.identity = ""
	s.logState(StateDisconnected, StateConnected, "connect")
	s.cfg.Logger.Info("instrument connected", "session_id", s.id, "resource", id)

	if q := s.cfg.IdentityQuery; q != "" {
		reply, err := s.query(ctx, q)
		if err != nil {
			s.cfg.Logger.Warn("identity query failed", "resource", id, "error", err)
		} else {
			s.identity = reply
			span.SetAttributes(attribute.String("vp.identity", reply))
		}
	}
	for _, q := range s.cfg.InitQueries {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.query(ctx, q); err != nil {
			s.cfg.Logger.Warn("init query failed", "resource", id, "query", q, "error", err)
		}
	}

	return id, nil
}

// Send writes one command and waits CommandDelay.
func (s *Session) Send(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(ctx, cmd, false)
}

// Apply sends rendered commands in order, marking corrected arguments in
// the capture. It stops at the first failure.
func (s *Session) Apply(ctx context.Context, cmds []command.Rendered) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range cmds {
		if err := s.send(ctx, c.Text, c.Clamped()); err != nil {
			return fmt.Errorf("command %d of %d: %w", i+1, len(cmds), err)
		}
	}
	return nil
}

// Query sends cmd and returns the reply, retrying failed attempts.
// When every attempt fails the error is a *RetryError matching ErrTimeout.
func (s *Session) Query(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(ctx, cmd)
}

// Disconnect returns the instrument to local control and closes the
// resource. The resource is closed even if the local command fails.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.cfg.Tracer.Start(ctx, "session.Disconnect")
	defer span.End()

	if s.res == nil {
		return s.fail(span, ErrNotConnected)
	}

	var sendErr error
	if s.cfg.LocalCommand != "" {
		sendErr = s.send(ctx, s.cfg.LocalCommand, false)
	}
	closeErr := s.res.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close %s: %w", s.resourceID, closeErr)
	}

	s.logState(StateConnected, StateDisconnected, "disconnect")
	s.cfg.Logger.Info("instrument disconnected", "session_id", s.id, "resource", s.resourceID)
	s.res = nil
	s.resourceID = ""
	s.identity = ""

	if err := errors.Join(sendErr, closeErr); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// send must be called with mu held.
func (s *Session) send(ctx context.Context, cmd string, clamped bool) error {
	ctx, span := s.cfg.Tracer.Start(ctx, "session.Send",
		trace.WithAttributes(
			attribute.String("vp.command", cmd),
			attribute.Bool("vp.clamped", clamped),
		))
	defer span.End()

	if s.res == nil {
		return s.fail(span, ErrNotConnected)
	}

	s.logMessage(log.DirectionOut, log.MessageEvent{
		Type:    log.MessageTypeCommand,
		Text:    cmd,
		Clamped: clamped,
	})
	if err := s.res.Write(ctx, cmd); err != nil {
		s.logError("send "+cmd, err)
		return s.fail(span, fmt.Errorf("send %q: %w", cmd, err))
	}
	if err := s.cfg.Sleep(ctx, s.cfg.CommandDelay); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// query must be called with mu held.
func (s *Session) query(ctx context.Context, cmd string) (string, error) {
	ctx, span := s.cfg.Tracer.Start(ctx, "session.Query",
		trace.WithAttributes(attribute.String("vp.command", cmd)))
	defer span.End()

	if s.res == nil {
		return "", s.fail(span, ErrNotConnected)
	}

	var last error
	attempt := 0
	for attempt < s.cfg.MaxAttempts {
		attempt++
		s.logMessage(log.DirectionOut, log.MessageEvent{
			Type:    log.MessageTypeQuery,
			Text:    cmd,
			Attempt: attempt,
		})

		start := time.Now()
		reply, err := s.res.Query(ctx, cmd)
		if err == nil {
			elapsed := time.Since(start)
			s.logMessage(log.DirectionIn, log.MessageEvent{
				Type:     log.MessageTypeResponse,
				Text:     reply,
				Attempt:  attempt,
				Duration: &elapsed,
			})
			span.SetAttributes(attribute.Int("vp.attempts", attempt))
			if err := s.cfg.Sleep(ctx, s.cfg.CommandDelay); err != nil {
				return reply, s.fail(span, err)
			}
			return reply, nil
		}

		last = err
		timeout := transport.IsTimeout(err)
		if ctx.Err() != nil {
			return "", s.fail(span, ctx.Err())
		}
		if s.cfg.RetryTimeoutsOnly && !timeout {
			s.logError("query "+cmd, err)
			return "", s.fail(span, fmt.Errorf("query %q: %w", cmd, err))
		}

		var delay time.Duration
		if attempt < s.cfg.MaxAttempts {
			delay = s.cfg.RetryDelay
		}
		s.logRetry(log.RetryEvent{
			Command:     cmd,
			Attempt:     attempt,
			MaxAttempts: s.cfg.MaxAttempts,
			Delay:       delay,
			Timeout:     timeout,
			Reason:      err.Error(),
		})
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("vp.attempt", attempt),
			attribute.Bool("vp.timeout", timeout),
		))
		s.cfg.Logger.Warn("query failed",
			"command", cmd,
			"attempt", attempt,
			"max_attempts", s.cfg.MaxAttempts,
			"error", err)

		if delay > 0 {
			if err := s.cfg.Sleep(ctx, delay); err != nil {
				return "", s.fail(span, err)
			}
		}
	}

	rerr := &RetryError{Command: cmd, Attempts: attempt, Last: last}
	s.logError("query "+cmd, rerr)
	return "", s.fail(span, rerr)
}

func (s *Session) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Session) event(dir log.Direction, cat log.Category) log.Event {
	return log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: dir,
		Layer:     log.LayerSession,
		Category:  cat,
		Resource:  s.resourceID,
	}
}

func (s *Session) logMessage(dir log.Direction, msg log.MessageEvent) {
	ev := s.event(dir, log.CategoryMessage)
	ev.Message = &msg
	s.cfg.ProtocolLogger.Log(ev)
}

func (s *Session) logRetry(r log.RetryEvent) {
	ev := s.event(log.DirectionOut, log.CategoryRetry)
	ev.Retry = &r
	s.cfg.ProtocolLogger.Log(ev)
}

func (s *Session) logState(from, to State, reason string) {
	ev := s.event(log.DirectionOut, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntitySession,
		OldState: from.String(),
		NewState: to.String(),
		Reason:   reason,
	}
	s.cfg.ProtocolLogger.Log(ev)
}

func (s *Session) logError(op string, err error) {
	ev := s.event(log.DirectionOut, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   log.LayerSession,
		Message: err.Error(),
		Context: op,
	}
	s.cfg.ProtocolLogger.Log(ev)
}
