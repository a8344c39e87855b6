package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rfbench/vp8122a-go/pkg/command"
	"github.com/rfbench/vp8122a-go/pkg/log"
	"github.com/rfbench/vp8122a-go/pkg/transport"
)

const testResource = "GPIB0::7::INSTR"

type mockResource struct {
	mock.Mock
}

func (m *mockResource) Write(ctx context.Context, cmd string) error {
	return m.Called(ctx, cmd).Error(0)
}

func (m *mockResource) Query(ctx context.Context, cmd string) (string, error) {
	args := m.Called(ctx, cmd)
	return args.String(0), args.Error(1)
}

func (m *mockResource) Close() error {
	return m.Called().Error(0)
}

type mockManager struct {
	mock.Mock
}

func (m *mockManager) ListResources(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockManager) Open(ctx context.Context, id string) (transport.Resource, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(transport.Resource)
	return res, args.Error(1)
}

// sleepRecorder replaces the wall clock.
type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) get() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.slept...)
}

func (r *sleepRecorder) total() time.Duration {
	var sum time.Duration
	for _, d := range r.get() {
		sum += d
	}
	return sum
}

// captureLog records protocol events.
type captureLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLog) Log(ev log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureLog) byCategory(cat log.Category) []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []log.Event
	for _, ev := range c.events {
		if ev.Category == cat {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	mgr     *mockManager
	res     *mockResource
	sleeps  *sleepRecorder
	capture *captureLog
	session *Session
}

// newFixture returns a session without identity or local commands so
// tests only set up the calls they exercise.
func newFixture(t *testing.T, adjust func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		mgr:     &mockManager{},
		res:     &mockResource{},
		sleeps:  &sleepRecorder{},
		capture: &captureLog{},
	}
	cfg := DefaultConfig()
	cfg.IdentityQuery = ""
	cfg.LocalCommand = ""
	cfg.Sleep = f.sleeps.sleep
	cfg.ProtocolLogger = f.capture
	if adjust != nil {
		adjust(&cfg)
	}
	f.session = New(f.mgr, cfg)
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.mgr.On("ListResources", mock.Anything).Return([]string{testResource}, nil).Once()
	f.mgr.On("Open", mock.Anything, testResource).Return(f.res, nil).Once()
	id, err := f.session.Connect(context.Background(), transport.Contains("GPIB0::7"))
	require.NoError(t, err)
	require.Equal(t, testResource, id)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 250*time.Millisecond, cfg.CommandDelay)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, "*IDN?", cfg.IdentityQuery)
	assert.Equal(t, "GTL", cfg.LocalCommand)
	assert.False(t, cfg.RetryTimeoutsOnly)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{CommandDelay: -1, MaxAttempts: -3}.withDefaults()
	assert.Zero(t, cfg.CommandDelay)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.NotNil(t, cfg.Sleep)
	assert.NotNil(t, cfg.ProtocolLogger)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Tracer)
	assert.Empty(t, cfg.IdentityQuery)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestConnectPicksFirstMatch(t *testing.T) {
	f := newFixture(t, nil)
	f.mgr.On("ListResources", mock.Anything).
		Return([]string{"TCPIP0::10.0.0.5::5025::SOCKET", "GPIB0::7::INSTR", "GPIB0::17::INSTR"}, nil)
	f.mgr.On("Open", mock.Anything, "GPIB0::7::INSTR").Return(f.res, nil).Once()

	id, err := f.session.Connect(context.Background(), transport.Contains("gpib0::"))
	require.NoError(t, err)
	assert.Equal(t, "GPIB0::7::INSTR", id)
	assert.True(t, f.session.Connected())
	assert.Equal(t, StateConnected, f.session.State())
	assert.Equal(t, id, f.session.ResourceID())

	states := f.capture.byCategory(log.CategoryState)
	require.Len(t, states, 1)
	assert.Equal(t, "CONNECTED", states[0].StateChange.NewState)
	assert.Equal(t, f.session.ID(), states[0].SessionID)
	f.mgr.AssertExpectations(t)
}

func TestConnectNilFilterAcceptsAll(t *testing.T) {
	f := newFixture(t, nil)
	f.mgr.On("ListResources", mock.Anything).Return([]string{testResource}, nil)
	f.mgr.On("Open", mock.Anything, testResource).Return(f.res, nil)

	id, err := f.session.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, testResource, id)
}

func TestConnectNotFound(t *testing.T) {
	f := newFixture(t, nil)
	f.mgr.On("ListResources", mock.Anything).Return([]string{"TCPIP0::10.0.0.5::5025::SOCKET"}, nil).Once()

	_, err := f.session.Connect(context.Background(), transport.Contains("GPIB0::7"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, f.session.Connected())

	f.mgr.AssertNumberOfCalls(t, "ListResources", 1)
	f.mgr.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	assert.Empty(t, f.sleeps.get(), "no retry on missing resource")
	assert.Len(t, f.capture.byCategory(log.CategoryError), 1)
}

func TestConnectListError(t *testing.T) {
	f := newFixture(t, nil)
	f.mgr.On("ListResources", mock.Anything).Return(nil, errors.New("bus offline"))

	_, err := f.session.Connect(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus offline")
	assert.False(t, f.session.Connected())
}

func TestConnectOpenError(t *testing.T) {
	f := newFixture(t, nil)
	f.mgr.On("ListResources", mock.Anything).Return([]string{testResource}, nil)
	f.mgr.On("Open", mock.Anything, testResource).Return(nil, io.ErrUnexpectedEOF)

	_, err := f.session.Connect(context.Background(), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, f.session.Connected())
}

func TestConnectAlreadyConnected(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	_, err := f.session.Connect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, testResource, f.session.ResourceID())
}

func TestConnectRunsIdentityAndInitQueries(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.IdentityQuery = "*IDN?"
		c.InitQueries = []string{"*PRCL:OFF", "*ECHO:ON"}
	})
	var order []string
	record := func(args mock.Arguments) { order = append(order, args.String(1)) }
	f.res.On("Query", mock.Anything, "*IDN?").Return("Panasonic,VP-8122A,0,1.0", nil).Run(record).Once()
	f.res.On("Query", mock.Anything, "*PRCL:OFF").Return("OK", nil).Run(record).Once()
	f.res.On("Query", mock.Anything, "*ECHO:ON").Return("OK", nil).Run(record).Once()

	f.connect(t)
	assert.Equal(t, "Panasonic,VP-8122A,0,1.0", f.session.Identity())
	assert.Equal(t, []string{"*IDN?", "*PRCL:OFF", "*ECHO:ON"}, order)
	f.res.AssertExpectations(t)
}

func TestConnectIdentityFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.IdentityQuery = "*IDN?"
		c.MaxAttempts = 2
	})
	f.res.On("Query", mock.Anything, "*IDN?").Return("", transport.ErrTimeout).Times(2)

	f.connect(t)
	assert.True(t, f.session.Connected())
	assert.Empty(t, f.session.Identity())
	assert.Equal(t, []time.Duration{5 * time.Second}, f.sleeps.get())
}

func TestSendWaitsCommandDelay(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Write", mock.Anything, "AM 30").Return(nil).Once()

	require.NoError(t, f.session.Send(context.Background(), "AM 30"))
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, f.sleeps.get())

	msgs := f.capture.byCategory(log.CategoryMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, log.MessageTypeCommand, msgs[0].Message.Type)
	assert.Equal(t, "AM 30", msgs[0].Message.Text)
	assert.Equal(t, log.DirectionOut, msgs[0].Direction)
	assert.Equal(t, testResource, msgs[0].Resource)
	f.res.AssertExpectations(t)
}

func TestSendWriteError(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Write", mock.Anything, "AM ON").Return(transport.ErrClosed)

	err := f.session.Send(context.Background(), "AM ON")
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Empty(t, f.sleeps.get(), "no settle delay after a failed write")
}

func TestApplySendsInOrderAndMarksClamped(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	reg := command.Default(command.WithClampHandler(func(command.RangeViolation) {}))
	cmds := []command.Rendered{
		{Text: reg.ControlOut.Off()},
		reg.AM.Set.Render(command.Int(130)),
		{Text: reg.ControlOut.On()},
	}
	require.True(t, cmds[1].Clamped())

	var order []string
	f.res.On("Write", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		order = append(order, args.String(1))
	})

	require.NoError(t, f.session.Apply(context.Background(), cmds))
	assert.Equal(t, []string{"CO OF", "AM 125", "CO ON"}, order)
	assert.Len(t, f.sleeps.get(), 3)

	msgs := f.capture.byCategory(log.CategoryMessage)
	require.Len(t, msgs, 3)
	assert.False(t, msgs[0].Message.Clamped)
	assert.True(t, msgs[1].Message.Clamped)
	assert.False(t, msgs[2].Message.Clamped)
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Write", mock.Anything, "CO OF").Return(nil)
	f.res.On("Write", mock.Anything, "FR 0.531MZ").Return(errors.New("bus error"))

	err := f.session.Apply(context.Background(), []command.Rendered{
		{Text: "CO OF"}, {Text: "FR 0.531MZ"}, {Text: "CO ON"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command 2 of 3")
	f.res.AssertNotCalled(t, "Write", mock.Anything, "CO ON")
}

func TestQuerySucceedsAfterThreeTimeouts(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Query", mock.Anything, "*IDN?").Return("", transport.ErrTimeout).Times(3)
	f.res.On("Query", mock.Anything, "*IDN?").Return("VP-8122A", nil).Once()

	reply, err := f.session.Query(context.Background(), "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "VP-8122A", reply)

	assert.Equal(t, []time.Duration{
		5 * time.Second, 5 * time.Second, 5 * time.Second, 250 * time.Millisecond,
	}, f.sleeps.get())
	assert.GreaterOrEqual(t, f.sleeps.total(), 15*time.Second)
	f.res.AssertNumberOfCalls(t, "Query", 4)

	retries := f.capture.byCategory(log.CategoryRetry)
	require.Len(t, retries, 3)
	for i, ev := range retries {
		assert.Equal(t, i+1, ev.Retry.Attempt)
		assert.Equal(t, 10, ev.Retry.MaxAttempts)
		assert.True(t, ev.Retry.Timeout)
	}

	var response *log.MessageEvent
	for _, ev := range f.capture.byCategory(log.CategoryMessage) {
		if ev.Message.Type == log.MessageTypeResponse {
			response = ev.Message
		}
	}
	require.NotNil(t, response)
	assert.Equal(t, 4, response.Attempt)
	assert.NotNil(t, response.Duration)
}

func TestQueryFailsAfterTenTimeouts(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Query", mock.Anything, "FR?").Return("", transport.ErrTimeout)

	reply, err := f.session.Query(context.Background(), "FR?")
	assert.Empty(t, reply)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, transport.ErrTimeout)

	var rerr *RetryError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "FR?", rerr.Command)
	assert.Equal(t, 10, rerr.Attempts)

	f.res.AssertNumberOfCalls(t, "Query", 10)
	// No wait after the final attempt.
	assert.Len(t, f.sleeps.get(), 9)
	assert.Equal(t, 45*time.Second, f.sleeps.total())

	retries := f.capture.byCategory(log.CategoryRetry)
	require.Len(t, retries, 10)
	assert.Zero(t, retries[9].Retry.Delay)
	assert.Len(t, f.capture.byCategory(log.CategoryError), 1)
}

func TestQueryRetriesAnyErrorByDefault(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Query", mock.Anything, "AM?").Return("", errors.New("garbled reply")).Once()
	f.res.On("Query", mock.Anything, "AM?").Return("AM 30", nil).Once()

	reply, err := f.session.Query(context.Background(), "AM?")
	require.NoError(t, err)
	assert.Equal(t, "AM 30", reply)

	retries := f.capture.byCategory(log.CategoryRetry)
	require.Len(t, retries, 1)
	assert.False(t, retries[0].Retry.Timeout)
}

func TestQueryRetryTimeoutsOnly(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RetryTimeoutsOnly = true })
	f.connect(t)
	cause := errors.New("garbled reply")
	f.res.On("Query", mock.Anything, "AM?").Return("", cause).Once()

	_, err := f.session.Query(context.Background(), "AM?")
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)
	f.res.AssertNumberOfCalls(t, "Query", 1)
	assert.Empty(t, f.sleeps.get())
}

func TestQueryRetryTimeoutsOnlyStillRetriesTimeouts(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.RetryTimeoutsOnly = true
		c.MaxAttempts = 3
		c.RetryDelay = time.Second
	})
	f.connect(t)
	f.res.On("Query", mock.Anything, "AM?").Return("", transport.ErrTimeout)

	_, err := f.session.Query(context.Background(), "AM?")
	assert.ErrorIs(t, err, ErrTimeout)
	f.res.AssertNumberOfCalls(t, "Query", 3)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, f.sleeps.get())
}

func TestQueryCancelledDuringRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.res.On("Query", mock.Anything, "FR?").Return("", transport.ErrTimeout).Once()
	f.session.cfg.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := f.session.Query(ctx, "FR?")
	assert.ErrorIs(t, err, context.Canceled)
	f.res.AssertNumberOfCalls(t, "Query", 1)
}

func TestQueryCancelledContextStopsRetrying(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.res.On("Query", mock.Anything, "FR?").Return("", context.Canceled).Run(func(mock.Arguments) {
		cancel()
	}).Once()

	_, err := f.session.Query(ctx, "FR?")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.sleeps.get())
}

func TestNotConnected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.session.Send(ctx, "AM ON"), ErrNotConnected)
	_, err := f.session.Query(ctx, "*IDN?")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, f.session.Apply(ctx, []command.Rendered{{Text: "AM ON"}}), ErrNotConnected)
	assert.ErrorIs(t, f.session.Disconnect(ctx), ErrNotConnected)
}

func TestDisconnectSendsGoToLocal(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.LocalCommand = "GTL" })
	f.connect(t)
	f.res.On("Write", mock.Anything, "GTL").Return(nil).Once()
	f.res.On("Close").Return(nil).Once()

	require.NoError(t, f.session.Disconnect(context.Background()))
	assert.False(t, f.session.Connected())
	assert.Empty(t, f.session.ResourceID())
	f.res.AssertExpectations(t)

	states := f.capture.byCategory(log.CategoryState)
	require.Len(t, states, 2)
	assert.Equal(t, "DISCONNECTED", states[1].StateChange.NewState)
}

func TestDisconnectClosesEvenIfLocalFails(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.LocalCommand = "GTL" })
	f.connect(t)
	f.res.On("Write", mock.Anything, "GTL").Return(transport.ErrTimeout).Once()
	f.res.On("Close").Return(nil).Once()

	err := f.session.Disconnect(context.Background())
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.False(t, f.session.Connected())
	f.res.AssertCalled(t, "Close")
}

func TestDisconnectAllowsReconnect(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t)
	f.res.On("Close").Return(nil)
	require.NoError(t, f.session.Disconnect(context.Background()))

	f.connect(t)
	assert.True(t, f.session.Connected())
}

func TestSessionSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, func(c *Config) {
		c.Tracer = tp.Tracer("test")
		c.MaxAttempts = 1
	})
	f.connect(t)
	f.res.On("Write", mock.Anything, "AM ON").Return(nil)
	f.res.On("Query", mock.Anything, "AM?").Return("", transport.ErrTimeout)

	require.NoError(t, f.session.Send(context.Background(), "AM ON"))
	_, err := f.session.Query(context.Background(), "AM?")
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "session.Connect", spans[0].Name())
	assert.Equal(t, "session.Send", spans[1].Name())
	assert.Equal(t, otelcodes.Unset, spans[1].Status().Code)
	assert.Equal(t, "session.Query", spans[2].Name())
	assert.Equal(t, otelcodes.Error, spans[2].Status().Code)
}

func TestRetryErrorUnwrap(t *testing.T) {
	cause := errors.New("no reply")
	err := &RetryError{Command: "FR?", Attempts: 10, Last: cause}
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `"FR?"`)
	assert.Contains(t, err.Error(), "10 attempts")

	assert.ErrorIs(t, &RetryError{Command: "FR?"}, ErrTimeout)
}
