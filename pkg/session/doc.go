// Package session holds the live connection to one VP-8122A.
//
// A Session owns at most one open bus resource. It is created by an
// explicit Connect and released by an explicit Disconnect:
//
//	s := session.New(transport.NewManager(), session.DefaultConfig())
//	id, err := s.Connect(ctx, transport.Contains("GPIB0::7"))
//	...
//	err = s.Send(ctx, reg.AM.Set.Render(30).Text)
//	reply, err := s.Query(ctx, "*IDN?")
//	...
//	err = s.Disconnect(ctx)
//
// # Flow Control
//
// Sleeps are the only flow control. Every successful write and every
// successful query is followed by CommandDelay (default 250 ms) so the
// instrument can settle before the next command. A failed query is retried
// up to MaxAttempts (default 10) times with RetryDelay (default 5 s) between
// attempts; when the budget is spent the call fails with a *RetryError that
// matches ErrTimeout.
//
// Calls are serialized. Commands reach the instrument in exactly the order
// the caller issued them, since later settings depend on earlier ones.
//
// # Observability
//
// Each call emits protocol capture events (pkg/log) and an OpenTelemetry
// span. Operational messages such as retry warnings go to log/slog.
package session
