package log

import (
	"sync"
	"testing"
)

// captureLogger records events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureLogger) Log(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{SessionID: "ignored"})
}

func TestMultiLogger(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	m := NewMultiLogger(a, nil, b)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}

	m.Log(Event{SessionID: "s1"})
	m.Log(Event{SessionID: "s2"})

	for name, c := range map[string]*captureLogger{"a": a, "b": b} {
		if len(c.events) != 2 {
			t.Errorf("%s: got %d events, want 2", name, len(c.events))
			continue
		}
		if c.events[1].SessionID != "s2" {
			t.Errorf("%s: order not preserved", name)
		}
	}
}
