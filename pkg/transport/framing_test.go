package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rfbench/vp8122a-go/pkg/log"
)

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) snapshot() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]log.Event(nil), c.events...)
}

func TestLineWriterReader(t *testing.T) {
	tests := []struct {
		name       string
		terminator string
		lines      []string
	}{
		{"lf", "", []string{"AM 30", "FR 0.531MZ", "GTL"}},
		{"crlf", "\r\n", []string{"*IDN?", "AP 20.0DB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			w := NewLineWriter(buf, tt.terminator)
			for _, l := range tt.lines {
				if err := w.WriteLine(l); err != nil {
					t.Fatalf("WriteLine(%q): %v", l, err)
				}
			}

			r := NewLineReader(buf)
			for _, want := range tt.lines {
				got, err := r.ReadLine()
				if err != nil {
					t.Fatalf("ReadLine: %v", err)
				}
				if got != want {
					t.Errorf("got %q, want %q", got, want)
				}
			}
			if _, err := r.ReadLine(); err != io.EOF {
				t.Errorf("expected io.EOF, got %v", err)
			}
		})
	}
}

func TestLineWriterWireFormat(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := NewLineWriter(buf, "").WriteLine("CO ON"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "CO ON\n" {
		t.Errorf("wire = %q", buf.String())
	}
}

func TestLineWriterRejects(t *testing.T) {
	w := NewLineWriter(io.Discard, "")
	if err := w.WriteLine(""); !errors.Is(err, ErrLineEmpty) {
		t.Errorf("empty: %v", err)
	}
	if err := w.WriteLine("AM 30\nAM ON"); !errors.Is(err, ErrEmbeddedTerminator) {
		t.Errorf("embedded: %v", err)
	}
}

func TestLineReaderTooLong(t *testing.T) {
	r := NewLineReader(strings.NewReader(strings.Repeat("x", 100) + "\n"))
	r.SetMaxLineSize(10)
	if _, err := r.ReadLine(); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("expected ErrLineTooLong, got %v", err)
	}
}

func TestLineReaderLongLineWithinLimit(t *testing.T) {
	long := strings.Repeat("y", DefaultMaxLineSize-10)
	r := NewLineReader(strings.NewReader(long + "\r\n"))
	got, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if got != long {
		t.Errorf("got %d bytes, want %d", len(got), len(long))
	}
}

func TestLineReaderUnterminated(t *testing.T) {
	r := NewLineReader(strings.NewReader("PARTIAL"))
	if _, err := r.ReadLine(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

// failingReader returns its chunks in order, failing between them.
type failingReader struct {
	chunks []string
}

var errReadFailed = errors.New("read failed")

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.chunks) == 0 {
		return 0, io.EOF
	}
	c := f.chunks[0]
	f.chunks = f.chunks[1:]
	if c == "" {
		return 0, errReadFailed
	}
	return copy(p, c), nil
}

func TestLineReaderSkipsAbandonedLine(t *testing.T) {
	r := NewLineReader(&failingReader{chunks: []string{"PANA", "", "SONIC\nnext\n"}})

	if _, err := r.ReadLine(); !errors.Is(err, errReadFailed) {
		t.Fatalf("expected errReadFailed, got %v", err)
	}
	if !r.Stale() {
		t.Error("reader should be stale after a failed read")
	}
	got, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if got != "next" {
		t.Errorf("got %q, want next", got)
	}
}

func TestLineReaderDrain(t *testing.T) {
	r := NewLineReader(&failingReader{chunks: []string{"", "late\nPAR", "", "TIAL\nnext\n"}})

	if _, err := r.ReadLine(); !errors.Is(err, errReadFailed) {
		t.Fatalf("expected errReadFailed, got %v", err)
	}
	if n := r.Drain(); n != len("late\nPAR") {
		t.Errorf("Drain() = %d, want %d", n, len("late\nPAR"))
	}
	if r.Stale() {
		t.Error("reader still stale after Drain")
	}
	got, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if got != "next" {
		t.Errorf("got %q, want next", got)
	}
}

func TestFramerCapture(t *testing.T) {
	var rw bytes.Buffer
	capture := &captureLogger{}
	f := NewFramer(&rw, "")
	f.SetLogger(capture, "sess-1", "GPIB0::7::INSTR")

	if err := f.WriteLine("AM ON"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadLine(); err != nil {
		t.Fatal(err)
	}

	events := capture.snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Direction != log.DirectionOut || events[1].Direction != log.DirectionIn {
		t.Errorf("directions: %v, %v", events[0].Direction, events[1].Direction)
	}
	for _, e := range events {
		if e.Layer != log.LayerTransport || e.Frame == nil {
			t.Fatalf("unexpected event %+v", e)
		}
		if e.Frame.Size != 6 || string(e.Frame.Data) != "AM ON\n" {
			t.Errorf("frame = %d %q", e.Frame.Size, e.Frame.Data)
		}
		if e.SessionID != "sess-1" || e.Resource != "GPIB0::7::INSTR" {
			t.Errorf("ids = %q %q", e.SessionID, e.Resource)
		}
	}
}

func TestLineEventTruncates(t *testing.T) {
	data := bytes.Repeat([]byte("z"), MaxLogLineSize+50)
	e := lineEvent(data, log.DirectionIn, "s", "r")
	if !e.Frame.Truncated || len(e.Frame.Data) != MaxLogLineSize || e.Frame.Size != len(data) {
		t.Errorf("frame = size %d len %d truncated %v", e.Frame.Size, len(e.Frame.Data), e.Frame.Truncated)
	}
}
