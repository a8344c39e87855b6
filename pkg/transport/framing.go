package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rfbench/vp8122a-go/pkg/log"
)

// Framing constants.
const (
	// DefaultTerminator ends every command and reply line.
	DefaultTerminator = "\n"

	// DefaultMaxLineSize is the default maximum line size (4 KB).
	DefaultMaxLineSize = 4096

	// MaxLogLineSize is the maximum line size included in capture events.
	MaxLogLineSize = 1024
)

// Framing errors.
var (
	// ErrLineTooLong indicates the line exceeds the maximum size.
	ErrLineTooLong = errors.New("line too long")

	// ErrLineEmpty indicates an empty command.
	ErrLineEmpty = errors.New("line is empty")

	// ErrEmbeddedTerminator indicates a command containing a line break.
	ErrEmbeddedTerminator = errors.New("line contains a terminator")
)

// LineWriter writes terminated lines to an underlying writer.
type LineWriter struct {
	w          io.Writer
	terminator string
	mu         sync.Mutex

	// Capture support (optional)
	logger    log.Logger
	sessionID string
	resource  string
}

// NewLineWriter creates a line writer using terminator ("" means "\n").
func NewLineWriter(w io.Writer, terminator string) *LineWriter {
	if terminator == "" {
		terminator = DefaultTerminator
	}
	return &LineWriter{w: w, terminator: terminator}
}

// SetLogger configures capture for this writer. Pass nil to disable.
func (lw *LineWriter) SetLogger(logger log.Logger, sessionID, resource string) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.logger = logger
	lw.sessionID = sessionID
	lw.resource = resource
}

// WriteLine writes line followed by the terminator in a single write.
// Thread-safe: can be called from multiple goroutines.
func (lw *LineWriter) WriteLine(line string) error {
	if line == "" {
		return ErrLineEmpty
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: %q", ErrEmbeddedTerminator, line)
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()

	data := []byte(line + lw.terminator)
	if _, err := lw.w.Write(data); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	if lw.logger != nil {
		lw.logger.Log(lineEvent(data, log.DirectionOut, lw.sessionID, lw.resource))
	}
	return nil
}

// LineReader reads terminated lines from an underlying reader.
// A reply may end in "\n" or "\r\n"; both are stripped.
type LineReader struct {
	r           *bufio.Reader
	maxLineSize int

	// partial is set when a read stopped inside a line. The rest of that
	// line is dropped before the next one is returned.
	partial bool

	// stale is set by any failed read: the peer may still deliver the
	// reply that was given up on.
	stale bool

	// Capture support (optional)
	logger    log.Logger
	sessionID string
	resource  string
}

// NewLineReader creates a line reader.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:           bufio.NewReaderSize(r, DefaultMaxLineSize),
		maxLineSize: DefaultMaxLineSize,
	}
}

// SetLogger configures capture for this reader. Pass nil to disable.
func (lr *LineReader) SetLogger(logger log.Logger, sessionID, resource string) {
	lr.logger = logger
	lr.sessionID = sessionID
	lr.resource = resource
}

// SetMaxLineSize updates the maximum line size.
func (lr *LineReader) SetMaxLineSize(size int) {
	lr.maxLineSize = size
}

// ReadLine reads one line and returns it without the terminator. The tail
// of a line abandoned by an earlier failed read is skipped first.
func (lr *LineReader) ReadLine() (string, error) {
	for lr.partial {
		_, err := lr.r.ReadSlice('\n')
		if err == nil {
			lr.partial = false
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			lr.stale = true
			return "", err
		}
	}

	var buf []byte
	for {
		chunk, err := lr.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > lr.maxLineSize {
			lr.partial = err != nil
			return "", fmt.Errorf("%w: > %d", ErrLineTooLong, lr.maxLineSize)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		lr.stale = true
		lr.partial = len(buf) > 0
		if errors.Is(err, io.EOF) && len(buf) > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	if lr.logger != nil {
		lr.logger.Log(lineEvent(buf, log.DirectionIn, lr.sessionID, lr.resource))
	}
	return strings.TrimRight(string(buf), "\r\n"), nil
}

// Stale reports whether a read failed since the last Drain.
func (lr *LineReader) Stale() bool {
	return lr.stale
}

// Drain discards input until the underlying reader fails, typically on a
// short read deadline set by the caller, and returns the number of bytes
// dropped. A trailing unterminated fragment is remembered so that its
// remainder is skipped by the next ReadLine.
func (lr *LineReader) Drain() int {
	n := 0
	for {
		chunk, err := lr.r.ReadSlice('\n')
		n += len(chunk)
		if err == nil {
			lr.partial = false
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			lr.partial = true
			continue
		}
		if len(chunk) > 0 {
			lr.partial = true
		}
		break
	}
	lr.stale = false
	return n
}

// lineEvent creates a capture event for a line.
func lineEvent(data []byte, direction log.Direction, sessionID, resource string) log.Event {
	size := len(data)
	truncated := false
	if len(data) > MaxLogLineSize {
		data = data[:MaxLogLineSize]
		truncated = true
	}
	return log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Resource:  resource,
		Frame: &log.FrameEvent{
			Size:      size,
			Data:      append([]byte(nil), data...),
			Truncated: truncated,
		},
	}
}

// Framer combines line reading and writing.
type Framer struct {
	*LineReader
	*LineWriter
}

// NewFramer creates a framer for bidirectional line I/O.
func NewFramer(rw io.ReadWriter, terminator string) *Framer {
	return &Framer{
		LineReader: NewLineReader(rw),
		LineWriter: NewLineWriter(rw, terminator),
	}
}

// SetLogger configures capture for both reader and writer.
func (f *Framer) SetLogger(logger log.Logger, sessionID, resource string) {
	f.LineReader.SetLogger(logger, sessionID, resource)
	f.LineWriter.SetLogger(logger, sessionID, resource)
}
