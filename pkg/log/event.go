package log

import "time"

// Event represents a protocol event captured at the transport or session layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Resource is the bus resource id (e.g. "TCPIP0::10.0.0.7::5025::SOCKET").
	Resource string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Session layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection state
	Retry       *RetryEvent       `cbor:"13,keyasint,omitempty"` // Query retries
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data read from the instrument.
	DirectionIn Direction = 0
	// DirectionOut indicates data written to the instrument.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the line layer (raw text on the bus).
	LayerTransport Layer = 0
	// LayerSession is the command/query layer.
	LayerSession Layer = 1
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a command, query or response.
	CategoryMessage Category = 0
	// CategoryRetry indicates a failed query attempt that will be retried.
	CategoryRetry Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryRetry:
		return "RETRY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one line at the transport layer.
type FrameEvent struct {
	// Size is the line size in bytes (including the terminator).
	Size int `cbor:"1,keyasint"`

	// Data is the raw line (may be truncated for long lines).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a command, query or response at the session layer.
type MessageEvent struct {
	// Type distinguishes command/query/response.
	Type MessageType `cbor:"1,keyasint"`

	// Text is the command text or the response body.
	Text string `cbor:"2,keyasint"`

	// Attempt is the 1-based query attempt (queries and responses only).
	Attempt int `cbor:"3,keyasint,omitempty"`

	// Clamped marks a command whose numeric argument was corrected.
	Clamped bool `cbor:"4,keyasint,omitempty"`

	// Duration is the bus round trip (responses only). Stored as nanoseconds.
	Duration *time.Duration `cbor:"5,keyasint,omitempty"`
}

// MessageType distinguishes commands, queries and responses.
type MessageType uint8

const (
	// MessageTypeCommand is a write without a reply.
	MessageTypeCommand MessageType = 0
	// MessageTypeQuery is a write that expects a reply.
	MessageTypeQuery MessageType = 1
	// MessageTypeResponse is the reply to a query.
	MessageTypeResponse MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeQuery:
		return "QUERY"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a bus connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change (remote/local).
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// RetryEvent captures a failed query attempt.
type RetryEvent struct {
	// Command is the query text.
	Command string `cbor:"1,keyasint"`

	// Attempt is the 1-based attempt that failed.
	Attempt int `cbor:"2,keyasint"`

	// MaxAttempts is the retry budget.
	MaxAttempts int `cbor:"3,keyasint"`

	// Delay is the wait before the next attempt (zero on the last one).
	Delay time.Duration `cbor:"4,keyasint,omitempty"`

	// Timeout marks timeout-class failures.
	Timeout bool `cbor:"5,keyasint,omitempty"`

	// Reason is the failure message.
	Reason string `cbor:"6,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
