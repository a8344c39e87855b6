// Package log provides structured protocol capture for instrument sessions.
//
// This package defines the Logger interface and Event types for recording
// everything exchanged with an instrument: each line on the bus, each
// command and query at the session layer, retries and state changes. It is
// separate from operational logging (slog). Protocol capture is a complete
// machine-readable trace for debugging a measurement run after the fact.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For bench runs: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/vp8122a/run.vplog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at two layers:
//   - Transport: raw lines on the bus (FrameEvent)
//   - Session: commands, queries and responses (MessageEvent), retries
//     (RetryEvent) and connection state (StateChangeEvent)
//
// Errors at either layer use ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with the .vplog
// extension. The vp-log CLI tool provides viewing, filtering, export and
// statistics.
package log
