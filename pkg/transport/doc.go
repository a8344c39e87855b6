// Package transport provides the instrument bus used by sessions.
//
// Instruments are addressed by VISA-style resource ids:
//
//	TCPIP0::10.0.0.7::5025::SOCKET   raw socket (LAN/GPIB gateways)
//	GPIB0::7::INSTR                  GPIB via a Prologix USB controller
//
// The package handles:
//   - Resource id parsing and validation
//   - Line framing (one command or reply per terminated line)
//   - Raw TCP socket and Prologix GPIB resources
//   - Resource listing and dispatch of Open by bus interface
//   - A line-based test server for emulating an instrument
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   ASCII commands ("AM 30")     │
//	├────────────────────────────────┤
//	│   Line framing ("\n")          │
//	├────────────────────────────────┤
//	│   TCP socket │ Prologix serial │
//	└────────────────────────────────┘
//
// # Timeouts
//
// Every Write and Query is bounded by the resource timeout (default 2 s)
// or the context deadline, whichever is earlier. Timeout-class failures
// match ErrTimeout; callers decide whether to retry.
package transport
