// Package command builds the ASCII command strings understood by the
// Panasonic VP-8122A class AM/FM signal generator.
//
// Every controllable parameter is described by a node: a two-letter prefix
// plus the capabilities the front panel offers for it. Nodes are assembled
// once from a declarative table (see VP8122A) into a Registry and never
// change afterwards.
//
// # Command Format
//
// The device parser expects exactly one space between the prefix and its
// argument, and no space before a unit suffix:
//
//	AM 30        numeric, no suffix
//	FR 0.531MZ   numeric with suffix
//	CO ON        toggle
//	MS 01        enumeration
//	GTL          literal
//
// # Range Handling
//
// Numeric values outside a node's bounds are clamped to the nearest bound,
// never rejected. Each correction is reported through the registry's clamp
// handler (a slog warning by default) and carried on the Rendered result as
// a RangeViolation for callers that want to act on it.
//
// # Usage
//
//	reg := command.MustRegistry(command.VP8122A())
//	reg.AM.Set.Val(command.Int(30))      // "AM 30"
//	reg.Freq.MHz.Val(command.Float(0.531)) // "FR 0.531MZ"
//	reg.AM.Set1kHz()                     // "AM T1"
//	reg.Render("output.dBuV", "20.0")    // "AP 20.0DB"
package command
