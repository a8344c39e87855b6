package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
// Useful during bench bring-up to watch the exchange on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.String("data", string(event.Frame.Data)),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Message.Type.String()),
			slog.String("text", event.Message.Text),
		)
		if event.Message.Attempt > 0 {
			attrs = append(attrs, slog.Int("attempt", event.Message.Attempt))
		}
		if event.Message.Clamped {
			attrs = append(attrs, slog.Bool("clamped", true))
		}
		if event.Message.Duration != nil {
			attrs = append(attrs, slog.Duration("duration", *event.Message.Duration))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Retry != nil:
		attrs = append(attrs,
			slog.String("command", event.Retry.Command),
			slog.Int("attempt", event.Retry.Attempt),
			slog.Int("max_attempts", event.Retry.MaxAttempts),
			slog.Duration("delay", event.Retry.Delay),
			slog.Bool("timeout", event.Retry.Timeout),
			slog.String("reason", event.Retry.Reason),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
