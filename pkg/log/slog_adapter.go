package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes diagnostics events to an slog.Logger.
// Useful for development when you want to see engine events in console.
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
		slog.String("conn_id", event.ConnectionID),
		slog.String("category", event.Category.String()),
	}

	if event.Wallet != "" {
		attrs = append(attrs, slog.String("wallet", event.Wallet))
	}
	if event.Topic != "" {
		attrs = append(attrs, slog.String("topic", event.Topic))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Forced {
			attrs = append(attrs, slog.Bool("forced", true))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Reconnect != nil:
		attrs = append(attrs,
			slog.String("source", event.Reconnect.Source),
			slog.Int("attempt", event.Reconnect.Attempt),
			slog.Bool("success", event.Reconnect.Success),
		)
		if event.Reconnect.MaxAttempts > 0 {
			attrs = append(attrs, slog.Int("max_attempts", event.Reconnect.MaxAttempts))
		}
		if event.Reconnect.Timeout > 0 {
			attrs = append(attrs, slog.Duration("timeout", event.Reconnect.Timeout))
		}
		if event.Reconnect.Background {
			attrs = append(attrs, slog.Bool("background", true))
		}
		if event.Reconnect.Skipped {
			attrs = append(attrs, slog.Bool("skipped", true))
		}
	case event.Resolution != nil:
		attrs = append(attrs, slog.String("outcome", event.Resolution.Outcome))
		if event.Resolution.MatchedBy != "" {
			attrs = append(attrs, slog.String("matched_by", event.Resolution.MatchedBy))
		}
		if event.Resolution.TopicMigrated {
			attrs = append(attrs, slog.Bool("topic_migrated", true))
		}
	case event.Timeout != nil:
		attrs = append(attrs,
			slog.String("kind", event.Timeout.Kind.String()),
			slog.Duration("elapsed", event.Timeout.Elapsed),
			slog.String("relay_state", event.Timeout.RelayState),
			slog.Bool("deeplink_dispatched", event.Timeout.DeepLinkDispatched),
			slog.Bool("deeplink_return", event.Timeout.DeepLinkReturnReceived),
		)
		if event.Timeout.BackgroundDuration > 0 {
			attrs = append(attrs, slog.Duration("background_duration", event.Timeout.BackgroundDuration))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_code", event.Error.Code),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "engine", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
