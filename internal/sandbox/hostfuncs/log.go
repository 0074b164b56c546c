package hostfuncs

import (
	"context"
	"log/slog"

	"github.com/gatelet-dev/gatelet/internal/redaction"
	"github.com/tetratelabs/wazero/api"
)

// LogMessage implements the `log_message` host function. Messages and
// attribute values pass through the scrubber before reaching the host
// log. It returns nothing to the guest.
func LogMessage(ctx context.Context, mod api.Module, stack []uint64, scrubber *redaction.Scrubber) {
	var message LogMessageWire
	if err := readWire(ctx, mod, stack[0], &message); err != nil {
		return
	}

	scrub := func(s string) string {
		if scrubber == nil {
			return s
		}
		return scrubber.ScrubString(s)
	}

	attrs := make([]slog.Attr, 0, len(message.Attrs)+1)
	attrs = append(attrs, slog.String("plugin", mod.Name()))
	for key, value := range message.Attrs {
		attrs = append(attrs, slog.String(key, scrub(value)))
	}

	slog.LogAttrs(ctx, parseLogLevel(message.Level), scrub(message.Message), attrs...)
}

// parseLogLevel converts a guest level string to slog.Level, falling
// back to info.
func parseLogLevel(levelStr string) slog.Level {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		slog.Warn("hostfuncs: unknown log level from plugin", "level", levelStr)
	}
	return level
}
