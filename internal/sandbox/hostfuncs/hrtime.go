package hostfuncs

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/tetratelabs/wazero/api"
)

// HrtimeNow implements the `hrtime_now` host function. It returns a
// nanosecond timestamp when hrtime is granted and a
// millisecond-coarsened one otherwise, blunting timing side channels
// for plugins that were not given the capability.
func HrtimeNow(ctx context.Context, _ api.Module, stack []uint64, gate *Gate) {
	state, err := gate.State(ctx, permission.Descriptor{Name: permission.NameHrtime})
	if err != nil {
		slog.WarnContext(ctx, "hrtime state check failed, coarsening", "error", err)
		state = permission.StatePrompt
	}

	stack[0] = uint64(Timestamp(time.Now(), state == permission.StateGranted)) //nolint:gosec // G115: unix nanos fit int64, reinterpreted for the stack
}

// Timestamp renders now as unix nanoseconds, truncated to millisecond
// precision unless fine-grained timing was granted.
func Timestamp(now time.Time, fineGrained bool) int64 {
	if fineGrained {
		return now.UnixNano()
	}
	return now.Truncate(time.Millisecond).UnixNano()
}
