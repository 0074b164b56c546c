package hostfuncs

import (
	"context"
	"log/slog"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/tetratelabs/wazero/api"
)

// PermissionQuery implements the `permission_query` host function.
// It reports the state of a capability without escalating it.
func PermissionQuery(ctx context.Context, mod api.Module, stack []uint64, gate *Gate) {
	answerPermission(ctx, mod, stack, gate.State)
}

// PermissionRequest implements the `permission_request` host function.
// It escalates the capability, prompting the user when the host is
// interactive.
func PermissionRequest(ctx context.Context, mod api.Module, stack []uint64, gate *Gate) {
	answerPermission(ctx, mod, stack, gate.Request)
}

func answerPermission(ctx context.Context, mod api.Module, stack []uint64, decide func(context.Context, permission.Descriptor) (permission.State, error)) {
	var request QueryRequestWire
	if err := readWire(ctx, mod, stack[0], &request); err != nil {
		stack[0] = writeWire(ctx, mod, StateResponseWire{Error: toErrorDetail(err)})
		return
	}

	d := permission.NewDescriptor(permission.Name(request.Kind), request.Qualifier)
	state, err := decide(ctx, d)
	if err != nil {
		slog.WarnContext(ctx, "capability check failed", "capability", d.Key().String(), "error", err)
		stack[0] = writeWire(ctx, mod, StateResponseWire{Error: toErrorDetail(err)})
		return
	}

	stack[0] = writeWire(ctx, mod, StateResponseWire{State: string(state)})
}
