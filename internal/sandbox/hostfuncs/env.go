package hostfuncs

import (
	"context"
	"log/slog"
	"os"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/tetratelabs/wazero/api"
)

// EnvGet implements the `env_get` host function. The variable's value
// is returned only when env for that variable is granted.
func EnvGet(ctx context.Context, mod api.Module, stack []uint64, gate *Gate) {
	var request EnvGetRequestWire
	if err := readWire(ctx, mod, stack[0], &request); err != nil {
		stack[0] = writeWire(ctx, mod, EnvGetResponseWire{Error: toErrorDetail(err)})
		return
	}

	value, found, err := readHostEnv(ctx, gate, request.Name)
	if err != nil {
		slog.WarnContext(ctx, "env_get refused", "variable", request.Name, "error", err)
		stack[0] = writeWire(ctx, mod, EnvGetResponseWire{Error: toErrorDetail(err)})
		return
	}

	stack[0] = writeWire(ctx, mod, EnvGetResponseWire{Value: value, Found: found})
}

// readHostEnv gates the lookup and reads the variable.
func readHostEnv(ctx context.Context, gate *Gate, name string) (value string, found bool, err error) {
	if err := gate.Require(ctx, permission.NewDescriptor(permission.NameEnv, name)); err != nil {
		return "", false, err
	}
	value, found = os.LookupEnv(name)
	return value, found, nil
}
