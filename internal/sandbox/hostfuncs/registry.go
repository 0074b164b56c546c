package hostfuncs

import (
	"context"

	"github.com/gatelet-dev/gatelet/internal/redaction"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// RegisterHostFunctions registers the gatelet_host module with the
// wazero runtime. Every function takes and returns packed ptr+len
// values except hrtime_now (bare i64 result) and log_message (no
// result).
func RegisterHostFunctions(ctx context.Context, runtime wazero.Runtime, gate *Gate, scrubber *redaction.Scrubber) error {
	builder := runtime.NewHostModuleBuilder("gatelet_host")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			PermissionQuery(ctx, mod, stack, gate)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("permission_query")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			PermissionRequest(ctx, mod, stack, gate)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("permission_request")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			FileRead(ctx, mod, stack, gate)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("fs_read")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			EnvGet(ctx, mod, stack, gate)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("env_get")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			HrtimeNow(ctx, mod, stack, gate)
		}), []api.ValueType{}, []api.ValueType{api.ValueTypeI64}).
		Export("hrtime_now")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			LogMessage(ctx, mod, stack, scrubber)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}
