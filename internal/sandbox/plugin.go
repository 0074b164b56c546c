package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Plugin is a compiled WASM module ready to run under the harness.
type Plugin struct {
	name    string
	module  wazero.CompiledModule
	runtime wazero.Runtime

	// Scrubbed output streams for guest stdout/stderr.
	stdout io.Writer
	stderr io.Writer
}

// RunReport is the JSON document a plugin's run entrypoint returns.
type RunReport struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Name returns the plugin's identifier.
func (p *Plugin) Name() string {
	return p.name
}

// Run instantiates the plugin with a fresh memory environment and
// executes its run entrypoint with the given configuration. Each call
// gets its own instance, so concurrent runs never share guest state.
func (p *Plugin) Run(ctx context.Context, config map[string]any) (*RunReport, error) {
	instance, err := p.createInstance(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = instance.Close(ctx)
	}()

	runFn := instance.ExportedFunction("run")
	if runFn == nil {
		return nil, fmt.Errorf("plugin %s does not export run()", p.name)
	}

	configData, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plugin config: %w", err)
	}

	configPtr, err := p.writeToMemory(ctx, instance, configData)
	if err != nil {
		return nil, fmt.Errorf("failed to write config to guest memory: %w", err)
	}
	defer p.deallocate(ctx, instance, configPtr, uint32(len(configData))) //nolint:gosec // G115: config size is bounded by guest memory

	results, err := runFn.Call(ctx, uint64(configPtr), uint64(len(configData)))
	if err != nil {
		return nil, fmt.Errorf("failed to call run(): %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("run() returned no results")
	}

	packed := results[0]
	ptr := uint32(packed >> 32) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	length := uint32(packed)    //nolint:gosec // G115: WASM32 lengths are always 32-bit
	if ptr == 0 || length == 0 {
		return nil, fmt.Errorf("run() returned null pointer or zero length")
	}

	data, err := p.readFromMemory(ctx, instance, ptr, length)
	if err != nil {
		return nil, fmt.Errorf("failed to read run() result: %w", err)
	}

	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse run() result: %w", err)
	}

	return &report, nil
}

// createInstance instantiates the module with isolated memory. Modules
// built with -buildmode=c-shared export _initialize, which must be
// called before anything else.
func (p *Plugin) createInstance(ctx context.Context) (api.Module, error) {
	config := wazero.NewModuleConfig().
		WithName(p.name).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader).
		WithStdout(p.stdout).
		WithStderr(p.stderr)

	instance, err := p.runtime.InstantiateModule(ctx, p.module, config)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate plugin %s: %w", p.name, err)
	}

	if initFn := instance.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			_ = instance.Close(ctx)
			return nil, fmt.Errorf("failed to initialize plugin %s: %w", p.name, err)
		}
	}

	return instance, nil
}

// writeToMemory copies data into guest memory through the guest's
// allocate export and returns the pointer to the block.
func (p *Plugin) writeToMemory(ctx context.Context, instance api.Module, data []byte) (uint32, error) {
	allocateFn := instance.ExportedFunction("allocate")
	if allocateFn == nil {
		return 0, fmt.Errorf("plugin %s does not export allocate()", p.name)
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate guest memory: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate() returned no results")
	}

	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("allocate() returned null pointer")
	}

	if !instance.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write to guest memory at offset %d", ptr)
	}

	return ptr, nil
}

// readFromMemory copies a guest buffer out and deallocates it.
func (p *Plugin) readFromMemory(ctx context.Context, instance api.Module, ptr, length uint32) ([]byte, error) {
	defer p.deallocate(ctx, instance, ptr, length)

	data, ok := instance.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("failed to read guest memory at offset %d", ptr)
	}

	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// deallocate returns a guest buffer, best effort. A cleanup panic must
// not clobber an in-flight one.
func (p *Plugin) deallocate(ctx context.Context, instance api.Module, ptr, length uint32) {
	defer func() {
		_ = recover()
	}()

	if deallocateFn := instance.ExportedFunction("deallocate"); deallocateFn != nil {
		//nolint:errcheck,gosec // G104: deallocation is best-effort cleanup
		deallocateFn.Call(ctx, uint64(ptr), uint64(length))
	}
}
