// Package sandbox executes WASM plugins under capability enforcement.
// Plugins reach host resources only through the gatelet_host functions,
// each of which gates on the permission facade.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/redaction"
	"github.com/gatelet-dev/gatelet/internal/sandbox/hostfuncs"
)

// globalCache speeds up compilation across runtimes.
var globalCache = wazero.NewCompilationCache()

// defaultMemoryLimitMB bounds guest memory unless overridden.
const defaultMemoryLimitMB = 256

// Runtime manages WASM execution.
type Runtime struct {
	runtime  wazero.Runtime
	mu       sync.RWMutex // Protects plugins map from concurrent access
	plugins  map[string]*Plugin
	perms    *permission.Permissions
	scrubber *redaction.Scrubber
}

// NewRuntime creates a runtime with the default memory limit.
func NewRuntime(ctx context.Context, perms *permission.Permissions, scrubber *redaction.Scrubber) (*Runtime, error) {
	return NewRuntimeWithMemoryLimit(ctx, perms, scrubber, 0)
}

// NewRuntimeWithMemoryLimit initializes a runtime with an explicit
// guest memory limit. 0 selects the default, -1 disables the limit.
func NewRuntimeWithMemoryLimit(ctx context.Context, perms *permission.Permissions, scrubber *redaction.Scrubber, memoryLimitMB int) (*Runtime, error) {
	if perms == nil {
		return nil, errors.New("sandbox: permission facade is required")
	}

	switch {
	case memoryLimitMB == 0:
		memoryLimitMB = defaultMemoryLimitMB
	case memoryLimitMB == -1:
		slog.Warn("WASM memory limit disabled (unlimited memory)")
	case memoryLimitMB > 0:
		if memoryLimitMB < 64 {
			slog.Warn("WASM memory limit very low, plugins may fail", "mb", memoryLimitMB)
		}
	default:
		return nil, fmt.Errorf("invalid WASM memory limit: %d (must be >= -1)", memoryLimitMB)
	}

	config := wazero.NewRuntimeConfig().WithCompilationCache(globalCache)
	if memoryLimitMB > 0 {
		// 1 MB = 16 pages of 64KB.
		pages := uint32(memoryLimitMB * 16) //nolint:gosec // G115: limit is validated above
		config = config.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, config)

	// Instantiate WASI for system calls (clock, random, etc.).
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	if err := hostfuncs.RegisterHostFunctions(ctx, r, hostfuncs.NewGate(perms), scrubber); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Runtime{
		runtime:  r,
		plugins:  make(map[string]*Plugin),
		perms:    perms,
		scrubber: scrubber,
	}, nil
}

// LoadPlugin compiles and caches a plugin.
func (r *Runtime) LoadPlugin(ctx context.Context, name string, wasmBytes []byte) (*Plugin, error) {
	// Fast path: plugin already loaded.
	r.mu.RLock()
	if p, ok := r.plugins[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine may have loaded it while we
	// waited for the lock.
	if p, ok := r.plugins[name]; ok {
		return p, nil
	}

	compiledModule, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile plugin %s: %w", name, err)
	}

	// Plugin output goes to stderr, scrubbed so secrets cannot leak.
	var stdout, stderr io.Writer = os.Stderr, os.Stderr
	if r.scrubber != nil {
		stdout = redaction.NewWriter(os.Stderr, r.scrubber)
		stderr = redaction.NewWriter(os.Stderr, r.scrubber)
	}

	plugin := &Plugin{
		name:    name,
		module:  compiledModule,
		runtime: r.runtime,
		stdout:  stdout,
		stderr:  stderr,
	}
	r.plugins[name] = plugin

	return plugin, nil
}

// GetPlugin retrieves a loaded plugin by name.
func (r *Runtime) GetPlugin(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Preflight queries every capability the manifest declares and returns
// the keys that are not currently granted. An empty result means the
// plugin can run without mid-flight prompts.
func (r *Runtime) Preflight(ctx context.Context, manifest *Manifest) ([]permission.Key, error) {
	if manifest == nil || len(manifest.Requires) == 0 {
		return nil, nil
	}

	statuses, err := r.perms.QueryAll(ctx, manifest.Descriptors())
	if err != nil {
		return nil, fmt.Errorf("failed to preflight %s: %w", manifest.Name, err)
	}

	var missing []permission.Key
	for _, status := range statuses {
		if status.State() != permission.StateGranted {
			missing = append(missing, status.Key())
		}
	}
	return missing, nil
}

// Close closes the runtime and cleans up resources.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
