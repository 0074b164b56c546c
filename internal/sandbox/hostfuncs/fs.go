package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/tetratelabs/wazero/api"
)

// maxFileReadSize bounds fs_read responses so a plugin cannot make the
// host buffer arbitrarily large files.
const maxFileReadSize = 16 * 1024 * 1024

// FileRead implements the `fs_read` host function. The file's bytes
// are returned only when read for that path is granted.
func FileRead(ctx context.Context, mod api.Module, stack []uint64, gate *Gate) {
	var request FileReadRequestWire
	if err := readWire(ctx, mod, stack[0], &request); err != nil {
		stack[0] = writeWire(ctx, mod, FileReadResponseWire{Error: toErrorDetail(err)})
		return
	}

	content, err := readHostFile(ctx, gate, request.Path)
	if err != nil {
		slog.WarnContext(ctx, "fs_read refused", "path", request.Path, "error", err)
		stack[0] = writeWire(ctx, mod, FileReadResponseWire{Error: toErrorDetail(err)})
		return
	}

	stack[0] = writeWire(ctx, mod, FileReadResponseWire{Content: content})
}

// readHostFile gates the read and loads the file. Separated from the
// wasm plumbing so the gating is testable on its own.
func readHostFile(ctx context.Context, gate *Gate, path string) ([]byte, error) {
	if err := gate.Require(ctx, permission.NewDescriptor(permission.NameRead, path)); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot read %s: is a directory", path)
	}
	if info.Size() > maxFileReadSize {
		return nil, fmt.Errorf("cannot read %s: exceeds %d bytes", path, maxFileReadSize)
	}

	//nolint:gosec // G304: the path was granted by the capability gate above
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, nil
}
