package hostfuncs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/tetratelabs/wazero/api"
)

// Wire structs cross the guest boundary as JSON, passed through linear
// memory as packed ptr+len values.

// QueryRequestWire asks for the state of one capability.
type QueryRequestWire struct {
	Kind      string `json:"kind"`
	Qualifier string `json:"qualifier,omitempty"`
}

// StateResponseWire answers a permission query or request.
type StateResponseWire struct {
	State string       `json:"state,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// FileReadRequestWire asks for the contents of a host file.
type FileReadRequestWire struct {
	Path string `json:"path"`
}

// FileReadResponseWire carries file contents back to the guest.
type FileReadResponseWire struct {
	Content []byte       `json:"content,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// EnvGetRequestWire asks for a host environment variable.
type EnvGetRequestWire struct {
	Name string `json:"name"`
}

// EnvGetResponseWire carries an environment value back to the guest.
type EnvGetResponseWire struct {
	Value string       `json:"value,omitempty"`
	Found bool         `json:"found,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// LogMessageWire is a log record emitted by the guest.
type LogMessageWire struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ErrorDetail is a structured host error. Type is "capability" for
// gate denials, "io" for host resource failures, "internal" otherwise.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// packPtrLen and unpackPtrLen follow the SDK ABI: pointer in the high
// 32 bits, length in the low 32.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)    //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}

// readWire reads a packed ptr+len from guest memory and unmarshals the
// JSON payload into v.
func readWire(ctx context.Context, mod api.Module, packed uint64, v any) error {
	ptr, length := unpackPtrLen(packed)

	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		slog.ErrorContext(ctx, "hostfuncs: failed to read request from guest memory")
		return fmt.Errorf("failed to read request from guest memory")
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.ErrorContext(ctx, "hostfuncs: failed to unmarshal request", "error", err)
		return fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return nil
}

// writeWire marshals response, copies it into guest memory through the
// guest's allocate export, and returns the packed ptr+len.
func writeWire(ctx context.Context, mod api.Module, response any) uint64 {
	data, err := json.Marshal(response)
	if err != nil {
		slog.ErrorContext(ctx, "hostfuncs: failed to marshal response", "error", err)
		data, _ = json.Marshal(StateResponseWire{
			Error: &ErrorDetail{Message: "failed to marshal response", Type: "internal"},
		})
	}

	results, err := mod.ExportedFunction("allocate").Call(ctx, uint64(len(data)))
	if err != nil {
		slog.ErrorContext(ctx, "hostfuncs: failed to call guest allocate function", "error", err)
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	mod.Memory().Write(ptr, data)

	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: WASM memory allocations are bounded to 4GB
}

// toErrorDetail converts a host error, tagging gate denials so the
// guest can tell policy from plumbing.
func toErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	detail := &ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
	switch {
	case IsDenied(err):
		detail.Type = "capability"
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		detail.Type = "io"
	}
	return detail
}
