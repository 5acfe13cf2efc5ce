package wazero

import (
	"context"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/internal/abi"
)

// DefaultHostModuleName is the import module guests use for host functions.
const DefaultHostModuleName = "plughost"

// HostModule exports a hostfuncs.Registry to guests. Every function has
// type (i64) -> i64: the argument is the packed ptr+len of a JSON request
// in guest memory and the result the packed ptr+len of the response,
// written into memory from the guest's allocate export.
//
// Failures come back to the guest as a hostfuncs.Fault. A zero word means
// the response itself could not be written.
type HostModule struct {
	// Name is the import module name; empty means DefaultHostModuleName.
	Name string

	// MaxRequestSize bounds requests read from guest memory; zero means
	// hostfuncs.DefaultMaxRequestSize.
	MaxRequestSize uint32
}

// Register instantiates the host module on runtime.
func (h HostModule) Register(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.Registry) (api.Module, error) {
	if h.Name == "" {
		h.Name = DefaultHostModuleName
	}
	if h.MaxRequestSize == 0 {
		h.MaxRequestSize = hostfuncs.DefaultMaxRequestSize
	}

	builder := runtime.NewHostModuleBuilder(h.Name)
	for _, name := range registry.Names() {
		fn := name
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = handleRegistryCall(ctx, mod, stack[0], registry, fn, h.MaxRequestSize)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(fn)
	}
	return builder.Instantiate(ctx)
}

func handleRegistryCall(ctx context.Context, mod api.Module, packed uint64, registry *hostfuncs.Registry, name string, maxRequestSize uint32) uint64 {
	caller := callerName(ctx, mod)
	ctx = hostfuncs.WithCaller(ctx, caller)

	_, length, err := abi.UnpackPtrLen(packed)
	if err != nil {
		return writeFault(ctx, mod, hostfuncs.Invalid("bad request word: %v", err))
	}
	if length > maxRequestSize {
		return writeFault(ctx, mod, hostfuncs.Invalid("request of %d bytes exceeds the %d byte limit", length, maxRequestSize))
	}

	request, err := readGuest(mod, packed)
	if err != nil {
		slog.ErrorContext(ctx, "wazero: failed to read request", "function", name, "caller", caller, "error", err)
		return writeFault(ctx, mod, hostfuncs.FaultOf(err))
	}

	response, err := registry.Call(ctx, name, request)
	if err != nil {
		return writeFault(ctx, mod, hostfuncs.FaultOf(err))
	}
	return writeResponse(ctx, mod, response)
}

// callerName is the instance name set on ctx, or the guest module's name.
func callerName(ctx context.Context, mod api.Module) string {
	if name := hostfuncs.Caller(ctx); name != "" {
		return name
	}
	return mod.Name()
}

// writeResponse hands data to the guest and returns its packed ptr+len, or
// 0 on failure.
func writeResponse(ctx context.Context, mod api.Module, data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	ptr, err := writeGuest(ctx, mod, data)
	if err != nil {
		slog.ErrorContext(ctx, "wazero: failed to write response", "caller", callerName(ctx, mod), "error", err)
		return 0
	}
	return abi.PackPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by guest memory
}

func writeFault(ctx context.Context, mod api.Module, f *hostfuncs.Fault) uint64 {
	return writeResponse(ctx, mod, f.Bytes())
}
