package wazero

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/internal/abi"
)

// Guest exports backing each entry point.
const (
	exportSDKVersion     = "plugin_sdk_version"
	exportUUID           = "plugin_uuid"
	exportVersion        = "plugin_version"
	exportSupportedTypes = "plugin_supported_types"
	exportCreate         = "plugin_create"
	exportGetInterface   = "plugin_get_interface"
	exportDestroy        = "plugin_destroy"
	exportCanUnloadNow   = "plugin_can_unload_now"
	exportInvoke         = "plugin_invoke"
)

// entryExports lists, per entry point, the guest exports it needs.
var entryExports = map[string][]string{
	ports.EntrySDKVersion:     {exportSDKVersion},
	ports.EntryUUID:           {exportUUID},
	ports.EntryVersion:        {exportVersion},
	ports.EntrySupportedTypes: {exportSupportedTypes},
	ports.EntryCreate:         {exportCreate, exportInvoke, exportAllocate},
	ports.EntryGetInterface:   {exportGetInterface},
	ports.EntryDestroy:        {exportDestroy},
	ports.EntryCanUnloadNow:   {exportCanUnloadNow},
}

// library is one instantiated guest module. Guest code is single-threaded,
// so every call into it holds mu.
type library struct {
	mod      api.Module
	compiled wazero.CompiledModule
	opener   *Opener
	path     string
	name     string
	mu       sync.Mutex
	closed   atomic.Bool
}

func (l *library) Path() string {
	return l.path
}

// Lookup resolves an entry point to a Go closure over the guest exports.
// The identity closures (SDK version, UUID, version, supported types) panic
// when the guest call fails; the loader recovers that as a load failure.
func (l *library) Lookup(name string) (any, error) {
	exports, ok := entryExports[name]
	if !ok {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, fmt.Sprintf("%s: unknown entry point", name), errors.ErrMissingEntryPoint)
	}
	for _, export := range exports {
		if l.mod.ExportedFunction(export) == nil {
			return nil, errors.Wrap(errors.CodePluginLoadFailed,
				fmt.Sprintf("%s: wasm export %q", name, export), errors.ErrMissingEntryPoint)
		}
	}

	switch name {
	case ports.EntrySDKVersion:
		return ports.SDKVersionFunc(func() entities.Version {
			return unpackVersion(l.mustCall(exportSDKVersion)[0])
		}), nil
	case ports.EntryUUID:
		return ports.UUIDFunc(l.readUUID), nil
	case ports.EntryVersion:
		return ports.VersionFunc(func() entities.Version {
			return unpackVersion(l.mustCall(exportVersion)[0])
		}), nil
	case ports.EntrySupportedTypes:
		return ports.SupportedTypesFunc(func() entities.Capability {
			return entities.Capability(l.mustCall(exportSupportedTypes)[0])
		}), nil
	case ports.EntryCreate:
		return ports.CreateFunc(l.create), nil
	case ports.EntryGetInterface:
		return ports.GetInterfaceFunc(l.getInterface), nil
	case ports.EntryDestroy:
		return ports.DestroyFunc(l.destroy), nil
	default:
		return ports.CanUnloadNowFunc(l.canUnloadNow), nil
	}
}

// Close closes the guest module. Closing twice is a no-op.
func (l *library) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.mod.Close(ctx)
	if cerr := l.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// guest runs fn with exclusive access to the module.
func (l *library) guest(fn func(mod api.Module) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return errors.ErrClosed
	}
	return fn(l.mod)
}

// call invokes a guest export.
func (l *library) call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	var results []uint64
	err := l.guest(func(mod api.Module) error {
		fn := mod.ExportedFunction(export)
		if fn == nil {
			return errors.Newf(errors.CodeNotImplemented, "wasm export %q missing", export)
		}
		var err error
		results, err = fn.Call(hostfuncs.WithCaller(ctx, l.name), params...)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "wasm "+export, err)
		}
		return nil
	})
	return results, err
}

func (l *library) mustCall(export string) []uint64 {
	results, err := l.call(context.Background(), export)
	if err != nil {
		panic(err)
	}
	if len(results) == 0 {
		panic(fmt.Errorf("wasm %s returned no result", export))
	}
	return results
}

func (l *library) readUUID() entities.UUID {
	packed := l.mustCall(exportUUID)[0]
	var raw []byte
	err := l.guest(func(mod api.Module) error {
		var err error
		raw, err = readGuest(mod, packed)
		return err
	})
	if err != nil {
		panic(err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		panic(fmt.Errorf("wasm %s: %w", exportUUID, err))
	}
	return id
}

func (l *library) create() (ports.Plugin, error) {
	results, err := l.call(context.Background(), exportCreate)
	if err != nil {
		return nil, err
	}
	handle := uint32(results[0]) //nolint:gosec // G115: i32 result
	if handle == 0 {
		return nil, errors.New(errors.CodeInitializationFailed, "wasm plugin_create returned no instance")
	}
	return &wasmPlugin{lib: l, handle: handle}, nil
}

func (l *library) getInterface(p ports.Plugin, capability entities.Capability, version uint32) (any, error) {
	wp, ok := p.(*wasmPlugin)
	if !ok || wp.lib != l {
		return nil, errors.Wrap(errors.CodeInvalidParameter, "wasm get_interface", errors.ErrInstanceMismatch)
	}
	if capability != entities.CapabilitySingleTask && capability != entities.CapabilityAsyncTask {
		return nil, &errors.CapabilityError{
			Capability: capability.String(),
			Version:    version,
			Err:        fmt.Errorf("not available to wasm plugins"),
		}
	}

	results, err := l.call(context.Background(), exportGetInterface,
		uint64(wp.handle), uint64(capability), uint64(version))
	if err != nil {
		return nil, err
	}
	if err := errors.FromCode(errors.Code(int32(uint32(results[0]))), "wasm get_interface "+capability.String()); err != nil { //nolint:gosec // G115: i32 result
		return nil, err
	}

	if capability == entities.CapabilityAsyncTask {
		return wp.asyncTask(), nil
	}
	return wp, nil
}

func (l *library) destroy(p ports.Plugin) {
	wp, ok := p.(*wasmPlugin)
	if !ok || wp.lib != l {
		return
	}
	if _, err := l.call(context.Background(), exportDestroy, uint64(wp.handle)); err != nil {
		l.opener.logger.Warn("wazero: destroy failed", "module", l.name, "instance", wp.handle, "error", err)
	}
}

func (l *library) canUnloadNow() bool {
	results, err := l.call(context.Background(), exportCanUnloadNow)
	if err != nil || len(results) == 0 {
		return false
	}
	return uint32(results[0]) != 0 //nolint:gosec // G115: i32 result
}

func unpackVersion(packed uint64) entities.Version {
	major, minor, patch := abi.UnpackVersion(uint32(packed)) //nolint:gosec // G115: i32 result
	return entities.NewVersion(major, minor, patch)
}

var _ ports.Library = (*library)(nil)
