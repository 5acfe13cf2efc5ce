package wazero

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/value"
)

// DefaultAsyncPoolSize bounds the goroutines serving asynchronous wasm
// requests across all modules of one Opener.
const DefaultAsyncPoolSize = 64

type openerConfig struct {
	logger           *slog.Logger
	registry         *hostfuncs.Registry
	moduleName       string
	asyncPoolSize    int
	maxRequestSize   uint32
	memoryLimitPages uint32
	alloc            *value.Allocator
}

// OpenerOption configures an Opener.
type OpenerOption func(*openerConfig)

// WithLogger sets the logger for the opener and its host functions.
func WithLogger(logger *slog.Logger) OpenerOption {
	return func(c *openerConfig) {
		c.logger = logger
	}
}

// WithRegistry replaces the default host function registry. The registry
// should include hostfuncs.Services for guests built with the plugin SDK.
func WithRegistry(registry *hostfuncs.Registry) OpenerOption {
	return func(c *openerConfig) {
		c.registry = registry
	}
}

// WithHostModuleName sets the import module name of the host functions.
func WithHostModuleName(name string) OpenerOption {
	return func(c *openerConfig) {
		c.moduleName = name
	}
}

// WithAsyncPoolSize bounds the asynchronous worker pool.
func WithAsyncPoolSize(n int) OpenerOption {
	return func(c *openerConfig) {
		c.asyncPoolSize = n
	}
}

// WithAllocator sets the pool that guest responses and task outputs are
// copied into. By default every Opener has its own.
func WithAllocator(alloc *value.Allocator) OpenerOption {
	return func(c *openerConfig) {
		c.alloc = alloc
	}
}

// WithMemoryLimitPages caps the linear memory of every guest, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) OpenerOption {
	return func(c *openerConfig) {
		c.memoryLimitPages = pages
	}
}

// Opener compiles and instantiates wasm plugin modules. All libraries it
// opens share one wazero runtime, the WASI imports and the host module.
type Opener struct {
	runtime   wazero.Runtime
	pool      *ants.Pool
	alloc     *value.Allocator
	logger    *slog.Logger
	closeErr  error
	seq       atomic.Uint64
	closeOnce sync.Once
}

// NewOpener creates the shared runtime and registers the host functions.
func NewOpener(ctx context.Context, opts ...OpenerOption) (*Opener, error) {
	cfg := openerConfig{
		moduleName:     DefaultHostModuleName,
		asyncPoolSize:  DefaultAsyncPoolSize,
		maxRequestSize: hostfuncs.DefaultMaxRequestSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.alloc == nil {
		cfg.alloc = value.NewAllocator()
	}
	if cfg.registry == nil {
		registry, err := hostfuncs.NewServicesRegistry(
			hostfuncs.WithMiddleware(hostfuncs.Logging(cfg.logger)),
		)
		if err != nil {
			return nil, fmt.Errorf("wazero: build host function registry: %w", err)
		}
		cfg.registry = registry
	}

	rtConfig := wazero.NewRuntimeConfig()
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("wazero: instantiate WASI: %w", err)
	}
	host := HostModule{Name: cfg.moduleName, MaxRequestSize: cfg.maxRequestSize}
	if _, err := host.Register(ctx, runtime, cfg.registry); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("wazero: register host module: %w", err)
	}

	pool, err := ants.NewPool(cfg.asyncPoolSize)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("wazero: create async pool: %w", err)
	}

	return &Opener{
		runtime: runtime,
		pool:    pool,
		alloc:   cfg.alloc,
		logger:  cfg.logger,
	}, nil
}

// Allocator returns the pool guest payloads are copied into.
func (o *Opener) Allocator() *value.Allocator {
	return o.alloc
}

// Open reads, compiles and instantiates the module at path.
func (o *Opener) Open(ctx context.Context, path string) (ports.Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.CodeFileNotFound, "open "+path, err)
		}
		return nil, errors.Wrap(errors.CodeIO, "open "+path, err)
	}
	return o.OpenBytes(ctx, path, data)
}

// OpenBytes instantiates an in-memory module. name stands in for the path.
func (o *Opener) OpenBytes(ctx context.Context, name string, wasm []byte) (ports.Library, error) {
	compiled, err := o.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, "compile "+name, err)
	}

	instanceName := fmt.Sprintf("%s#%d", filepath.Base(name), o.seq.Add(1))
	modConfig := wazero.NewModuleConfig().
		WithName(instanceName).
		WithStartFunctions()

	mod, err := o.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Wrap(errors.CodePluginLoadFailed, "instantiate "+name, err)
	}

	if initFn := mod.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(hostfuncs.WithCaller(ctx, instanceName)); err != nil {
			_ = mod.Close(ctx)
			_ = compiled.Close(ctx)
			return nil, errors.Wrap(errors.CodePluginLoadFailed, "initialize "+name, err)
		}
	}

	o.logger.DebugContext(ctx, "wazero: module instantiated", "path", name, "module", instanceName)
	return &library{
		opener:   o,
		mod:      mod,
		compiled: compiled,
		path:     name,
		name:     instanceName,
	}, nil
}

// Close releases the async pool and the runtime, closing every module
// still open.
func (o *Opener) Close(ctx context.Context) error {
	o.closeOnce.Do(func() {
		o.pool.Release()
		o.closeErr = o.runtime.Close(ctx)
	})
	return o.closeErr
}

var _ ports.LibraryOpener = (*Opener)(nil)
