package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/reglet-dev/plughost/application/config"
	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/host/registry"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/infrastructure/parser"
	"github.com/reglet-dev/plughost/infrastructure/statestore"
	wasmhost "github.com/reglet-dev/plughost/infrastructure/wazero"
	"github.com/reglet-dev/plughost/log"
	"github.com/reglet-dev/plughost/manager"
)

// Runtime owns the modules, instances and manager hierarchy of one host.
// It is safe for concurrent use.
type Runtime struct {
	config   runtimeConfig
	logger   *slog.Logger
	loader   *Loader
	registry *registry.Registry[*instance]
	root     *manager.Router
	ui       *uiThread
	metrics  *Metrics
	tracer   trace.Tracer
	sink     *log.PluginSink
	state    statestore.Backend
	wasm     *wasmhost.Opener

	ownsState bool
	closed    atomic.Bool
}

// NewRuntime builds a runtime. Without WithLibraryOpener it serves static
// modules, WebAssembly modules and Go plugins.
func NewRuntime(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := &Runtime{
		config:   cfg,
		logger:   cfg.logger,
		registry: registry.New[*instance](registry.WithMaxInstances(cfg.maxInstances)),
		sink:     log.NewPluginSink(cfg.logger),
		state:    cfg.state,
	}

	metrics, err := NewMetrics(cfg.registerer)
	if err != nil {
		return nil, err
	}
	rt.metrics = metrics

	tp := cfg.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	rt.tracer = tp.Tracer(tracerName)

	routerOpts := []manager.Option{manager.WithLogger(cfg.logger)}
	if cfg.validator != nil {
		routerOpts = append(routerOpts, manager.WithDescriptorValidator(cfg.validator))
	}
	if cfg.matcher != nil {
		routerOpts = append(routerOpts, manager.WithMatcher(cfg.matcher))
	}
	root, err := manager.NewRouter(rt, routerOpts...)
	if err != nil {
		return nil, err
	}
	rt.root = root

	opener := cfg.opener
	if opener == nil {
		multi := &MultiOpener{Static: cfg.static, GoPlugin: GoPluginOpener{}}
		if multi.Static == nil {
			multi.Static = NewStaticOpener()
		}
		if !cfg.disableWasm {
			funcs := cfg.hostFuncs
			if funcs == nil {
				funcs, err = hostfuncs.NewServicesRegistry(hostfuncs.WithMiddleware(
					hostfuncs.Logging(cfg.logger),
					hostfuncs.Observe(metrics.observeHostCall),
				))
				if err != nil {
					return nil, err
				}
			}
			wasmOpts := []wasmhost.OpenerOption{wasmhost.WithLogger(cfg.logger), wasmhost.WithRegistry(funcs)}
			if cfg.wasmPoolSize > 0 {
				wasmOpts = append(wasmOpts, wasmhost.WithAsyncPoolSize(cfg.wasmPoolSize))
			}
			w, err := wasmhost.NewOpener(ctx, wasmOpts...)
			if err != nil {
				return nil, errors.Wrap(errors.CodeInitializationFailed, "failed to start wasm backend", err)
			}
			rt.wasm = w
			multi.Wasm = w
		}
		opener = multi
	}

	if rt.state == nil {
		if cfg.stateConfig != nil {
			backend, err := statestore.Open(ctx, *cfg.stateConfig)
			if err != nil {
				if rt.wasm != nil {
					_ = rt.wasm.Close(ctx)
				}
				return nil, err
			}
			rt.state = backend
		} else {
			rt.state = statestore.NewMemoryBackend()
		}
		rt.ownsState = true
	}

	rt.loader = NewLoader(
		WithOpener(opener),
		WithLiveCounter(rt.registry),
		WithLoaderLogger(cfg.logger),
		WithHostSDKVersion(cfg.sdkVersion),
	)
	rt.ui = newUIThread()

	rt.logger.DebugContext(ctx, "host: runtime started",
		"language", cfg.language.String(),
		"sdk_version", cfg.sdkVersion.String(),
		"max_instances", cfg.maxInstances)
	return rt, nil
}

// NewRuntimeFromFile loads the YAML host configuration at path and creates
// a runtime from it. opts apply after the file, so they override it. An
// empty path uses the default configuration.
func NewRuntimeFromFile(ctx context.Context, path string, opts ...Option) (*Runtime, error) {
	hc, err := config.LoadHostConfig(path, parser.NewYamlConfigParser())
	if err != nil {
		return nil, err
	}
	return NewRuntime(ctx, append([]Option{WithHostConfig(hc)}, opts...)...)
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Language returns the system language reported to plugins.
func (rt *Runtime) Language() entities.Language { return rt.config.language }

// PluginsDirectory returns the configured module directory, if any.
func (rt *Runtime) PluginsDirectory() string { return rt.config.pluginsDir }

// Loader returns the module loader.
func (rt *Runtime) Loader() *Loader { return rt.loader }

// Root returns the root manager node. It is the host's own view of the
// whole hierarchy.
func (rt *Runtime) Root() *manager.Router { return rt.root }

// Metrics returns the runtime metrics.
func (rt *Runtime) Metrics() *Metrics { return rt.metrics }

// Load loads the module at path.
func (rt *Runtime) Load(ctx context.Context, path string) (*Module, error) {
	if rt.closed.Load() {
		return nil, errors.ErrClosed
	}
	m, err := rt.loader.Load(ctx, path)
	rt.metrics.modules.Set(float64(len(rt.loader.Modules())))
	return m, err
}

// Discover loads every module file in dir.
func (rt *Runtime) Discover(ctx context.Context, dir string) ([]*Module, []error) {
	if rt.closed.Load() {
		return nil, []error{errors.ErrClosed}
	}
	mods, errs := rt.loader.Discover(ctx, dir)
	rt.metrics.modules.Set(float64(len(rt.loader.Modules())))
	return mods, errs
}

// Unload unloads m when no instance of it is alive.
func (rt *Runtime) Unload(ctx context.Context, m *Module) error {
	err := rt.loader.Unload(ctx, m)
	rt.metrics.modules.Set(float64(len(rt.loader.Modules())))
	return err
}

func (rt *Runtime) lookup(id entities.InstanceID) (*instance, error) {
	inst, err := rt.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if inst.destroying.Load() {
		return nil, errors.ErrInvalidHandle
	}
	return inst, nil
}

// CreateInstance creates a plugin object from m and registers it under the
// root manager node, or under the node given by WithParent.
func (rt *Runtime) CreateInstance(ctx context.Context, m *Module, opts ...InstanceOption) (entities.InstanceID, error) {
	if rt.closed.Load() {
		return 0, errors.ErrClosed
	}
	if m == nil {
		return 0, errors.New(errors.CodeInvalidParameter, "nil module")
	}

	var cfg instanceConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	parent := rt.root
	if cfg.parent != entities.RootInstance {
		p, err := rt.lookup(cfg.parent)
		if err != nil {
			return 0, err
		}
		if p.node == nil {
			return 0, errors.Newf(errors.CodeInvalidParameter, "instance %s is not a manager", cfg.parent)
		}
		parent = p.node
	}

	inst, err := rt.register(ctx, m)
	if err != nil {
		return 0, err
	}
	id := inst.id
	inst.parent = parent
	parent.Attach(id)
	if m.supported.Has(entities.CapabilityManager) {
		node, err := parent.NewChild(id)
		if err != nil {
			parent.Detach(id)
			if _, rerr := rt.registry.Remove(id); rerr == nil {
				rt.destroyPlugin(ctx, inst)
			}
			return 0, err
		}
		inst.node = node
	}
	rt.metrics.instances.Set(float64(rt.registry.Len()))

	rt.logger.DebugContext(ctx, "host: instance created",
		"instance", id.String(),
		"module", m.path,
		"parent", parent.Owner().String(),
		"thread_safe", inst.threadSafe,
		"thread_requirements", inst.requirements.Names())
	return id, nil
}

// register creates the plugin object and inserts it in the registry while
// holding m's lifecycle lock, so Unload cannot slip in between.
func (rt *Runtime) register(ctx context.Context, m *Module) (*instance, error) {
	m.life.RLock()
	defer m.life.RUnlock()
	if !m.IsLoaded() {
		return nil, errors.Newf(errors.CodeInvalidState, "%s is unloaded", m.path)
	}

	var plugin ports.Plugin
	err := recoverCall(ports.EntryCreate, func() error {
		var cerr error
		plugin, cerr = m.create()
		return cerr
	})
	if err == nil && plugin == nil {
		err = stdErrors.New("create returned no plugin")
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeInitializationFailed, m.path, err)
	}

	inst := newInstance(m, plugin)
	if perr := recoverCall("thread_info", func() error {
		inst.threadSafe = plugin.IsThreadSafe()
		inst.requirements = plugin.ThreadRequirements()
		return nil
	}); perr != nil {
		rt.logger.WarnContext(ctx, "host: thread info query failed", "path", m.path, "error", perr)
		inst.threadSafe = false
	}

	id, err := rt.registry.Insert(m, inst)
	if err != nil {
		rt.destroyPlugin(ctx, inst)
		return nil, err
	}
	inst.id = id
	return inst, nil
}

// DestroyInstance cancels the instance's outstanding async requests and
// waits for them within ctx, uninitializes it if needed, detaches it from
// its router, unregisters it and finally calls the module's destroy entry.
func (rt *Runtime) DestroyInstance(ctx context.Context, id entities.InstanceID) error {
	inst, err := rt.lookup(id)
	if err != nil {
		return err
	}
	if !inst.destroying.CompareAndSwap(false, true) {
		return errors.ErrInvalidHandle
	}

	rt.drainAsync(ctx, inst)

	inst.initMu.Lock()
	if inst.initialized {
		if err := rt.dispatch(ctx, inst, "uninitialize", inst.plugin.Uninitialize); err != nil {
			rt.logger.WarnContext(ctx, "host: uninitialize during destroy failed",
				"instance", id.String(), "error", err)
		}
		inst.initialized = false
	}
	inst.initMu.Unlock()

	inst.parent.Detach(id)
	if _, err := rt.registry.Remove(id); err != nil {
		return err
	}
	rt.metrics.instances.Set(float64(rt.registry.Len()))
	rt.destroyPlugin(ctx, inst)

	rt.logger.DebugContext(ctx, "host: instance destroyed", "instance", id.String(), "module", inst.module.path)
	return nil
}

func (rt *Runtime) destroyPlugin(ctx context.Context, inst *instance) {
	err := rt.dispatch(ctx, inst, ports.EntryDestroy, func(context.Context) error {
		inst.module.destroy(inst.plugin)
		return nil
	})
	if err != nil {
		rt.logger.ErrorContext(ctx, "host: destroy failed", "module", inst.module.path, "error", err)
	}
}

// IsAlive reports whether id names a live instance.
func (rt *Runtime) IsAlive(id entities.InstanceID) bool {
	_, err := rt.lookup(id)
	return err == nil
}

// Instances returns the live instance ids in ascending order.
func (rt *Runtime) Instances() []entities.InstanceID {
	return rt.registry.IDs()
}

// Initialize hands the instance its host services. A second call without
// an Uninitialize in between returns AlreadyInitialized.
func (rt *Runtime) Initialize(ctx context.Context, id entities.InstanceID) error {
	inst, err := rt.lookup(id)
	if err != nil {
		return err
	}
	inst.initMu.Lock()
	defer inst.initMu.Unlock()
	if inst.initialized {
		return errors.New(errors.CodeAlreadyInitialized, "initialize "+id.String())
	}

	svc := newHostServices(rt, inst)
	err = rt.dispatch(ctx, inst, "initialize", func(ctx context.Context) error {
		return inst.plugin.Initialize(ctx, svc)
	})
	if err != nil {
		if errors.CodeOf(err) == errors.CodeUnknown {
			err = errors.Wrap(errors.CodeInitializationFailed, "initialize "+id.String(), err)
		}
		return err
	}
	inst.initialized = true
	return nil
}

// Uninitialize reverses Initialize. Without a prior Initialize it returns
// NotInitialized.
func (rt *Runtime) Uninitialize(ctx context.Context, id entities.InstanceID) error {
	inst, err := rt.lookup(id)
	if err != nil {
		return err
	}
	inst.initMu.Lock()
	defer inst.initMu.Unlock()
	if !inst.initialized {
		return errors.New(errors.CodeNotInitialized, "uninitialize "+id.String())
	}
	if err := rt.dispatch(ctx, inst, "uninitialize", inst.plugin.Uninitialize); err != nil {
		return err
	}
	inst.initialized = false
	return nil
}

// IsInitialized reports whether id has been initialized.
func (rt *Runtime) IsInitialized(id entities.InstanceID) (bool, error) {
	inst, err := rt.lookup(id)
	if err != nil {
		return false, err
	}
	return inst.isInitialized(), nil
}

// ReportError logs the localized message of err's code through the plugin
// log sink, attributed to source.
func (rt *Runtime) ReportError(ctx context.Context, lang entities.Language, source string, err error) {
	if err == nil {
		return
	}
	code := errors.CodeOf(err)
	level := entities.LogError
	if !code.IsError() {
		level = entities.LogInfo
	}
	rt.sink.Log(ctx, "host", level, source, code.Message(string(lang.OrDefault())),
		slog.Int("code", int(code)),
		slog.String("error", err.Error()))
}

// Close destroys every instance, newest first, closes every module and
// stops the UI thread and the wasm backend.
func (rt *Runtime) Close(ctx context.Context) error {
	if !rt.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	ids := rt.registry.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		dctx, cancel := context.WithTimeout(ctx, rt.config.destroyTimeout)
		err := rt.DestroyInstance(dctx, ids[i])
		cancel()
		if err != nil && !stdErrors.Is(err, errors.ErrInvalidHandle) {
			errs = append(errs, fmt.Errorf("destroy %s: %w", ids[i], err))
		}
	}

	if err := rt.loader.closeAll(ctx); err != nil {
		errs = append(errs, err)
	}
	rt.metrics.modules.Set(0)
	rt.ui.Close()

	if rt.wasm != nil {
		if err := rt.wasm.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.ownsState {
		if err := rt.state.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stdErrors.Join(errs...)
}
