package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	opener        ports.LibraryOpener
	counter       LiveCounter
	logger        *slog.Logger
	sdkVersion    entities.Version
	pollInterval  time.Duration // First wait of UnloadWhenIdle
	maxPollPeriod time.Duration // Cap on the UnloadWhenIdle backoff
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		opener:        NewStaticOpener(),
		logger:        slog.Default(),
		sdkVersion:    entities.SDKVersion,
		pollInterval:  10 * time.Millisecond,
		maxPollPeriod: time.Second,
	}
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithOpener sets the library opener.
func WithOpener(o ports.LibraryOpener) LoaderOption {
	return func(c *loaderConfig) {
		c.opener = o
	}
}

// WithLiveCounter sets what the unload predicate consults for live
// instances. The runtime passes its registry.
func WithLiveCounter(counter LiveCounter) LoaderOption {
	return func(c *loaderConfig) {
		c.counter = counter
	}
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(c *loaderConfig) {
		c.logger = logger
	}
}

// WithHostSDKVersion overrides the SDK version modules are checked against.
func WithHostSDKVersion(v entities.Version) LoaderOption {
	return func(c *loaderConfig) {
		c.sdkVersion = v
	}
}

// WithUnloadPolling sets the first and the longest wait between unload
// predicate checks.
func WithUnloadPolling(initial, max time.Duration) LoaderOption {
	return func(c *loaderConfig) {
		c.pollInterval = initial
		c.maxPollPeriod = max
	}
}

// Loader resolves modules from libraries and caches them by path.
type Loader struct {
	modules cmap.ConcurrentMap[string, *Module]
	config  loaderConfig
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{
		modules: cmap.New[*Module](),
		config:  cfg,
	}
}

// Load opens path and resolves its module. Loading a path twice returns
// the same Module. Nothing is cached unless every entry point resolves and
// every identity call succeeds; the library is closed on each failure path.
func (l *Loader) Load(ctx context.Context, path string) (*Module, error) {
	key := filepath.Clean(path)
	if m, ok := l.modules.Get(key); ok {
		return m, nil
	}

	lib, err := l.config.opener.Open(ctx, key)
	if err != nil {
		return nil, err
	}

	m, err := l.resolve(lib, key)
	if err != nil {
		if cerr := lib.Close(ctx); cerr != nil {
			l.config.logger.WarnContext(ctx, "loader: failed to close rejected library", "path", key, "error", cerr)
		}
		return nil, err
	}

	if !l.modules.SetIfAbsent(key, m) {
		// Another goroutine loaded the same path first.
		_ = lib.Close(ctx)
		existing, _ := l.modules.Get(key)
		return existing, nil
	}

	l.config.logger.InfoContext(ctx, "loader: module loaded",
		"path", key,
		"uuid", m.uuid.String(),
		"version", m.version.String(),
		"sdk_version", m.sdkVersion.String(),
		"capabilities", m.supported.String())
	return m, nil
}

func lookupAs[T any](lib ports.Library, name string) (T, error) {
	var zero T
	sym, err := lib.Lookup(name)
	if err != nil {
		if stdErrors.Is(err, errors.ErrMissingEntryPoint) {
			return zero, err
		}
		return zero, errors.Wrap(errors.CodePluginLoadFailed, name, fmt.Errorf("%w: %v", errors.ErrMissingEntryPoint, err))
	}
	fn, ok := sym.(T)
	if !ok {
		return zero, errors.Wrap(errors.CodePluginLoadFailed,
			fmt.Sprintf("%s has type %T", name, sym), errors.ErrMissingEntryPoint)
	}
	return fn, nil
}

// resolve looks up every entry point, then calls the identity functions.
func (l *Loader) resolve(lib ports.Library, path string) (*Module, error) {
	m := &Module{lib: lib, path: path, counter: l.config.counter}

	sdkFn, err := lookupAs[ports.SDKVersionFunc](lib, ports.EntrySDKVersion)
	if err != nil {
		return nil, err
	}
	uuidFn, err := lookupAs[ports.UUIDFunc](lib, ports.EntryUUID)
	if err != nil {
		return nil, err
	}
	versionFn, err := lookupAs[ports.VersionFunc](lib, ports.EntryVersion)
	if err != nil {
		return nil, err
	}
	typesFn, err := lookupAs[ports.SupportedTypesFunc](lib, ports.EntrySupportedTypes)
	if err != nil {
		return nil, err
	}
	if m.create, err = lookupAs[ports.CreateFunc](lib, ports.EntryCreate); err != nil {
		return nil, err
	}
	if m.getInterface, err = lookupAs[ports.GetInterfaceFunc](lib, ports.EntryGetInterface); err != nil {
		return nil, err
	}
	if m.destroy, err = lookupAs[ports.DestroyFunc](lib, ports.EntryDestroy); err != nil {
		return nil, err
	}
	if m.canUnloadNow, err = lookupAs[ports.CanUnloadNowFunc](lib, ports.EntryCanUnloadNow); err != nil {
		return nil, err
	}

	err = recoverCall("identity", func() error {
		m.sdkVersion = sdkFn()
		m.uuid = uuidFn()
		m.version = versionFn()
		m.supported = typesFn()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, path, err)
	}

	switch {
	case m.uuid == entities.NilUUID:
		return nil, errors.Newf(errors.CodePluginLoadFailed, "%s: module reports a nil uuid", path)
	case !m.supported.IsValid():
		return nil, errors.Newf(errors.CodePluginLoadFailed, "%s: capability mask sets the reserved bit", path)
	case !m.sdkVersion.IsCompatibleWith(l.config.sdkVersion):
		return nil, errors.Newf(errors.CodeVersionMismatch, "%s: built for sdk %s, host is %s",
			path, m.sdkVersion, l.config.sdkVersion)
	}
	return m, nil
}

// Get returns the module loaded from path.
func (l *Loader) Get(path string) (*Module, bool) {
	return l.modules.Get(filepath.Clean(path))
}

// Modules returns every loaded module ordered by path.
func (l *Loader) Modules() []*Module {
	mods := make([]*Module, 0, l.modules.Count())
	for _, m := range l.modules.Items() {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].path < mods[j].path })
	return mods
}

// Unload closes m if CanUnloadNow holds and ResourceBusy otherwise. The
// loader never forces an unload.
func (l *Loader) Unload(ctx context.Context, m *Module) error {
	m.life.Lock()
	defer m.life.Unlock()
	if !m.CanUnloadNow() {
		return errors.Newf(errors.CodeResourceBusy, "%s: module is in use", m.path)
	}
	return l.evict(ctx, m)
}

func (l *Loader) evict(ctx context.Context, m *Module) error {
	l.modules.RemoveCb(m.path, func(_ string, v *Module, exists bool) bool {
		return exists && v == m
	})
	if err := m.close(ctx); err != nil {
		return errors.Wrap(errors.CodeIO, "failed to close "+m.path, err)
	}
	l.config.logger.InfoContext(ctx, "loader: module unloaded", "path", m.path)
	return nil
}

// UnloadWhenIdle waits, with exponential backoff, until m can be unloaded
// and then unloads it. It returns the context error if ctx ends first.
func (l *Loader) UnloadWhenIdle(ctx context.Context, m *Module) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.config.pollInterval
	b.MaxInterval = l.config.maxPollPeriod
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		if !m.IsLoaded() {
			return backoff.Permanent(errors.Newf(errors.CodeInvalidState, "%s: already unloaded", m.path))
		}
		if !m.CanUnloadNow() {
			return errors.New(errors.CodeResourceBusy, m.path)
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(errors.CodeOf(ctxErr), "unload "+m.path, ctxErr)
		}
		return err
	}
	return l.Unload(ctx, m)
}

// Discover loads every module file in dir in name order. It returns the
// modules that loaded and one error per file that did not.
func (l *Loader) Discover(ctx context.Context, dir string) ([]*Module, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, []error{errors.Wrap(errors.CodeFileNotFound, dir, err)}
		}
		return nil, []error{errors.Wrap(errors.CodeIO, dir, err)}
	}

	var mods []*Module
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !IsModuleFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		m, err := l.Load(ctx, path)
		if err != nil {
			l.config.logger.WarnContext(ctx, "loader: skipping module", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		mods = append(mods, m)
	}
	return mods, errs
}

// closeAll closes every module regardless of live instances. Only the
// runtime calls it, after destroying all instances.
func (l *Loader) closeAll(ctx context.Context) error {
	var errs []error
	for _, m := range l.Modules() {
		m.life.Lock()
		if err := l.evict(ctx, m); err != nil {
			errs = append(errs, err)
		}
		m.life.Unlock()
	}
	return stdErrors.Join(errs...)
}
