package host

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/infrastructure/statestore"
)

// runtimeConfig holds configuration for the Runtime.
type runtimeConfig struct {
	logger         *slog.Logger
	opener         ports.LibraryOpener
	static         *StaticOpener
	state          statestore.Backend
	stateConfig    *entities.StateConfig
	tracerProvider trace.TracerProvider
	registerer     *prometheus.Registry
	matcher        ports.Matcher
	validator      ports.DescriptorValidator
	hostFuncs      *hostfuncs.Registry
	language       entities.Language
	pluginsDir     string
	sdkVersion     entities.Version
	maxInstances   int
	wasmPoolSize   int
	destroyTimeout time.Duration // Wait for async work when the runtime closes
	disableWasm    bool
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		logger:         slog.Default(),
		language:       entities.DetectSystemLanguage(),
		sdkVersion:     entities.SDKVersion,
		destroyTimeout: 5 * time.Second,
	}
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

// WithLogger sets the runtime logger. Plugin log messages go to it too.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) {
		c.logger = logger
	}
}

// WithLibraryOpener replaces the default multi-opener.
func WithLibraryOpener(o ports.LibraryOpener) Option {
	return func(c *runtimeConfig) {
		c.opener = o
	}
}

// WithStaticModules uses o for statically registered modules in the
// default multi-opener.
func WithStaticModules(o *StaticOpener) Option {
	return func(c *runtimeConfig) {
		c.static = o
	}
}

// WithStateBackend sets the storage behind the State host interface. The
// runtime does not close a backend it did not create.
func WithStateBackend(b statestore.Backend) Option {
	return func(c *runtimeConfig) {
		c.state = b
	}
}

// WithLanguage sets the system language reported to plugins. The default
// comes from the process locale.
func WithLanguage(lang entities.Language) Option {
	return func(c *runtimeConfig) {
		c.language = lang.OrDefault()
	}
}

// WithMaxInstances caps live instances. Zero means no limit.
func WithMaxInstances(n int) Option {
	return func(c *runtimeConfig) {
		c.maxInstances = n
	}
}

// WithTracerProvider sets the provider plugin call spans are created from.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *runtimeConfig) {
		c.tracerProvider = tp
	}
}

// WithMetricsRegistry registers runtime metrics on reg instead of a
// private registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(c *runtimeConfig) {
		c.registerer = reg
	}
}

// WithSDKVersion overrides the SDK version modules are checked against.
func WithSDKVersion(v entities.Version) Option {
	return func(c *runtimeConfig) {
		c.sdkVersion = v
	}
}

// WithMatcher sets the matching policy of the root manager node.
func WithMatcher(m ports.Matcher) Option {
	return func(c *runtimeConfig) {
		c.matcher = m
	}
}

// WithDescriptorValidator replaces the task descriptor validator.
func WithDescriptorValidator(v ports.DescriptorValidator) Option {
	return func(c *runtimeConfig) {
		c.validator = v
	}
}

// WithHostFunctions sets the host function registry exposed to wasm
// guests. The default carries the log and language services.
func WithHostFunctions(registry *hostfuncs.Registry) Option {
	return func(c *runtimeConfig) {
		c.hostFuncs = registry
	}
}

// WithWasmPoolSize sizes the goroutine pool behind wasm async tasks.
func WithWasmPoolSize(n int) Option {
	return func(c *runtimeConfig) {
		c.wasmPoolSize = n
	}
}

// WithoutWasm disables the wazero backend of the default multi-opener.
func WithoutWasm() Option {
	return func(c *runtimeConfig) {
		c.disableWasm = true
	}
}

// WithDestroyTimeout bounds how long Close waits for each instance's
// outstanding async work.
func WithDestroyTimeout(d time.Duration) Option {
	return func(c *runtimeConfig) {
		c.destroyTimeout = d
	}
}

// WithHostConfig applies the settings of a host configuration file.
func WithHostConfig(cfg *entities.HostConfig) Option {
	return func(c *runtimeConfig) {
		if cfg == nil {
			return
		}
		c.language = cfg.ResolveLanguage()
		c.maxInstances = cfg.Settings.MaxInstances
		c.pluginsDir = cfg.Settings.PluginsDirectory
		state := cfg.State
		c.stateConfig = &state
	}
}

// InstanceOption configures CreateInstance.
type InstanceOption func(*instanceConfig)

type instanceConfig struct {
	parent entities.InstanceID
}

// WithParent creates the instance under the node of a live manager
// instance instead of the root.
func WithParent(id entities.InstanceID) InstanceOption {
	return func(c *instanceConfig) {
		c.parent = id
	}
}
