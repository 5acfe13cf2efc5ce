package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/ports"
)

// KindTaskDescriptor is the schema kind of manager task descriptors.
const KindTaskDescriptor = "task_descriptor"

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates).
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry implements ports.SchemaRegistry.
type Registry struct {
	config  registryConfig
	schemas sync.Map // map[string]string (json schema)
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// NewDefaultRegistry returns a registry holding the schemas the host needs.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(KindTaskDescriptor, entities.TaskDescriptor{}); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a schema generated from a Go struct.
func (r *Registry) Register(kind string, model any) error {
	if r.config.strictMode {
		if _, exists := r.schemas.Load(kind); exists {
			return fmt.Errorf("schema %q already registered", kind)
		}
	}

	data, err := GenerateSchema(model)
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", kind, err)
	}
	r.schemas.Store(kind, string(data))
	return nil
}

// GetSchema retrieves the JSON Schema registered for kind.
func (r *Registry) GetSchema(kind string) (string, bool) {
	v, ok := r.schemas.Load(kind)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// List returns all registered kinds, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.schemas.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

var _ ports.SchemaRegistry = (*Registry)(nil)
