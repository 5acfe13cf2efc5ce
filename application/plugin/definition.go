package plugin

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/plughost/application/schema"
	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

var validate = validator.New()

// ModuleDef describes a plugin module: its identity, the capabilities it
// declares and how instances are made.
type ModuleDef struct {
	// UUID identifies the module file. It must never be the nil UUID.
	UUID string `validate:"required,uuid"`

	// Version is "major.minor.patch".
	Version string `validate:"required"`

	// Capabilities are capability names such as "single_task".
	Capabilities []string `validate:"required,min=1,dive,required"`

	// New creates one plugin instance.
	New func() (ports.Plugin, error) `validate:"required"`

	// Config, when set, is a struct whose JSON schema describes the
	// configuration a resident instance accepts.
	Config any

	// CanUnload is consulted after every instance is destroyed.
	CanUnload func() bool
}

// InterfaceProvider is implemented by plugins that serve a capability
// through an object other than themselves.
type InterfaceProvider interface {
	Interface(capability entities.Capability, version uint32) any
}

// Module is a validated module definition. Its methods have the exact
// entry-point signatures, so a Go plugin exports them as variables:
//
//	var mod = plugin.MustDefineModule(plugin.ModuleDef{...})
//
//	var (
//		GetPluginSDKVersion     = mod.SDKVersion
//		GetPluginUUID           = mod.UUID
//		CreatePlugin            = mod.Create
//		...
//	)
type Module struct {
	uuid         entities.UUID
	version      entities.Version
	capabilities entities.Capability
	newPlugin    func() (ports.Plugin, error)
	canUnload    func() bool
	configSchema json.RawMessage
	live         atomic.Int64
}

// DefineModule validates def and builds the module.
func DefineModule(def ModuleDef) (*Module, error) {
	if err := validate.Struct(def); err != nil {
		var field string
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = verrs[0].Namespace()
		}
		return nil, &errors.ConfigError{Field: field, Err: err}
	}

	id, err := entities.ParseUUID(def.UUID)
	if err != nil || id == entities.NilUUID {
		return nil, &errors.ConfigError{Field: "ModuleDef.UUID", Err: fmt.Errorf("invalid module uuid %q", def.UUID)}
	}
	version, err := entities.ParseVersion(def.Version)
	if err != nil {
		return nil, &errors.ConfigError{Field: "ModuleDef.Version", Err: err}
	}

	var caps entities.Capability
	for _, name := range def.Capabilities {
		c, ok := entities.ParseCapability(name)
		if !ok {
			return nil, &errors.ConfigError{Field: "ModuleDef.Capabilities", Err: fmt.Errorf("unknown capability %q", name)}
		}
		caps |= c
	}

	m := &Module{
		uuid:         id,
		version:      version,
		capabilities: caps,
		newPlugin:    def.New,
		canUnload:    def.CanUnload,
	}
	if def.Config != nil {
		raw, err := schema.GenerateSchema(def.Config)
		if err != nil {
			return nil, &errors.ConfigError{Field: "ModuleDef.Config", Err: err}
		}
		m.configSchema = raw
	}
	return m, nil
}

// MustDefineModule is DefineModule that panics on an invalid definition.
// It is meant for package-level variables in plugin main packages.
func MustDefineModule(def ModuleDef) *Module {
	m, err := DefineModule(def)
	if err != nil {
		panic(fmt.Sprintf("plugin: invalid module definition: %v", err))
	}
	return m
}

// SDKVersion reports the ABI version the module was built against.
func (m *Module) SDKVersion() entities.Version { return entities.SDKVersion }

func (m *Module) UUID() entities.UUID { return m.uuid }

func (m *Module) Version() entities.Version { return m.version }

// SupportedTypes returns the declared capability mask.
func (m *Module) SupportedTypes() entities.Capability { return m.capabilities }

// ConfigSchema returns the JSON schema of the configuration struct, or nil.
func (m *Module) ConfigSchema() json.RawMessage { return m.configSchema }

// Live returns the number of instances created and not yet destroyed.
func (m *Module) Live() int64 { return m.live.Load() }

// Create builds a new instance.
func (m *Module) Create() (ports.Plugin, error) {
	p, err := m.newPlugin()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New(errors.CodeNullPointer, "plugin constructor returned nil")
	}
	m.live.Add(1)
	return p, nil
}

// GetInterface resolves capability on p. Undeclared capabilities and
// plugins that do not implement the capability's interface yield nil.
func (m *Module) GetInterface(p ports.Plugin, capability entities.Capability, version uint32) (any, error) {
	if !m.capabilities.Has(capability) {
		return nil, nil
	}
	if ip, ok := p.(InterfaceProvider); ok {
		if obj := ip.Interface(capability, version); obj != nil {
			return obj, nil
		}
	}
	if implements(p, capability) {
		return p, nil
	}
	return nil, nil
}

func implements(p ports.Plugin, capability entities.Capability) bool {
	var ok bool
	switch capability {
	case entities.CapabilitySingleTask:
		_, ok = p.(ports.SingleTask)
	case entities.CapabilityAsyncTask:
		_, ok = p.(ports.AsyncTask)
	case entities.CapabilityResident:
		_, ok = p.(ports.Resident)
	case entities.CapabilityState:
		_, ok = p.(ports.StateStore)
	default:
		// Manager and descriptive capabilities carry no interface of their own.
		ok = true
	}
	return ok
}

// Destroy releases an instance made by Create. Instances implementing
// io.Closer are closed.
func (m *Module) Destroy(p ports.Plugin) {
	if p == nil {
		return
	}
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
	m.live.Add(-1)
}

// CanUnloadNow reports whether no instance is alive and the optional
// predicate agrees.
func (m *Module) CanUnloadNow() bool {
	if m.live.Load() > 0 {
		return false
	}
	return m.canUnload == nil || m.canUnload()
}

// Symbols returns the entry-point table keyed by entry-point name, ready
// for a static opener.
func (m *Module) Symbols() map[string]any {
	return map[string]any{
		ports.EntrySDKVersion:     ports.SDKVersionFunc(m.SDKVersion),
		ports.EntryUUID:           ports.UUIDFunc(m.UUID),
		ports.EntryVersion:        ports.VersionFunc(m.Version),
		ports.EntrySupportedTypes: ports.SupportedTypesFunc(m.SupportedTypes),
		ports.EntryCreate:         ports.CreateFunc(m.Create),
		ports.EntryGetInterface:   ports.GetInterfaceFunc(m.GetInterface),
		ports.EntryDestroy:        ports.DestroyFunc(m.Destroy),
		ports.EntryCanUnloadNow:   ports.CanUnloadNowFunc(m.CanUnloadNow),
	}
}
