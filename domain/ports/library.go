package ports

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
)

// Entry-point names every module library must resolve.
const (
	EntrySDKVersion     = "get_plugin_sdk_version"
	EntryUUID           = "get_plugin_uuid"
	EntryVersion        = "get_plugin_version"
	EntrySupportedTypes = "get_plugin_supported_types"
	EntryCreate         = "create_plugin"
	EntryGetInterface   = "get_plugin_interface"
	EntryDestroy        = "destroy_plugin"
	EntryCanUnloadNow   = "can_unload_now"
)

// EntryPoints lists the fixed entry-point set in resolution order.
var EntryPoints = []string{
	EntrySDKVersion,
	EntryUUID,
	EntryVersion,
	EntrySupportedTypes,
	EntryCreate,
	EntryGetInterface,
	EntryDestroy,
	EntryCanUnloadNow,
}

// Entry-point signatures. They are aliases so that a symbol resolved from
// a Go plugin asserts directly to them.
type (
	SDKVersionFunc     = func() entities.Version
	UUIDFunc           = func() entities.UUID
	VersionFunc        = func() entities.Version
	SupportedTypesFunc = func() entities.Capability
	CreateFunc         = func() (Plugin, error)
	GetInterfaceFunc   = func(p Plugin, capability entities.Capability, version uint32) (any, error)
	DestroyFunc        = func(p Plugin)
	CanUnloadNowFunc   = func() bool
)

// Library is an opened module file from which entry points are resolved
// by name.
type Library interface {
	// Path returns the path the library was opened from.
	Path() string

	// Lookup resolves the named entry point. The returned value is one of
	// the entry-point function types above.
	Lookup(name string) (any, error)

	// Close releases the library. Closing twice is a no-op.
	Close(ctx context.Context) error
}

// LibraryOpener opens libraries from paths.
type LibraryOpener interface {
	Open(ctx context.Context, path string) (Library, error)
}
