package host

import (
	"context"
	"fmt"
	"os"
	"plugin"

	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// GoPluginSymbols maps entry-point names to the exported identifiers of a
// Go plugin built with -buildmode=plugin.
var GoPluginSymbols = map[string]string{
	ports.EntrySDKVersion:     "GetPluginSDKVersion",
	ports.EntryUUID:           "GetPluginUUID",
	ports.EntryVersion:        "GetPluginVersion",
	ports.EntrySupportedTypes: "GetPluginSupportedTypes",
	ports.EntryCreate:         "CreatePlugin",
	ports.EntryGetInterface:   "GetPluginInterface",
	ports.EntryDestroy:        "DestroyPlugin",
	ports.EntryCanUnloadNow:   "CanUnloadNow",
}

// GoPluginOpener opens shared objects through the standard plugin package.
// Go never unloads a plugin, so Close only invalidates the handle.
type GoPluginOpener struct{}

// Open loads the shared object at path.
func (GoPluginOpener) Open(_ context.Context, path string) (ports.Library, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.Wrap(errors.CodeIO, path, err)
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, path, err)
	}
	return &goPluginLibrary{path: path, plugin: p}, nil
}

var _ ports.LibraryOpener = GoPluginOpener{}

type goPluginLibrary struct {
	plugin *plugin.Plugin
	path   string
	closed bool
}

func (l *goPluginLibrary) Path() string { return l.path }

// Lookup resolves name. Exported functions are returned as is; exported
// variables holding a function are dereferenced.
func (l *goPluginLibrary) Lookup(name string) (any, error) {
	if l.closed {
		return nil, errors.ErrClosed
	}
	export, ok := GoPluginSymbols[name]
	if !ok {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, name, errors.ErrMissingEntryPoint)
	}
	sym, err := l.plugin.Lookup(export)
	if err != nil {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, fmt.Sprintf("%s: %s", l.path, export), errors.ErrMissingEntryPoint)
	}
	return derefSymbol(sym), nil
}

func derefSymbol(sym any) any {
	switch p := sym.(type) {
	case *ports.SDKVersionFunc:
		return *p
	case *ports.UUIDFunc:
		return *p
	case *ports.SupportedTypesFunc:
		return *p
	case *ports.CreateFunc:
		return *p
	case *ports.GetInterfaceFunc:
		return *p
	case *ports.DestroyFunc:
		return *p
	case *ports.CanUnloadNowFunc:
		return *p
	default:
		return sym
	}
}

func (l *goPluginLibrary) Close(context.Context) error {
	l.closed = true
	return nil
}
