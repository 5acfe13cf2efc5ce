package host

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// Module file extensions the multi-opener dispatches on.
const (
	ExtWasm     = ".wasm"
	ExtGoPlugin = ".so"
)

// MultiOpener picks a backend per path: a registered static module first,
// then by file extension.
type MultiOpener struct {
	Static   *StaticOpener
	Wasm     ports.LibraryOpener
	GoPlugin ports.LibraryOpener
}

// Open implements ports.LibraryOpener.
func (o *MultiOpener) Open(ctx context.Context, path string) (ports.Library, error) {
	if o.Static != nil && o.Static.Has(path) {
		return o.Static.Open(ctx, path)
	}

	var backend ports.LibraryOpener
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtWasm:
		backend = o.Wasm
	case ExtGoPlugin:
		backend = o.GoPlugin
	}
	if backend == nil {
		return nil, errors.Newf(errors.CodeNotSupported, "no module backend for %s", path)
	}
	return backend.Open(ctx, path)
}

// IsModuleFile reports whether name has an extension the multi-opener
// serves from disk.
func IsModuleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtWasm, ExtGoPlugin:
		return true
	}
	return false
}

var _ ports.LibraryOpener = (*MultiOpener)(nil)
