package host

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// Symbols maps entry-point names to their implementations.
type Symbols map[string]any

// StaticOpener serves modules compiled into the host binary. Register a
// table of entry points under a path, then load that path as usual.
type StaticOpener struct {
	mu   sync.RWMutex
	libs map[string]Symbols
}

// NewStaticOpener returns an opener with no modules.
func NewStaticOpener() *StaticOpener {
	return &StaticOpener{libs: make(map[string]Symbols)}
}

// Register makes syms loadable under path, replacing any earlier table.
func (o *StaticOpener) Register(path string, syms Symbols) {
	o.mu.Lock()
	o.libs[path] = syms
	o.mu.Unlock()
}

// Has reports whether path is registered.
func (o *StaticOpener) Has(path string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.libs[path]
	return ok
}

// Paths returns the registered paths, sorted.
func (o *StaticOpener) Paths() []string {
	o.mu.RLock()
	paths := make([]string, 0, len(o.libs))
	for p := range o.libs {
		paths = append(paths, p)
	}
	o.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Open returns the table registered under path.
func (o *StaticOpener) Open(_ context.Context, path string) (ports.Library, error) {
	o.mu.RLock()
	syms, ok := o.libs[path]
	o.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.CodeFileNotFound, "no static module registered at %s", path)
	}
	return &staticLibrary{path: path, syms: syms}, nil
}

var _ ports.LibraryOpener = (*StaticOpener)(nil)

type staticLibrary struct {
	syms   Symbols
	path   string
	closed atomic.Bool
}

func (l *staticLibrary) Path() string { return l.path }

func (l *staticLibrary) Lookup(name string) (any, error) {
	if l.closed.Load() {
		return nil, errors.ErrClosed
	}
	sym, ok := l.syms[name]
	if !ok || sym == nil {
		return nil, errors.Wrap(errors.CodePluginLoadFailed, fmt.Sprintf("%s: %s", l.path, name), errors.ErrMissingEntryPoint)
	}
	return sym, nil
}

func (l *staticLibrary) Close(context.Context) error {
	l.closed.Store(true)
	return nil
}
