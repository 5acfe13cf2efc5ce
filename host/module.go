package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// LiveCounter reports how many live instances an owner has created.
type LiveCounter interface {
	LiveCount(owner any) int
}

// Module is a loaded library with its queried identity and resolved entry
// points. Its identity is immutable after load.
type Module struct {
	// life is held shared from the IsLoaded check of CreateInstance until
	// the instance is registered, and exclusively by Unload.
	life sync.RWMutex


	lib     ports.Library
	counter LiveCounter

	create       ports.CreateFunc
	getInterface ports.GetInterfaceFunc
	destroy      ports.DestroyFunc
	canUnloadNow ports.CanUnloadNowFunc

	path       string
	uuid       entities.UUID
	version    entities.Version
	sdkVersion entities.Version
	supported  entities.Capability

	unloaded atomic.Bool
}

// Path returns the path the module was loaded from.
func (m *Module) Path() string { return m.path }

// UUID returns the module identity.
func (m *Module) UUID() entities.UUID { return m.uuid }

// Version returns the module version.
func (m *Module) Version() entities.Version { return m.version }

// SDKVersion returns the SDK version the module was built against.
func (m *Module) SDKVersion() entities.Version { return m.sdkVersion }

// SupportedTypes returns the declared capability mask.
func (m *Module) SupportedTypes() entities.Capability { return m.supported }

// IsLoaded reports whether the module has not been unloaded.
func (m *Module) IsLoaded() bool { return !m.unloaded.Load() }

// LiveInstances returns the number of live instances created from m.
func (m *Module) LiveInstances() int {
	if m.counter == nil {
		return 0
	}
	return m.counter.LiveCount(m)
}

// CanUnloadNow reports whether no instance of m is alive and the module's
// own predicate agrees. A panicking predicate counts as false.
func (m *Module) CanUnloadNow() bool {
	if m.unloaded.Load() || m.LiveInstances() > 0 {
		return false
	}
	ok := false
	_ = recoverCall("can_unload_now", func() error {
		ok = m.canUnloadNow()
		return nil
	})
	return ok
}

func (m *Module) String() string {
	return fmt.Sprintf("%s (%s %s)", m.path, m.uuid, m.version)
}

// recoverCall runs fn and turns a panic into a ThreadPanic error.
func recoverCall(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.CodeThreadPanic, "%s: panic: %v", op, r)
		}
	}()
	return fn()
}

// close releases the library once.
func (m *Module) close(ctx context.Context) error {
	if m.unloaded.Swap(true) {
		return nil
	}
	return m.lib.Close(ctx)
}
