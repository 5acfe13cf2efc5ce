package host

import (
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/manager"
)

// instance is the registry payload for one plugin object.
type instance struct {
	module *Module
	plugin ports.Plugin

	// parent is the router node the instance is a member of; node is the
	// node it owns when it is a manager.
	parent *manager.Router
	node   *manager.Router

	pending cmap.ConcurrentMap[string, *pendingTask]

	// callMu serializes calls into a non-thread-safe instance.
	callMu sync.Mutex

	initMu      sync.Mutex
	initialized bool

	destroying atomic.Bool

	residentOnce sync.Once
	resident     *residentController

	id           entities.InstanceID
	requirements entities.ThreadRequirements
	threadSafe   bool
}

func newInstance(m *Module, p ports.Plugin) *instance {
	return &instance{
		module:  m,
		plugin:  p,
		pending: cmap.New[*pendingTask](),
	}
}

func (inst *instance) isInitialized() bool {
	inst.initMu.Lock()
	defer inst.initMu.Unlock()
	return inst.initialized
}
