package host

import (
	"context"
	"fmt"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// InterfaceVersion is the only capability interface version this host
// speaks.
const InterfaceVersion uint32 = 1

// GetInterface binds the capability interface of one instance. Checks run
// in order: the handle must be live, capability must be a single valid
// bit the module declared, version must be InterfaceVersion and the
// module's get-interface entry must return an object implementing the
// matching Go interface.
func (rt *Runtime) GetInterface(ctx context.Context, id entities.InstanceID, capability entities.Capability, version uint32) (Table, error) {
	inst, err := rt.lookup(id)
	if err != nil {
		return nil, err
	}
	if !capability.IsSingle() || !capability.IsValid() {
		return nil, errors.Newf(errors.CodeInvalidParameter, "capability %#x is not a single valid bit", uint64(capability))
	}
	if !inst.module.supported.Has(capability) {
		return nil, &errors.CapabilityError{Capability: capability.String(), Version: version}
	}
	if version != InterfaceVersion {
		return nil, errors.Newf(errors.CodeVersionMismatch, "%s interface version %d, host speaks %d",
			capability, version, InterfaceVersion)
	}

	var obj any
	err = rt.dispatch(ctx, inst, ports.EntryGetInterface, func(context.Context) error {
		var gerr error
		obj, gerr = inst.module.getInterface(inst.plugin, capability, version)
		return gerr
	})
	if err != nil {
		if errors.CodeOf(err) == errors.CodeThreadPanic {
			return nil, err
		}
		return nil, &errors.CapabilityError{Err: err, Capability: capability.String(), Version: version}
	}
	if obj == nil {
		return nil, &errors.CapabilityError{Capability: capability.String(), Version: version}
	}

	base := tableBase{rt: rt, token: id, capability: capability, version: version}
	switch capability {
	case entities.CapabilitySingleTask:
		if t, ok := obj.(ports.SingleTask); ok {
			return &SingleTaskTable{task: t, tableBase: base}, nil
		}
	case entities.CapabilityAsyncTask:
		if t, ok := obj.(ports.AsyncTask); ok {
			return &AsyncTaskTable{task: t, tableBase: base}, nil
		}
	case entities.CapabilityResident:
		if r, ok := obj.(ports.Resident); ok {
			return &ResidentTable{ctl: rt.residentFor(inst, r), tableBase: base}, nil
		}
	case entities.CapabilityState:
		if s, ok := obj.(ports.StateStore); ok {
			return &StateTable{store: s, tableBase: base}, nil
		}
	case entities.CapabilityManager:
		if inst.node == nil {
			break
		}
		if m, ok := obj.(ports.Matcher); ok {
			inst.node.SetMatcher(m)
		}
		return &ManagerTable{node: inst.node, tableBase: base}, nil
	}
	return nil, &errors.CapabilityError{
		Err:        fmt.Errorf("%T does not implement the %s interface", obj, capability),
		Capability: capability.String(),
		Version:    version,
	}
}
