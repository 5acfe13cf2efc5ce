package host

import (
	"context"
	"sync"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/lifecycle"
	"github.com/reglet-dev/plughost/domain/ports"
)

// residentController pairs a resident plugin with the host-held state
// machine. Transitions are serialized; faults are not, so a plugin may
// report one from inside a hook. A fault the machine cannot take yet
// because a hook is still running is held and applied once the
// transition settles.
type residentController struct {
	rt       *Runtime
	inst     *instance
	resident ports.Resident
	machine  *lifecycle.Machine
	opMu     sync.Mutex

	faultMu  sync.Mutex
	inHook   bool
	deferred error
}

func (rt *Runtime) residentFor(inst *instance, r ports.Resident) *residentController {
	inst.residentOnce.Do(func() {
		inst.resident = &residentController{
			rt:       rt,
			inst:     inst,
			resident: r,
			machine:  lifecycle.New(),
		}
	})
	return inst.resident
}

func (c *residentController) fire(ctx context.Context, e lifecycle.Event, hook func(ctx context.Context) error) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.faultMu.Lock()
	c.inHook = true
	c.faultMu.Unlock()

	to, err := c.machine.Fire(ctx, e, func(ctx context.Context) error {
		return c.rt.dispatch(ctx, c.inst, "resident_"+e.String(), hook)
	})

	c.faultMu.Lock()
	c.inHook = false
	held := c.deferred
	c.deferred = nil
	c.faultMu.Unlock()
	if held != nil {
		c.fault(held)
	}

	if err != nil {
		return err
	}
	c.rt.logger.DebugContext(ctx, "host: resident transition",
		"instance", c.inst.id.String(), "event", e.String(), "status", to.String())
	return nil
}

func (c *residentController) fault(err error) {
	ctx := context.Background()
	c.faultMu.Lock()
	defer c.faultMu.Unlock()
	to, ferr := c.machine.Fire(ctx, lifecycle.EventFault, nil)
	if ferr != nil {
		if c.inHook {
			if c.deferred == nil {
				c.deferred = err
			}
			return
		}
		c.rt.logger.WarnContext(ctx, "host: resident fault ignored",
			"instance", c.inst.id.String(), "status", to.String(), "error", err)
		return
	}
	c.rt.logger.ErrorContext(ctx, "host: resident fault",
		"instance", c.inst.id.String(), "error", err)
}

func (c *residentController) configuration(ctx context.Context) (string, error) {
	var out string
	err := c.rt.dispatch(ctx, c.inst, "resident_configuration", func(context.Context) error {
		out = c.resident.Configuration()
		return nil
	})
	return out, err
}

func (c *residentController) updateConfiguration(ctx context.Context, config string) error {
	return c.rt.dispatch(ctx, c.inst, "resident_update_configuration", func(ctx context.Context) error {
		return c.resident.UpdateConfiguration(ctx, config)
	})
}

func (c *residentController) start(ctx context.Context) error {
	return c.fire(ctx, lifecycle.EventStart, func(ctx context.Context) error {
		return c.resident.Start(ctx, c.fault)
	})
}

func (c *residentController) suspend(ctx context.Context) error {
	return c.fire(ctx, lifecycle.EventSuspend, c.resident.Suspend)
}

func (c *residentController) resume(ctx context.Context) error {
	return c.fire(ctx, lifecycle.EventResume, c.resident.Resume)
}

func (c *residentController) stop(ctx context.Context) error {
	return c.fire(ctx, lifecycle.EventStop, c.resident.Stop)
}

func (c *residentController) reset(ctx context.Context) error {
	return c.fire(ctx, lifecycle.EventReset, c.resident.Reset)
}

func (c *residentController) cancel(ctx context.Context) error {
	return c.fire(ctx, lifecycle.EventCancel, c.resident.Cancel)
}

// CancelResident cancels a running or suspended resident instance. The
// cancel transition is reserved to the host and is not part of
// ResidentTable.
func (rt *Runtime) CancelResident(ctx context.Context, id entities.InstanceID) error {
	table, err := rt.GetInterface(ctx, id, entities.CapabilityResident, InterfaceVersion)
	if err != nil {
		return err
	}
	return table.(*ResidentTable).ctl.cancel(ctx)
}

// ResidentStatus returns the host-held status of a resident instance.
func (rt *Runtime) ResidentStatus(ctx context.Context, id entities.InstanceID) (entities.ExecutionStatus, error) {
	table, err := rt.GetInterface(ctx, id, entities.CapabilityResident, InterfaceVersion)
	if err != nil {
		return entities.StatusIdle, err
	}
	return table.(*ResidentTable).Status(id)
}
