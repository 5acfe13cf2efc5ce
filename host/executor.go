package host

import (
	"context"
	"time"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// Execute runs req synchronously on id through its single-task interface
// and blocks until the plugin returns. Owned fields the plugin put into res
// belong to the caller, who releases them.
func (rt *Runtime) Execute(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, res *entities.TaskResult) error {
	table, err := rt.GetInterface(ctx, id, entities.CapabilitySingleTask, InterfaceVersion)
	if err != nil {
		return err
	}
	return table.(*SingleTaskTable).Execute(ctx, id, req, res)
}

func (rt *Runtime) execute(ctx context.Context, inst *instance, task ports.SingleTask, req *entities.TaskRequest, res *entities.TaskResult) error {
	if req == nil || res == nil {
		return errors.New(errors.CodeInvalidParameter, "execute: nil request or result")
	}
	if req.Released() {
		return errors.New(errors.CodeInvalidParameter, "execute: request already released")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	err := rt.dispatch(ctx, inst, "execute", func(ctx context.Context) error {
		return task.Execute(ctx, req, res)
	})
	settle(inst, res, err)
	return err
}

// settle applies the host's stamps to a result the plugin returned.
func settle(inst *instance, res *entities.TaskResult, err error) {
	res.Callee = inst.module.uuid
	if err != nil {
		if res.Code.IsSuccess() {
			res.Code = errors.CodeOf(err)
		}
		if !res.Status.IsTerminal() {
			res.Status = entities.StatusError
		}
	}
	if res.CompletedAt.IsZero() && res.Status.IsTerminal() {
		res.CompletedAt = time.Now()
	}
}
