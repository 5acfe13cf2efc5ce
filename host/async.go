package host

import (
	"context"

	"github.com/google/uuid"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// pendingTask is the host-side future of one async submission. It is
// resolved exactly once, by whoever pops it from the instance's pending
// map first.
type pendingTask struct {
	req    *entities.TaskRequest
	cb     ports.TaskCallback
	task   ports.AsyncTask
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the task has been resolved.
func (p *pendingTask) Done() <-chan struct{} { return p.done }

// ExecuteAsync submits req to id through its async-task interface and
// returns the submission result only. When the plugin completes, cb runs
// with the request and result, then the host releases req. With a nil cb
// nothing fires and the caller keeps req. A plugin that completes and then
// reports a submission error has still delivered its result: the call
// returns nil. A nil error therefore always means cb fires exactly once.
func (rt *Runtime) ExecuteAsync(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, cb ports.TaskCallback) error {
	table, err := rt.GetInterface(ctx, id, entities.CapabilityAsyncTask, InterfaceVersion)
	if err != nil {
		return err
	}
	return table.(*AsyncTaskTable).Execute(ctx, id, req, cb)
}

// Cancel asks id to stop a pending submission. It is a no-op when req is
// nil, released or no longer pending. It does not wait for the plugin to
// stop.
func (rt *Runtime) Cancel(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest) error {
	if req == nil || req.Released() {
		return nil
	}
	table, err := rt.GetInterface(ctx, id, entities.CapabilityAsyncTask, InterfaceVersion)
	if err != nil {
		return err
	}
	return table.(*AsyncTaskTable).Cancel(ctx, id, req)
}

func (rt *Runtime) executeAsync(ctx context.Context, inst *instance, task ports.AsyncTask, req *entities.TaskRequest, cb ports.TaskCallback) error {
	if req == nil {
		return errors.New(errors.CodeInvalidParameter, "execute_async: nil request")
	}
	if req.Released() {
		return errors.New(errors.CodeInvalidParameter, "execute_async: request already released")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	// The submission outlives the caller's context; only Cancel, the
	// request timeout or instance destruction stop it.
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if req.Timeout > 0 {
		tctx, tcancel := context.WithTimeout(pctx, req.Timeout)
		pctx, cancel = tctx, func() { tcancel(); cancel() }
	}

	p := &pendingTask{
		req:    req,
		cb:     cb,
		task:   task,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if !inst.pending.SetIfAbsent(req.ID, p) {
		cancel()
		return errors.Newf(errors.CodeResourceBusy, "execute_async: request %s is already pending", req.ID)
	}
	if inst.destroying.Load() {
		rt.discard(inst, p)
		return errors.ErrInvalidHandle
	}
	rt.metrics.pending.Inc()

	err := rt.dispatch(pctx, inst, "execute_async", func(ctx context.Context) error {
		return task.ExecuteAsync(ctx, req, func(res *entities.TaskResult) {
			rt.complete(inst, p, res)
		})
	})
	if err != nil {
		if !rt.discard(inst, p) {
			// The plugin completed before failing, so the callback has
			// fired and req is gone; the submission counts as accepted.
			rt.logger.DebugContext(ctx, "host: execute_async failed after completion",
				"instance", inst.id.String(), "request", req.ID, "error", err)
			return nil
		}
		rt.metrics.pending.Dec()
		return err
	}
	return nil
}

// pop removes p from the pending map if it is still there. Only the caller
// that gets true may resolve p.
func (inst *instance) pop(p *pendingTask) bool {
	return inst.pending.RemoveCb(p.req.ID, func(_ string, v *pendingTask, exists bool) bool {
		return exists && v == p
	})
}

// discard drops a submission that never started. No callback fires.
func (rt *Runtime) discard(inst *instance, p *pendingTask) bool {
	if !inst.pop(p) {
		return false
	}
	p.cancel()
	close(p.done)
	return true
}

// complete resolves p with res. Later completions of the same submission
// are ignored.
func (rt *Runtime) complete(inst *instance, p *pendingTask, res *entities.TaskResult) {
	if !inst.pop(p) {
		return
	}
	defer func() {
		p.cancel()
		close(p.done)
		rt.metrics.pending.Dec()
	}()

	if res == nil {
		res = entities.NewTaskResult()
		res.Fail(errors.CodeUnknown)
	}
	settle(inst, res, nil)

	if p.cb == nil {
		return
	}
	if err := recoverCall("async_callback", func() error {
		p.cb(p.req, res)
		return nil
	}); err != nil {
		rt.logger.Error("host: async callback panicked",
			"instance", inst.id.String(), "request", p.req.ID, "error", err)
	}
	p.req.Release()
}

func (rt *Runtime) cancel(ctx context.Context, inst *instance, task ports.AsyncTask, req *entities.TaskRequest) error {
	if req == nil || req.Released() {
		return nil
	}
	p, ok := inst.pending.Get(req.ID)
	if !ok || p.req != req {
		return nil
	}
	p.cancel()
	err := rt.dispatch(ctx, inst, "cancel_async", func(ctx context.Context) error {
		return task.CancelAsync(ctx, req)
	})
	if err != nil {
		// Completion won the race; cancelling a finished request is a no-op.
		if cur, ok := inst.pending.Get(req.ID); !ok || cur != p {
			return nil
		}
	}
	return err
}

// drainAsync cancels every pending submission of inst and waits for the
// plugin to complete them. Whatever is still pending when ctx ends is
// resolved by the host with a cancelled result, so each callback still
// fires once.
func (rt *Runtime) drainAsync(ctx context.Context, inst *instance) {
	pending := inst.pending.Items()
	if len(pending) == 0 {
		return
	}
	for _, p := range pending {
		p.cancel()
		if err := rt.dispatch(ctx, inst, "cancel_async", func(ctx context.Context) error {
			return p.task.CancelAsync(ctx, p.req)
		}); err != nil {
			rt.logger.DebugContext(ctx, "host: cancel during destroy failed",
				"instance", inst.id.String(), "request", p.req.ID, "error", err)
		}
	}

	for _, p := range pending {
		select {
		case <-p.done:
		case <-ctx.Done():
			rt.abandon(ctx, inst, p)
		}
	}
}

func (rt *Runtime) abandon(ctx context.Context, inst *instance, p *pendingTask) {
	res := entities.NewTaskResult()
	res.Status = entities.StatusCancelled
	res.Code = errors.CodeCancelled
	rt.complete(inst, p, res)
	rt.logger.WarnContext(ctx, "host: abandoned async request",
		"instance", inst.id.String(), "request", p.req.ID)
}
