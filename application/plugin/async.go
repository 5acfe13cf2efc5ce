package plugin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// DefaultAsyncWorkers bounds an AsyncRunner created with size <= 0.
const DefaultAsyncWorkers = 8

type job struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// AsyncRunner serves the async capability by running a synchronous task
// on a bounded goroutine pool. Return it from InterfaceProvider.Interface
// for entities.CapabilityAsyncTask.
type AsyncRunner struct {
	task ports.SingleTask
	pool *ants.Pool
	jobs cmap.ConcurrentMap[string, *job]
}

// NewAsyncRunner starts a pool of size workers. Submissions beyond the
// pool's capacity are rejected rather than queued.
func NewAsyncRunner(task ports.SingleTask, size int) (*AsyncRunner, error) {
	if task == nil {
		return nil, errors.New(errors.CodeNullPointer, "nil task")
	}
	if size <= 0 {
		size = DefaultAsyncWorkers
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("plugin: create async pool: %w", err)
	}
	return &AsyncRunner{
		task: task,
		pool: pool,
		jobs: cmap.New[*job](),
	}, nil
}

// ExecuteAsync queues req. done runs exactly once on a pool goroutine.
func (r *AsyncRunner) ExecuteAsync(ctx context.Context, req *entities.TaskRequest, done ports.CompletionFunc) error {
	if req == nil || done == nil {
		return errors.New(errors.CodeInvalidParameter, "nil request or completion")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	jctx, cancel := context.WithCancel(ctx)
	j := &job{ctx: jctx, cancel: cancel}
	if !r.jobs.SetIfAbsent(req.ID, j) {
		cancel()
		return errors.Newf(errors.CodeResourceBusy, "request %s already pending", req.ID)
	}

	err := r.pool.Submit(func() { r.run(j, req, done) })
	if err != nil {
		r.jobs.Remove(req.ID)
		cancel()
		return errors.Wrap(errors.CodeResourceExhausted, "async submit", err)
	}
	return nil
}

func (r *AsyncRunner) run(j *job, req *entities.TaskRequest, done ports.CompletionFunc) {
	res := entities.NewTaskResult()
	defer res.Release()
	defer j.cancel()

	if j.ctx.Err() != nil {
		cancelled(res)
	} else {
		res.Status = entities.StatusRunning
		if err := r.execute(j.ctx, req, res); err != nil {
			if res.Code.IsSuccess() {
				res.Fail(errors.CodeOf(err))
			}
		}
		if j.ctx.Err() != nil && !res.Status.IsTerminal() {
			cancelled(res)
		}
	}
	r.jobs.RemoveCb(req.ID, func(_ string, v *job, exists bool) bool { return exists && v == j })
	done(res)
}

func (r *AsyncRunner) execute(ctx context.Context, req *entities.TaskRequest, res *entities.TaskResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.CodeThreadPanic, "task panicked: %v", p)
		}
	}()
	return r.task.Execute(ctx, req, res)
}

func cancelled(res *entities.TaskResult) {
	res.Status = entities.StatusCancelled
	res.Code = errors.CodeCancelled
}

// CancelAsync cancels the context of a pending request. Requests that
// already finished are ignored.
func (r *AsyncRunner) CancelAsync(_ context.Context, req *entities.TaskRequest) error {
	if req == nil {
		return nil
	}
	if j, ok := r.jobs.Get(req.ID); ok {
		j.cancel()
	}
	return nil
}

// Pending returns the number of requests queued or running.
func (r *AsyncRunner) Pending() int { return r.jobs.Count() }

// Close cancels every pending request and releases the pool. Running
// workers still deliver their completions.
func (r *AsyncRunner) Close() {
	for _, j := range r.jobs.Items() {
		j.cancel()
	}
	r.pool.Release()
}

var _ ports.AsyncTask = (*AsyncRunner)(nil)
