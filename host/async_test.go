package host

import (
	"context"
	stdErrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/value"
)

func (s *RuntimeSuite) TestAsyncCompletesOnce() {
	_, id := s.create(asyncPath)

	var freed atomic.Int32
	req := entities.NewTaskRequest(entities.TaskGeneric, value.String("in").WithFree(func(*value.Value) { freed.Add(1) }))
	got := make(chan *entities.TaskResult, 2)
	var calls atomic.Int32

	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(r *entities.TaskRequest, res *entities.TaskResult) {
		s.Same(req, r)
		calls.Add(1)
		got <- res
	}))
	s.NotEmpty(req.ID, "the host assigns a request id")

	select {
	case res := <-got:
		n, _ := res.Output.AsInt()
		s.Equal(int64(42), n)
		s.Equal(s.asyncMod.uuid, res.Callee)
		s.True(res.IsCompleted())
	case <-time.After(2 * time.Second):
		s.FailNow("no completion")
	}
	s.Eventually(req.Released, time.Second, time.Millisecond)
	s.Equal(int32(1), calls.Load())
	s.Equal(int32(1), freed.Load())
}

func (s *RuntimeSuite) TestAsyncDuplicateCompletionIgnored() {
	var done ports.CompletionFunc
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(_ context.Context, _ *entities.TaskRequest, d ports.CompletionFunc) error {
			done = d
			return nil
		}}
	}
	_, id := s.create(asyncPath)

	var calls atomic.Int32
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(*entities.TaskRequest, *entities.TaskResult) { calls.Add(1) }))

	res := entities.NewTaskResult()
	res.Complete(value.Null())
	done(res)
	done(res)
	done(nil)
	s.Equal(int32(1), calls.Load())
	s.True(req.Released())

	s.NoError(s.rt.Cancel(s.ctx, id, req), "cancelling a finished request is a no-op")
	s.Equal(int32(0), s.asyncMod.last().cancels.Load())
}

func (s *RuntimeSuite) TestAsyncNilCallbackKeepsRequest() {
	_, id := s.create(asyncPath)
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, nil))

	s.Require().NoError(s.rt.DestroyInstance(s.ctx, id))
	s.False(req.Released(), "without a callback the caller keeps ownership")
}

func (s *RuntimeSuite) TestAsyncRejectedSubmission() {
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(context.Context, *entities.TaskRequest, ports.CompletionFunc) error {
			return errors.New(errors.CodeResourceExhausted, "queue full")
		}}
	}
	_, id := s.create(asyncPath)

	var calls atomic.Int32
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	err := s.rt.ExecuteAsync(s.ctx, id, req, func(*entities.TaskRequest, *entities.TaskResult) { calls.Add(1) })
	s.Equal(errors.CodeResourceExhausted, errors.CodeOf(err))
	s.Equal(int32(0), calls.Load())
	s.False(req.Released())

	inst, err := s.rt.lookup(id)
	s.Require().NoError(err)
	s.Equal(0, inst.pending.Count())
}

func (s *RuntimeSuite) TestAsyncDuplicateIDIsBusy() {
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(context.Context, *entities.TaskRequest, ports.CompletionFunc) error {
			return nil
		}}
	}
	_, id := s.create(asyncPath)

	a := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	a.ID = "same"
	b := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	b.ID = "same"
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, a, nil))
	s.Equal(errors.CodeResourceBusy, errors.CodeOf(s.rt.ExecuteAsync(s.ctx, id, b, nil)))
	s.NoError(s.rt.Cancel(s.ctx, id, b), "a request that is not the pending one is ignored")
}

func (s *RuntimeSuite) TestAsyncCancelReachesPlugin() {
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(ctx context.Context, _ *entities.TaskRequest, done ports.CompletionFunc) error {
			go func() {
				<-ctx.Done()
				res := entities.NewTaskResult()
				res.Status = entities.StatusCancelled
				res.Code = errors.CodeCancelled
				done(res)
			}()
			return nil
		}}
	}
	_, id := s.create(asyncPath)

	got := make(chan *entities.TaskResult, 1)
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(_ *entities.TaskRequest, res *entities.TaskResult) { got <- res }))
	s.Require().NoError(s.rt.Cancel(s.ctx, id, req))

	select {
	case res := <-got:
		s.Equal(entities.StatusCancelled, res.Status)
		s.Equal(errors.CodeCancelled, res.Code)
	case <-time.After(2 * time.Second):
		s.FailNow("cancel did not stop the task")
	}
	s.Equal(int32(1), s.asyncMod.last().cancels.Load())
	s.NoError(s.rt.Cancel(s.ctx, id, nil))
}

func (s *RuntimeSuite) TestAsyncCancelAfterCompletionIsSilent() {
	s.asyncMod.newPlugin = func() *fakePlugin {
		var done ports.CompletionFunc
		return &fakePlugin{
			threadSafe: true,
			async: func(_ context.Context, _ *entities.TaskRequest, d ports.CompletionFunc) error {
				done = d
				return nil
			},
			// Completion lands between the host's pending lookup and the
			// plugin's own bookkeeping, which then no longer knows req.
			cancel: func(_ context.Context, req *entities.TaskRequest) error {
				done(entities.NewTaskResult())
				return errors.Newf(errors.CodeInvalidParameter, "request %s not pending", req.ID)
			},
		}
	}
	_, id := s.create(asyncPath)

	var calls atomic.Int32
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(*entities.TaskRequest, *entities.TaskResult) { calls.Add(1) }))

	s.NoError(s.rt.Cancel(s.ctx, id, req))
	s.Equal(int32(1), calls.Load())
	s.True(req.Released())
}

func (s *RuntimeSuite) TestAsyncCompletedThenFailedSubmission() {
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(_ context.Context, _ *entities.TaskRequest, done ports.CompletionFunc) error {
			res := entities.NewTaskResult()
			res.Complete(value.Int(1))
			done(res)
			return errors.New(errors.CodeIO, "late failure")
		}}
	}
	_, id := s.create(asyncPath)

	var calls atomic.Int32
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(*entities.TaskRequest, *entities.TaskResult) { calls.Add(1) }))
	s.Equal(int32(1), calls.Load())
	s.True(req.Released())
}

func (s *RuntimeSuite) TestAsyncCancelRacesCompletion() {
	var (
		mu    sync.Mutex
		dones []ports.CompletionFunc
	)
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(_ context.Context, _ *entities.TaskRequest, done ports.CompletionFunc) error {
			mu.Lock()
			dones = append(dones, done)
			mu.Unlock()
			return nil
		}}
	}
	_, id := s.create(asyncPath)

	const n = 50
	var (
		calls atomic.Int32
		freed atomic.Int32
		reqs  []*entities.TaskRequest
	)
	for i := 0; i < n; i++ {
		req := entities.NewTaskRequest(entities.TaskGeneric, value.Int(int64(i)).WithFree(func(*value.Value) { freed.Add(1) }))
		s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(*entities.TaskRequest, *entities.TaskResult) { calls.Add(1) }))
		reqs = append(reqs, req)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func(done ports.CompletionFunc) {
			defer wg.Done()
			res := entities.NewTaskResult()
			res.Complete(value.Null())
			done(res)
		}(dones[i])
		go func(done ports.CompletionFunc) {
			defer wg.Done()
			done(entities.NewTaskResult())
		}(dones[i])
		go func(req *entities.TaskRequest) {
			defer wg.Done()
			s.NoError(s.rt.Cancel(s.ctx, id, req))
		}(reqs[i])
	}
	wg.Wait()

	s.Equal(int32(n), calls.Load(), "one callback per request")
	s.Equal(int32(n), freed.Load(), "one destruction per request")
	for _, req := range reqs {
		s.True(req.Released())
	}
}

func (s *RuntimeSuite) TestDestroyAbandonsStuckRequests() {
	s.asyncMod.newPlugin = func() *fakePlugin {
		return &fakePlugin{threadSafe: true, async: func(context.Context, *entities.TaskRequest, ports.CompletionFunc) error {
			return nil
		}}
	}
	_, id := s.create(asyncPath)

	got := make(chan *entities.TaskResult, 1)
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(_ *entities.TaskRequest, res *entities.TaskResult) { got <- res }))

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	s.Require().NoError(s.rt.DestroyInstance(ctx, id))

	select {
	case res := <-got:
		s.Equal(errors.CodeCancelled, res.Code)
		s.Equal(entities.StatusCancelled, res.Status)
	default:
		s.FailNow("abandoned request got no callback")
	}
	s.True(req.Released())
	s.Equal(int32(1), s.asyncMod.last().cancels.Load())
}

func (s *RuntimeSuite) TestAsyncCallbackPanicIsContained() {
	_, id := s.create(asyncPath)
	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	s.Require().NoError(s.rt.ExecuteAsync(s.ctx, id, req, func(*entities.TaskRequest, *entities.TaskResult) {
		panic(stdErrors.New("callback bug"))
	}))
	s.Eventually(req.Released, time.Second, time.Millisecond)
}
