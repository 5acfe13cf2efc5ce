package host

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/reglet-dev/plughost/domain/errors"
)

type uiThreadKey struct{}

// OnUIThread reports whether ctx belongs to a call running on the UI
// thread.
func OnUIThread(ctx context.Context) bool {
	on, _ := ctx.Value(uiThreadKey{}).(bool)
	return on
}

type uiJob struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// uiThread runs jobs one at a time on a goroutine locked to its OS thread.
type uiThread struct {
	queue   *queue.Queue
	stopped chan struct{}
	running atomic.Bool
	once    sync.Once
}

func newUIThread() *uiThread {
	t := &uiThread{
		queue:   queue.New(16),
		stopped: make(chan struct{}),
	}
	t.running.Store(true)
	go t.loop()
	return t
}

func (t *uiThread) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.stopped)
	defer t.running.Store(false)

	for {
		items, err := t.queue.Get(1)
		if err != nil {
			return
		}
		for _, item := range items {
			job := item.(*uiJob)
			if err := job.ctx.Err(); err != nil {
				job.done <- err
				continue
			}
			job.done <- job.fn(job.ctx)
		}
	}
}

// Run executes fn on the UI thread and waits for it. A call made from the
// UI thread itself runs inline.
func (t *uiThread) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if OnUIThread(ctx) {
		return fn(ctx)
	}
	job := &uiJob{
		ctx:  context.WithValue(ctx, uiThreadKey{}, true),
		fn:   fn,
		done: make(chan error, 1),
	}
	if err := t.queue.Put(job); err != nil {
		return errors.ErrClosed
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the UI goroutine is alive.
func (t *uiThread) Running() bool {
	return t.running.Load()
}

// Close stops the UI goroutine. Queued jobs fail with ErrClosed.
func (t *uiThread) Close() {
	t.once.Do(func() {
		for _, item := range t.queue.Dispose() {
			item.(*uiJob).done <- errors.ErrClosed
		}
		<-t.stopped
	})
}
