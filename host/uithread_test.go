package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/domain/errors"
)

func TestUIThread_RunsSerially(t *testing.T) {
	ui := newUIThread()
	defer ui.Close()

	var (
		mu     sync.Mutex
		active int
		peak   int
	)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ui.Run(context.Background(), func(ctx context.Context) error {
				assert.True(t, OnUIThread(ctx))
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestUIThread_NestedCallRunsInline(t *testing.T) {
	ui := newUIThread()
	defer ui.Close()

	err := ui.Run(context.Background(), func(ctx context.Context) error {
		return ui.Run(ctx, func(ctx context.Context) error {
			assert.True(t, OnUIThread(ctx))
			return errors.New(errors.CodeIO, "inner")
		})
	})
	assert.Equal(t, errors.CodeIO, errors.CodeOf(err))
}

func TestUIThread_Close(t *testing.T) {
	ui := newUIThread()
	assert.True(t, ui.Running())
	assert.False(t, OnUIThread(context.Background()))

	ui.Close()
	ui.Close()
	require.Eventually(t, func() bool { return !ui.Running() }, time.Second, time.Millisecond)

	err := ui.Run(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestUIThread_ContextCancelled(t *testing.T) {
	ui := newUIThread()
	defer ui.Close()

	release := make(chan struct{})
	go func() {
		_ = ui.Run(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := ui.Run(ctx, func(context.Context) error { return nil })
	assert.Equal(t, errors.CodeTimeout, errors.CodeOf(err))
	close(release)
}
