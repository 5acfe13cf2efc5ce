package host

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/reglet-dev/plughost/domain/errors"
)

// HealthHandler returns an HTTP handler serving /live and /ready for the
// runtime. Liveness fails once the UI thread has stopped; readiness also
// fails after Close and while the instance limit is reached.
func (rt *Runtime) HealthHandler() healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("ui-thread", func() error {
		if !rt.ui.Running() {
			return errors.New(errors.CodeInvalidState, "ui thread stopped")
		}
		return nil
	})
	h.AddReadinessCheck("runtime-open", func() error {
		if rt.closed.Load() {
			return errors.ErrClosed
		}
		return nil
	})
	h.AddReadinessCheck("instance-capacity", func() error {
		limit := rt.config.maxInstances
		if limit > 0 && rt.registry.Len() >= limit {
			return fmt.Errorf("instance limit %d reached", limit)
		}
		return nil
	})
	return h
}
