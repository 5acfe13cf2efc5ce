package host

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
)

const tracerName = "github.com/reglet-dev/plughost/host"

// dispatch runs fn against inst on the single call path: a span, single
// flight for non-thread-safe instances, the UI thread when required, panic
// recovery and metrics.
func (rt *Runtime) dispatch(ctx context.Context, inst *instance, op string, fn func(ctx context.Context) error) (err error) {
	ctx, span := rt.tracer.Start(ctx, "plughost."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("plughost.instance", inst.id.String()),
			attribute.String("plughost.module", inst.module.path),
		))
	start := time.Now()
	defer func() {
		rt.metrics.observe(op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.Int("plughost.code", int(errors.CodeOf(err))))
		}
		span.End()
	}()

	call := func(ctx context.Context) error {
		if !inst.threadSafe {
			inst.callMu.Lock()
			defer inst.callMu.Unlock()
		}
		return recoverCall(op, func() error { return fn(ctx) })
	}

	if inst.requirements.Has(entities.ThreadUI) {
		return rt.ui.Run(ctx, call)
	}
	return call(ctx)
}

// query runs a call that must not fail the caller, such as reading the
// name of an instance. Panics are logged and yield the zero result.
func query[T any](rt *Runtime, ctx context.Context, inst *instance, op string, fn func() T) T {
	var out T
	err := rt.dispatch(ctx, inst, op, func(context.Context) error {
		out = fn()
		return nil
	})
	if err != nil {
		rt.logger.WarnContext(ctx, "host: instance query failed",
			"instance", inst.id.String(), "op", op, "error", err)
	}
	return out
}
