package hostfuncs

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a Func.
type Middleware func(next Func) Func

// Recover turns a panicking function into a panic fault.
func Recover() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, request []byte) (resp []byte, err error) {
			defer func() {
				if v := recover(); v != nil {
					resp, err = nil, Panicked(v)
				}
			}()
			return next(ctx, request)
		}
	}
}

// Logging logs each call at debug level and failures at warn level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Func) Func {
		return func(ctx context.Context, request []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			attrs := []any{
				"function", FunctionName(ctx),
				"caller", Caller(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "host function failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.DebugContext(ctx, "host function call", append(attrs, "request_bytes", len(request), "response_bytes", len(resp))...)
			return resp, nil
		}
	}
}

// ObserveFunc receives the outcome of every call.
type ObserveFunc func(function string, elapsed time.Duration, err error)

// Observe reports each call to fn, e.g. to feed metrics.
func Observe(fn ObserveFunc) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, request []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			fn(FunctionName(ctx), time.Since(start), err)
			return resp, err
		}
	}
}
