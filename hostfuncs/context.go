package hostfuncs

import (
	"context"

	"github.com/reglet-dev/plughost/domain/ports"
)

type (
	servicesKey struct{}
	callerKey   struct{}
	functionKey struct{}
)

// WithServices attaches the calling instance's host services to ctx. The
// wasm backend does this on every call into a guest, so host functions the
// guest calls back reach the right instance.
func WithServices(ctx context.Context, svc ports.HostServices) context.Context {
	return context.WithValue(ctx, servicesKey{}, svc)
}

// ServicesFrom returns the host services attached to ctx.
func ServicesFrom(ctx context.Context) (ports.HostServices, bool) {
	svc, ok := ctx.Value(servicesKey{}).(ports.HostServices)
	return svc, ok && svc != nil
}

// WithCaller names the module instance whose guest code runs under ctx.
func WithCaller(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerKey{}, name)
}

// Caller returns the name set by WithCaller, or "".
func Caller(ctx context.Context) string {
	name, _ := ctx.Value(callerKey{}).(string)
	return name
}

// FunctionName returns the host function being served, or "" outside a
// registry call.
func FunctionName(ctx context.Context) string {
	name, _ := ctx.Value(functionKey{}).(string)
	return name
}

func withFunction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionKey{}, name)
}
