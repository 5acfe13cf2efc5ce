package hostfuncs

import (
	"context"
	"sort"

	"github.com/reglet-dev/plughost/domain/errors"
)

// DefaultMaxRequestSize bounds the payload a guest may pass to a host
// function.
const DefaultMaxRequestSize = 1 << 20

// Registry is a fixed set of named host functions, each wrapped in the
// registry's middleware chain. It is safe for concurrent use.
type Registry struct {
	funcs map[string]Func
	names []string
}

// Option configures NewRegistry.
type Option func(*builder)

type builder struct {
	funcs map[string]Func
	chain []Middleware
	err   error
}

func (b *builder) add(name string, fn Func) {
	switch {
	case b.err != nil:
	case name == "":
		b.err = errors.New(errors.CodeInvalidParameter, "host function name is empty")
	case fn == nil:
		b.err = errors.Newf(errors.CodeNullPointer, "host function %q is nil", name)
	default:
		if _, dup := b.funcs[name]; dup {
			b.err = errors.Newf(errors.CodeInvalidParameter, "host function %q registered twice", name)
			return
		}
		b.funcs[name] = fn
	}
}

// NewRegistry builds a registry. Middleware added with WithMiddleware wraps
// every function; the first one added runs outermost.
func NewRegistry(opts ...Option) (*Registry, error) {
	b := &builder{funcs: make(map[string]Func)}
	for _, opt := range opts {
		opt(b)
	}
	if b.err != nil {
		return nil, b.err
	}

	r := &Registry{funcs: make(map[string]Func, len(b.funcs))}
	for name, fn := range b.funcs {
		for i := len(b.chain) - 1; i >= 0; i-- {
			fn = b.chain[i](fn)
		}
		r.funcs[name] = fn
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// NewServicesRegistry returns a registry with the host service functions
// behind panic recovery, followed by opts.
func NewServicesRegistry(opts ...Option) (*Registry, error) {
	return NewRegistry(append([]Option{WithMiddleware(Recover()), WithBundle(Services())}, opts...)...)
}

// Call runs the named function. Unknown names yield an UnknownFunction
// fault.
func (r *Registry) Call(ctx context.Context, name string, request []byte) ([]byte, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, UnknownFunction(name)
	}
	return fn(withFunction(ctx, name), request)
}

func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns the function names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int { return len(r.funcs) }

// Bundle is a named group of host functions registered together.
type Bundle map[string]Func

// WithFunc registers fn under name.
func WithFunc(name string, fn Func) Option {
	return func(b *builder) { b.add(name, fn) }
}

// WithTyped registers a typed function under name.
func WithTyped[Req, Resp any](name string, fn func(context.Context, Req) (Resp, error)) Option {
	return func(b *builder) { b.add(name, Typed(fn)) }
}

// WithBundle registers every function of bundle.
func WithBundle(bundle Bundle) Option {
	return func(b *builder) {
		names := make([]string, 0, len(bundle))
		for name := range bundle {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.add(name, bundle[name])
		}
	}
}

// WithMiddleware appends to the middleware chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *builder) { b.chain = append(b.chain, mw...) }
}
