package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/domain/errors"
)

type resizeRequest struct {
	Width int `json:"width"`
}

type resizeReply struct {
	Pixels int `json:"pixels"`
}

func resize(_ context.Context, req resizeRequest) (resizeReply, error) {
	if req.Width <= 0 {
		return resizeReply{}, errors.Newf(errors.CodeOutOfBounds, "width %d", req.Width)
	}
	return resizeReply{Pixels: req.Width * req.Width}, nil
}

func decodeFault(t *testing.T, err error) *Fault {
	t.Helper()
	require.Error(t, err)
	var f Fault
	require.NoError(t, json.Unmarshal(FaultOf(err).Bytes(), &f))
	return &f
}

func TestRegistry_Call(t *testing.T) {
	reg, err := NewRegistry(WithTyped("resize", resize))
	require.NoError(t, err)
	assert.True(t, reg.Has("resize"))
	assert.Equal(t, 1, reg.Len())

	resp, err := reg.Call(context.Background(), "resize", []byte(`{"width":4}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"pixels":16}`, string(resp))

	_, err = reg.Call(context.Background(), "resize", []byte(`{"width":-1}`))
	f := decodeFault(t, err)
	assert.Equal(t, errors.CodeOutOfBounds, f.Code)
	assert.Equal(t, KindFailed, f.Kind)

	_, err = reg.Call(context.Background(), "resize", []byte(`{width`))
	f = decodeFault(t, err)
	assert.Equal(t, errors.CodeValidation, f.Code)
	assert.Equal(t, KindInvalid, f.Kind)

	_, err = reg.Call(context.Background(), "rotate", nil)
	f = decodeFault(t, err)
	assert.Equal(t, KindUnknownFunction, f.Kind)
	assert.Equal(t, errors.CodeNotSupported, errors.CodeOf(err))
}

func TestRegistry_BuildErrors(t *testing.T) {
	noop := func(context.Context, []byte) ([]byte, error) { return nil, nil }

	_, err := NewRegistry(WithFunc("", noop))
	assert.Equal(t, errors.CodeInvalidParameter, errors.CodeOf(err))

	_, err = NewRegistry(WithFunc("a", nil))
	assert.Equal(t, errors.CodeNullPointer, errors.CodeOf(err))

	_, err = NewRegistry(WithFunc("a", noop), WithBundle(Bundle{"a": noop}))
	assert.Equal(t, errors.CodeInvalidParameter, errors.CodeOf(err))

	_, err = NewServicesRegistry(WithFunc(FuncLogMessage, noop))
	assert.Error(t, err, "service names are taken")
}

func TestRegistry_NamesAreSortedCopies(t *testing.T) {
	noop := func(context.Context, []byte) ([]byte, error) { return nil, nil }
	reg, err := NewRegistry(WithBundle(Bundle{"zeta": noop, "alpha": noop}), WithFunc("mid", noop))
	require.NoError(t, err)

	names := reg.Names()
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
	names[0] = "changed"
	assert.Equal(t, "alpha", reg.Names()[0])
}

func TestMiddleware_Order(t *testing.T) {
	var (
		mu    sync.Mutex
		trace []string
	)
	tag := func(name string) Middleware {
		return func(next Func) Func {
			return func(ctx context.Context, req []byte) ([]byte, error) {
				mu.Lock()
				trace = append(trace, name+":"+FunctionName(ctx))
				mu.Unlock()
				return next(ctx, req)
			}
		}
	}
	reg, err := NewRegistry(
		WithMiddleware(tag("outer"), tag("inner")),
		WithFunc("ping", func(context.Context, []byte) ([]byte, error) { return []byte(`{}`), nil }),
	)
	require.NoError(t, err)

	_, err = reg.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:ping", "inner:ping"}, trace)
}

func TestMiddleware_Recover(t *testing.T) {
	reg, err := NewRegistry(
		WithMiddleware(Recover()),
		WithFunc("explode", func(context.Context, []byte) ([]byte, error) { panic("guest asked for it") }),
	)
	require.NoError(t, err)

	resp, err := reg.Call(context.Background(), "explode", nil)
	assert.Nil(t, resp)
	f := decodeFault(t, err)
	assert.Equal(t, KindPanic, f.Kind)
	assert.Equal(t, errors.CodeThreadPanic, f.Code)
	assert.Equal(t, "guest asked for it", f.Message)
}

func TestMiddleware_LoggingAndObserve(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	type observed struct {
		function string
		code     errors.Code
	}
	var seen []observed
	observe := func(function string, elapsed time.Duration, err error) {
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		seen = append(seen, observed{function, errors.CodeOf(err)})
	}

	reg, err := NewRegistry(
		WithMiddleware(Logging(logger), Observe(observe)),
		WithTyped("resize", resize),
	)
	require.NoError(t, err)

	ctx := WithCaller(context.Background(), "thumbs.wasm#2")
	_, err = reg.Call(ctx, "resize", []byte(`{"width":2}`))
	require.NoError(t, err)
	_, err = reg.Call(ctx, "resize", []byte(`{"width":0}`))
	require.Error(t, err)

	assert.Equal(t, []observed{{"resize", errors.CodeSuccess}, {"resize", errors.CodeOutOfBounds}}, seen)
	out := buf.String()
	assert.Contains(t, out, `"msg":"host function call"`)
	assert.Contains(t, out, `"msg":"host function failed"`)
	assert.Contains(t, out, `"caller":"thumbs.wasm#2"`)
}

func TestFaultOf(t *testing.T) {
	inner := Invalid("width %d", 3)
	wrapped := errors.Wrap(errors.CodeIO, "outer", inner)
	assert.Same(t, inner, FaultOf(wrapped))

	f := FaultOf(stdErrors.New("plain"))
	assert.Equal(t, errors.CodeUnknown, f.Code)
	assert.Equal(t, "plain", f.Message)

	assert.Equal(t, errors.CodeValidation, errors.CodeOf(Invalid("x")))
	assert.Equal(t, "invalid_request: x", Invalid("x").Error())
}
