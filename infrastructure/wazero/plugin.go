package wazero

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/internal/abi"
	"github.com/reglet-dev/plughost/value"
	"github.com/reglet-dev/plughost/wireformat"
)

// servicesBox lets an interface value live in an atomic.Pointer.
type servicesBox struct {
	svc ports.HostServices
}

// wasmPlugin is one guest instance. Every method is a plugin_invoke call
// carrying an InvokeRequestWire.
type wasmPlugin struct {
	lib       *library
	services  atomic.Pointer[servicesBox]
	async     *asyncTask
	asyncOnce sync.Once
	handle    uint32
}

func (p *wasmPlugin) invoke(ctx context.Context, req wireformat.InvokeRequestWire) (*wireformat.InvokeResponseWire, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeEncoding, "wasm "+req.Method, err)
	}

	if box := p.services.Load(); box != nil {
		ctx = hostfuncs.WithServices(ctx, box.svc)
	}
	ctx = hostfuncs.WithCaller(ctx, p.lib.name)

	var raw value.Value
	defer raw.Release()
	err = p.lib.guest(func(mod api.Module) error {
		ptr, err := writeGuest(ctx, mod, payload)
		if err != nil {
			return errors.Wrap(errors.CodeMemoryAllocation, "wasm "+req.Method, err)
		}
		defer freeGuest(ctx, mod, ptr, uint32(len(payload))) //nolint:gosec // G115: bounded by guest memory

		results, err := mod.ExportedFunction(exportInvoke).Call(ctx,
			uint64(p.handle), abi.PackPtrLen(ptr, uint32(len(payload)))) //nolint:gosec // G115: bounded by guest memory
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "wasm "+req.Method, err)
		}

		raw, err = readGuestPooled(mod, results[0], p.lib.opener.alloc)
		if err != nil {
			return errors.Wrap(errors.CodeOutOfBounds, "wasm "+req.Method, err)
		}
		respPtr, respLen, _ := abi.UnpackPtrLen(results[0])
		freeGuest(ctx, mod, respPtr, respLen)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw.Len() == 0 {
		return nil, errors.Newf(errors.CodeDataCorrupted, "wasm %s: empty response", req.Method)
	}

	var resp wireformat.InvokeResponseWire
	if err := json.Unmarshal(raw.Bytes(), &resp); err != nil {
		return nil, errors.Wrap(errors.CodeParse, "wasm "+req.Method, err)
	}
	if resp.Error != nil {
		return &resp, errors.FromErrorDetail(resp.Error)
	}
	if err := errors.FromCode(errors.Code(resp.Code), "wasm "+req.Method); err != nil {
		return &resp, err
	}
	return &resp, nil
}

func (p *wasmPlugin) text(method string, lang entities.Language) string {
	resp, err := p.invoke(context.Background(), wireformat.InvokeRequestWire{Method: method, Language: string(lang)})
	if err != nil {
		return ""
	}
	return resp.Text
}

func (p *wasmPlugin) Name(lang entities.Language) string {
	return p.text(wireformat.MethodName, lang)
}

func (p *wasmPlugin) Description(lang entities.Language) string {
	return p.text(wireformat.MethodDescription, lang)
}

// IsThreadSafe is always false: a guest instance is single-threaded.
func (p *wasmPlugin) IsThreadSafe() bool {
	return false
}

func (p *wasmPlugin) ThreadRequirements() entities.ThreadRequirements {
	resp, err := p.invoke(context.Background(), wireformat.InvokeRequestWire{Method: wireformat.MethodThreadRequirements})
	if err != nil {
		return 0
	}
	return entities.ThreadRequirements(resp.Requirements)
}

func (p *wasmPlugin) Initialize(ctx context.Context, host ports.HostServices) error {
	lang := entities.DefaultLanguage
	if host != nil {
		p.services.Store(&servicesBox{svc: host})
		lang = host.SystemLanguage()
	}
	_, err := p.invoke(ctx, wireformat.InvokeRequestWire{Method: wireformat.MethodInitialize, Language: string(lang)})
	if err != nil {
		p.services.Store(nil)
	}
	return err
}

func (p *wasmPlugin) Uninitialize(ctx context.Context) error {
	_, err := p.invoke(ctx, wireformat.InvokeRequestWire{Method: wireformat.MethodUninitialize})
	p.services.Store(nil)
	return err
}

// Execute sends the request to the guest and copies its result into res.
func (p *wasmPlugin) Execute(ctx context.Context, req *entities.TaskRequest, res *entities.TaskResult) error {
	wire, err := req.ToWire()
	if err != nil {
		res.Fail(errors.CodeOf(err))
		return err
	}

	resp, err := p.invoke(ctx, wireformat.InvokeRequestWire{
		Method:   wireformat.MethodExecute,
		Language: string(req.Language),
		Request:  &wire,
	})
	if resp != nil && resp.Result != nil {
		if aerr := res.ApplyWire(*resp.Result); aerr != nil && err == nil {
			err = aerr
		}
		p.pool(res)
	}
	if err != nil && !res.Status.IsTerminal() {
		res.Fail(errors.CodeOf(err))
	}
	return err
}

// pool moves the decoded output of res into pooled buffers whose free
// capability returns them to the opener's allocator. Outputs that do not
// fit the allocator's budget stay plain copies.
func (p *wasmPlugin) pool(res *entities.TaskResult) {
	alloc := p.lib.opener.alloc
	if !res.OutputJSON.IsZero() {
		if t, err := alloc.Text(res.OutputJSON.String()); err == nil {
			res.OutputJSON.Release()
			res.OutputJSON = t
		}
	}
	if res.Output.Kind() == value.KindBuffer {
		if v, err := alloc.Buffer(res.Output.Bytes()); err == nil {
			res.Output.Release()
			res.Output = v
		}
	}
}

func (p *wasmPlugin) cancel(ctx context.Context, req *entities.TaskRequest) error {
	wire, err := req.ToWire()
	if err != nil {
		return err
	}
	_, err = p.invoke(ctx, wireformat.InvokeRequestWire{Method: wireformat.MethodCancel, Request: &wire})
	return err
}

func (p *wasmPlugin) asyncTask() *asyncTask {
	p.asyncOnce.Do(func() {
		p.async = &asyncTask{
			plugin:  p,
			pending: cmap.New[*asyncEntry](),
		}
	})
	return p.async
}

type asyncEntry struct {
	cancelled atomic.Bool
	started   atomic.Bool
}

// asyncTask serves the async capability of a guest by running its
// synchronous execute on the opener's worker pool.
type asyncTask struct {
	plugin  *wasmPlugin
	pending cmap.ConcurrentMap[string, *asyncEntry]
}

func (a *asyncTask) ExecuteAsync(ctx context.Context, req *entities.TaskRequest, done ports.CompletionFunc) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	entry := &asyncEntry{}
	if !a.pending.SetIfAbsent(req.ID, entry) {
		return errors.Newf(errors.CodeResourceBusy, "request %s already pending", req.ID)
	}

	err := a.plugin.lib.opener.pool.Submit(func() {
		res := entities.NewTaskResult()
		defer res.Release()

		if entry.cancelled.Load() {
			res.Status = entities.StatusCancelled
			res.Code = errors.CodeCancelled
		} else {
			entry.started.Store(true)
			_ = a.plugin.Execute(context.WithoutCancel(ctx), req, res)
		}
		a.pending.Remove(req.ID)
		done(res)
	})
	if err != nil {
		a.pending.Remove(req.ID)
		return errors.Wrap(errors.CodeResourceExhausted, "wasm async submit", err)
	}
	return nil
}

// CancelAsync stops a request still waiting for a worker. A request the
// guest has started is forwarded the cancel method, which the guest sees
// once its current call returns. Unknown or finished requests are ignored.
func (a *asyncTask) CancelAsync(ctx context.Context, req *entities.TaskRequest) error {
	if req == nil {
		return nil
	}
	entry, ok := a.pending.Get(req.ID)
	if !ok {
		return nil
	}
	entry.cancelled.Store(true)
	if entry.started.Load() {
		return a.plugin.cancel(ctx, req)
	}
	return nil
}

var (
	_ ports.Plugin     = (*wasmPlugin)(nil)
	_ ports.SingleTask = (*wasmPlugin)(nil)
	_ ports.AsyncTask  = (*asyncTask)(nil)
)
