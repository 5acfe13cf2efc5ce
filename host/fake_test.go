package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/value"
)

// fakePlugin implements every plugin-side interface the host binds.
type fakePlugin struct {
	name       string
	threadSafe bool
	reqs       entities.ThreadRequirements
	initErr    error

	execute func(ctx context.Context, req *entities.TaskRequest, res *entities.TaskResult) error
	async   func(ctx context.Context, req *entities.TaskRequest, done ports.CompletionFunc) error
	cancel  func(ctx context.Context, req *entities.TaskRequest) error
	start   func(ctx context.Context, fault ports.FaultFunc) error

	inputs, outputs []string

	mu      sync.Mutex
	host    ports.HostServices
	fault   ports.FaultFunc
	config  string
	hookErr error
	hooks   []string

	active    atomic.Int32
	maxActive atomic.Int32
	cancels   atomic.Int32
	inits     atomic.Int32
	uninits   atomic.Int32
}

func (p *fakePlugin) Name(entities.Language) string        { return p.name }
func (p *fakePlugin) Description(entities.Language) string { return "" }
func (p *fakePlugin) IsThreadSafe() bool                   { return p.threadSafe }

func (p *fakePlugin) ThreadRequirements() entities.ThreadRequirements { return p.reqs }

func (p *fakePlugin) Initialize(_ context.Context, host ports.HostServices) error {
	if p.initErr != nil {
		return p.initErr
	}
	p.inits.Add(1)
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()
	return nil
}

func (p *fakePlugin) Uninitialize(context.Context) error {
	p.uninits.Add(1)
	return nil
}

func (p *fakePlugin) services() ports.HostServices {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

func (p *fakePlugin) enter() func() {
	n := p.active.Add(1)
	for {
		top := p.maxActive.Load()
		if n <= top || p.maxActive.CompareAndSwap(top, n) {
			break
		}
	}
	return func() { p.active.Add(-1) }
}

func (p *fakePlugin) Execute(ctx context.Context, req *entities.TaskRequest, res *entities.TaskResult) error {
	defer p.enter()()
	if p.execute != nil {
		return p.execute(ctx, req, res)
	}
	res.Complete(value.String("ok"))
	return nil
}

func (p *fakePlugin) ExecuteAsync(ctx context.Context, req *entities.TaskRequest, done ports.CompletionFunc) error {
	if p.async != nil {
		return p.async(ctx, req, done)
	}
	go func() {
		res := entities.NewTaskResult()
		res.Complete(value.Int(42))
		done(res)
	}()
	return nil
}

func (p *fakePlugin) CancelAsync(ctx context.Context, req *entities.TaskRequest) error {
	p.cancels.Add(1)
	if p.cancel != nil {
		return p.cancel(ctx, req)
	}
	return nil
}

func (p *fakePlugin) SupportedFormats() (input, output []string) {
	return p.inputs, p.outputs
}

func (p *fakePlugin) Configuration() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

func (p *fakePlugin) UpdateConfiguration(_ context.Context, config string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = config
	return nil
}

func (p *fakePlugin) hook(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hookErr != nil {
		return p.hookErr
	}
	p.hooks = append(p.hooks, name)
	return nil
}

func (p *fakePlugin) Start(ctx context.Context, fault ports.FaultFunc) error {
	if err := p.hook("start"); err != nil {
		return err
	}
	p.mu.Lock()
	p.fault = fault
	p.mu.Unlock()
	if p.start != nil {
		return p.start(ctx, fault)
	}
	return nil
}

func (p *fakePlugin) Suspend(context.Context) error { return p.hook("suspend") }
func (p *fakePlugin) Resume(context.Context) error  { return p.hook("resume") }
func (p *fakePlugin) Stop(context.Context) error    { return p.hook("stop") }
func (p *fakePlugin) Reset(context.Context) error   { return p.hook("reset") }
func (p *fakePlugin) Cancel(context.Context) error  { return p.hook("cancel") }

func (p *fakePlugin) reportFault(err error) {
	p.mu.Lock()
	fault := p.fault
	p.mu.Unlock()
	fault(err)
}

// fakeModule builds the entry points of a static module whose create
// entry returns the plugins produced by newPlugin.
type fakeModule struct {
	uuid       entities.UUID
	version    entities.Version
	sdkVersion entities.Version
	supported  entities.Capability
	newPlugin  func() *fakePlugin
	canUnload  func() bool

	created   atomic.Int32
	destroyed atomic.Int32
	plugins   []*fakePlugin
	mu        sync.Mutex
}

func newFakeModule(supported entities.Capability) *fakeModule {
	return &fakeModule{
		uuid:       uuid.New(),
		version:    entities.NewVersion(1, 2, 3),
		sdkVersion: entities.SDKVersion,
		supported:  supported,
		newPlugin:  func() *fakePlugin { return &fakePlugin{name: "fake", threadSafe: true} },
	}
}

func (m *fakeModule) last() *fakePlugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plugins[len(m.plugins)-1]
}

func (m *fakeModule) symbols() Symbols {
	return Symbols{
		ports.EntrySDKVersion:     func() entities.Version { return m.sdkVersion },
		ports.EntryUUID:           func() entities.UUID { return m.uuid },
		ports.EntryVersion:        func() entities.Version { return m.version },
		ports.EntrySupportedTypes: func() entities.Capability { return m.supported },
		ports.EntryCreate: func() (ports.Plugin, error) {
			p := m.newPlugin()
			m.created.Add(1)
			m.mu.Lock()
			m.plugins = append(m.plugins, p)
			m.mu.Unlock()
			return p, nil
		},
		ports.EntryGetInterface: func(p ports.Plugin, capability entities.Capability, _ uint32) (any, error) {
			if !m.supported.Has(capability) {
				return nil, nil
			}
			return p, nil
		},
		ports.EntryDestroy: func(ports.Plugin) { m.destroyed.Add(1) },
		ports.EntryCanUnloadNow: func() bool {
			if m.canUnload != nil {
				return m.canUnload()
			}
			return true
		},
	}
}
