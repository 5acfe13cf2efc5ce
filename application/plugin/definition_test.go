package plugin

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/host"
	"github.com/reglet-dev/plughost/internal/testutil"
	"github.com/reglet-dev/plughost/value"
)

const greeterUUID = "5b1f7c1e-2f6a-4d1b-9a57-0c6f3b8e2d11"

type greeter struct {
	Base
}

func newGreeter() *greeter {
	return &greeter{Base: Base{
		Names:        Texts("en-US", "Greeter", "ja-JP", "挨拶"),
		Descriptions: Texts("en-US", "Says hello"),
	}}
}

func (g *greeter) Execute(_ context.Context, req *entities.TaskRequest, res *entities.TaskResult) error {
	name, _ := req.Input.AsString()
	g.Logf(entities.LogInfo, "greeting %s", name)
	res.Complete(value.String("hello " + name))
	return nil
}

func greeterDef() ModuleDef {
	return ModuleDef{
		UUID:         greeterUUID,
		Version:      "1.4.2",
		Capabilities: []string{"single_task", "image"},
		New:          func() (ports.Plugin, error) { return newGreeter(), nil },
	}
}

func TestDefineModule(t *testing.T) {
	m, err := DefineModule(greeterDef())
	require.NoError(t, err)

	assert.Equal(t, greeterUUID, m.UUID().String())
	assert.Equal(t, entities.NewVersion(1, 4, 2), m.Version())
	assert.Equal(t, entities.SDKVersion, m.SDKVersion())
	assert.Equal(t, entities.CapabilitySingleTask|entities.CapabilityImage, m.SupportedTypes())
	assert.Nil(t, m.ConfigSchema())
	assert.True(t, m.CanUnloadNow())
	assert.Len(t, m.Symbols(), len(ports.EntryPoints))
}

func TestDefineModule_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModuleDef)
	}{
		{"missing uuid", func(d *ModuleDef) { d.UUID = "" }},
		{"malformed uuid", func(d *ModuleDef) { d.UUID = "not-a-uuid" }},
		{"nil uuid", func(d *ModuleDef) { d.UUID = "00000000-0000-0000-0000-000000000000" }},
		{"bad version", func(d *ModuleDef) { d.Version = "one.two" }},
		{"no capabilities", func(d *ModuleDef) { d.Capabilities = nil }},
		{"unknown capability", func(d *ModuleDef) { d.Capabilities = []string{"teleport"} }},
		{"no constructor", func(d *ModuleDef) { d.New = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := greeterDef()
			tt.mutate(&def)
			_, err := DefineModule(def)
			var cfgErr *errors.ConfigError
			assert.True(t, stdErrors.As(err, &cfgErr), "got %v", err)
		})
	}

	assert.Panics(t, func() {
		def := greeterDef()
		def.UUID = ""
		MustDefineModule(def)
	})
}

func TestDefineModule_ConfigSchema(t *testing.T) {
	type sensorConfig struct {
		Rate int    `json:"rate" jsonschema:"minimum=1"`
		Unit string `json:"unit"`
	}
	def := greeterDef()
	def.Config = sensorConfig{}
	m, err := DefineModule(def)
	require.NoError(t, err)
	assert.Contains(t, string(m.ConfigSchema()), `"rate"`)
}

func TestModule_GetInterface(t *testing.T) {
	m := MustDefineModule(greeterDef())
	p, err := m.Create()
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Live())
	assert.False(t, m.CanUnloadNow())

	obj, err := m.GetInterface(p, entities.CapabilitySingleTask, 1)
	require.NoError(t, err)
	assert.Same(t, p, obj)

	obj, err = m.GetInterface(p, entities.CapabilityImage, 1)
	require.NoError(t, err)
	assert.Same(t, p, obj, "descriptive capabilities resolve to the plugin")

	obj, err = m.GetInterface(p, entities.CapabilityAsyncTask, 1)
	require.NoError(t, err)
	assert.Nil(t, obj, "undeclared")

	m.Destroy(p)
	assert.True(t, m.CanUnloadNow())
}

func TestModule_DeclaredButNotImplemented(t *testing.T) {
	def := greeterDef()
	def.Capabilities = []string{"single_task", "resident"}
	m := MustDefineModule(def)
	p, err := m.Create()
	require.NoError(t, err)

	obj, err := m.GetInterface(p, entities.CapabilityResident, 1)
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestModule_CreateFailures(t *testing.T) {
	def := greeterDef()
	def.New = func() (ports.Plugin, error) { return nil, nil }
	m := MustDefineModule(def)
	_, err := m.Create()
	testutil.AssertCode(t, errors.CodeNullPointer, err)

	def.New = func() (ports.Plugin, error) { return nil, errors.New(errors.CodeInitializationFailed, "no device") }
	m = MustDefineModule(def)
	_, err = m.Create()
	testutil.AssertCode(t, errors.CodeInitializationFailed, err)
	assert.Equal(t, int64(0), m.Live())
}

func TestModule_CanUnloadPredicate(t *testing.T) {
	def := greeterDef()
	busy := true
	def.CanUnload = func() bool { return !busy }
	m := MustDefineModule(def)
	assert.False(t, m.CanUnloadNow())
	busy = false
	assert.True(t, m.CanUnloadNow())
}

func newTestRuntime(t *testing.T, static *host.StaticOpener) *host.Runtime {
	t.Helper()
	rt, err := host.NewRuntime(context.Background(),
		host.WithLogger(testutil.Logger()),
		host.WithStaticModules(static),
		host.WithoutWasm(),
		host.WithLanguage("ja-JP"),
	)
	require.NoError(t, err)
	return rt
}

func TestModule_LoadedByHost(t *testing.T) {
	ctx := context.Background()
	mod := MustDefineModule(greeterDef())
	static := host.NewStaticOpener()
	static.Register("greeter", mod.Symbols())

	rt := newTestRuntime(t, static)
	defer rt.Close(ctx)

	m, err := rt.Load(ctx, "greeter")
	require.NoError(t, err)
	id, err := rt.CreateInstance(ctx, m)
	require.NoError(t, err)
	require.NoError(t, rt.Initialize(ctx, id))

	info, err := rt.BasicInfo(ctx, id, entities.LanguageJaJP)
	require.NoError(t, err)
	assert.Equal(t, "挨拶", info.Name)
	assert.Equal(t, "Says hello", info.Description)
	assert.Equal(t, entities.NewVersion(1, 4, 2), info.Version)

	req := entities.NewTaskRequest(entities.TaskGeneric, value.String("world"))
	res := entities.NewTaskResult()
	require.NoError(t, rt.Execute(ctx, id, req, res))
	out, ok := res.Output.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, mod.UUID(), res.Callee)

	assert.Equal(t, int64(1), mod.Live())
	require.NoError(t, rt.DestroyInstance(ctx, id))
	assert.Equal(t, int64(0), mod.Live())
	assert.True(t, m.CanUnloadNow())
}
