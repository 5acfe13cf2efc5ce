package wazero

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tetratelabs/wazero"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/value"
	"github.com/reglet-dev/plughost/wireformat"
)

var echoUUID = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

const echoResponse = `{"code":0,"text":"Echo","requirements":2,"result":{"status":3,"error_code":0,"progress_ratio":1,"output_json":"{\"echo\":true}"}}`

const (
	uuidOffset     = 16
	responseOffset = 64
	scratchOffset  = 4096
)

func packed(ptr, length int) int64 { return int64(ptr)<<32 | int64(length) }

func echoFuncs(skip string) []wasmFunc {
	all := []wasmFunc{
		{name: exportSDKVersion, results: []byte{i32}, body: i32Const(1 << 16)},
		{name: exportUUID, results: []byte{i64}, body: i64Const(packed(uuidOffset, 16))},
		{name: exportVersion, results: []byte{i32}, body: i32Const(2<<16 | 1<<8)},
		{name: exportSupportedTypes, results: []byte{i64}, body: i64Const(int64(entities.CapabilitySingleTask | entities.CapabilityAsyncTask))},
		{name: exportCreate, results: []byte{i32}, body: i32Const(1)},
		{name: exportGetInterface, params: []byte{i32, i64, i32}, results: []byte{i32}, body: i32Const(0)},
		{name: exportDestroy, params: []byte{i32}},
		{name: exportCanUnloadNow, results: []byte{i32}, body: i32Const(1)},
		{name: exportInvoke, params: []byte{i32, i64}, results: []byte{i64}, body: i64Const(packed(responseOffset, len(echoResponse)))},
		{name: exportAllocate, params: []byte{i32}, results: []byte{i32}, body: i32Const(scratchOffset)},
		{name: exportDeallocate, params: []byte{i32, i32}},
	}
	funcs := all[:0]
	for _, f := range all {
		if f.name != skip {
			funcs = append(funcs, f)
		}
	}
	return funcs
}

func echoModule(skip string) []byte {
	return buildModule(nil, echoFuncs(skip), []wasmData{
		{offset: uuidOffset, bytes: echoUUID[:]},
		{offset: responseOffset, bytes: []byte(echoResponse)},
	})
}

type testServices struct {
	lang entities.Language
}

func (s *testServices) Log(entities.LogLevel, string, string) {}

func (s *testServices) SystemLanguage() entities.Language { return s.lang }

func (s *testServices) HostInterface(context.Context, entities.Capability, uint32) (any, error) {
	return nil, errors.New(errors.CodeNotSupported, "test services")
}

type LibrarySuite struct {
	suite.Suite
	ctx    context.Context
	opener *Opener
	lib    ports.Library
}

func (s *LibrarySuite) SetupTest() {
	s.ctx = context.Background()
	opener, err := NewOpener(s.ctx, WithAsyncPoolSize(4))
	s.Require().NoError(err)
	s.opener = opener

	lib, err := opener.OpenBytes(s.ctx, "echo.wasm", echoModule(""))
	s.Require().NoError(err)
	s.lib = lib
}

func (s *LibrarySuite) TearDownTest() {
	s.NoError(s.lib.Close(s.ctx))
	s.NoError(s.opener.Close(s.ctx))
}

func (s *LibrarySuite) lookup(entry string) any {
	sym, err := s.lib.Lookup(entry)
	s.Require().NoError(err)
	return sym
}

func (s *LibrarySuite) createPlugin() ports.Plugin {
	create, ok := s.lookup(ports.EntryCreate).(ports.CreateFunc)
	s.Require().True(ok)
	p, err := create()
	s.Require().NoError(err)
	return p
}

func (s *LibrarySuite) TestIdentityExports() {
	s.Equal("echo.wasm", s.lib.Path())

	sdk, ok := s.lookup(ports.EntrySDKVersion).(ports.SDKVersionFunc)
	s.Require().True(ok)
	s.Equal(entities.NewVersion(1, 0, 0), sdk())

	version, ok := s.lookup(ports.EntryVersion).(ports.VersionFunc)
	s.Require().True(ok)
	s.Equal("2.1.0", version().String())

	id, ok := s.lookup(ports.EntryUUID).(ports.UUIDFunc)
	s.Require().True(ok)
	s.Equal(echoUUID, id())

	types, ok := s.lookup(ports.EntrySupportedTypes).(ports.SupportedTypesFunc)
	s.Require().True(ok)
	s.Equal(entities.CapabilitySingleTask|entities.CapabilityAsyncTask, types())

	canUnload, ok := s.lookup(ports.EntryCanUnloadNow).(ports.CanUnloadNowFunc)
	s.Require().True(ok)
	s.True(canUnload())
}

func (s *LibrarySuite) TestPluginBasics() {
	p := s.createPlugin()

	s.Equal("Echo", p.Name(entities.LanguageEnUS))
	s.Equal("Echo", p.Description(entities.LanguageJaJP))
	s.False(p.IsThreadSafe())
	s.Equal(entities.ThreadBackground, p.ThreadRequirements())
	s.NoError(p.Initialize(s.ctx, &testServices{lang: entities.LanguageFrFR}))
	s.NoError(p.Uninitialize(s.ctx))

	destroy, ok := s.lookup(ports.EntryDestroy).(ports.DestroyFunc)
	s.Require().True(ok)
	destroy(p)
}

func (s *LibrarySuite) TestSyncExecuteRoundTrip() {
	p := s.createPlugin()
	getInterface, ok := s.lookup(ports.EntryGetInterface).(ports.GetInterfaceFunc)
	s.Require().True(ok)

	iface, err := getInterface(p, entities.CapabilitySingleTask, 1)
	s.Require().NoError(err)
	task, ok := iface.(ports.SingleTask)
	s.Require().True(ok)

	req := entities.NewTaskRequest(entities.TaskGeneric, value.String("ping"))
	defer req.Release()
	res := entities.NewTaskResult()
	defer res.Release()

	s.Require().NoError(task.Execute(s.ctx, req, res))
	s.Equal(entities.StatusCompleted, res.Status)
	s.True(res.IsSuccess())
	s.Equal(`{"echo":true}`, res.OutputJSON.String())
	s.False(res.IsCompleted(), "guest reported no completion time")

	alloc := s.opener.Allocator()
	s.True(res.OutputJSON.HasFree(), "output is copied into the opener's pool")
	s.Equal(1, alloc.Outstanding(), "only the output outlives the call")
	res.Release()
	s.Equal(0, alloc.Outstanding())
}

func (s *LibrarySuite) TestAsyncExecute() {
	p := s.createPlugin()
	getInterface := s.lookup(ports.EntryGetInterface).(ports.GetInterfaceFunc)

	iface, err := getInterface(p, entities.CapabilityAsyncTask, 1)
	s.Require().NoError(err)
	task, ok := iface.(ports.AsyncTask)
	s.Require().True(ok)

	req := entities.NewTaskRequest(entities.TaskGeneric, value.Null())
	req.ID = "async-1"
	statuses := make(chan entities.ExecutionStatus, 1)

	s.Require().NoError(task.ExecuteAsync(s.ctx, req, func(res *entities.TaskResult) {
		statuses <- res.Status
	}))

	select {
	case status := <-statuses:
		s.Equal(entities.StatusCompleted, status)
	case <-time.After(5 * time.Second):
		s.Fail("async completion not delivered")
	}

	s.NoError(task.CancelAsync(s.ctx, req), "finished requests are ignored")
}

func (s *LibrarySuite) TestUnsupportedCapability() {
	p := s.createPlugin()
	getInterface := s.lookup(ports.EntryGetInterface).(ports.GetInterfaceFunc)

	_, err := getInterface(p, entities.CapabilityResident, 1)
	var capErr *errors.CapabilityError
	s.Require().ErrorAs(err, &capErr)
	s.Equal(errors.CodeInterfaceNotSupported, errors.CodeOf(err))
}

func (s *LibrarySuite) TestCloseIsIdempotent() {
	canUnload := s.lookup(ports.EntryCanUnloadNow).(ports.CanUnloadNowFunc)

	s.NoError(s.lib.Close(s.ctx))
	s.NoError(s.lib.Close(s.ctx))
	s.False(canUnload(), "a closed library is never reported unloadable by the guest")
}

func TestLibrarySuite(t *testing.T) {
	suite.Run(t, new(LibrarySuite))
}

func TestOpener_MissingExportRejected(t *testing.T) {
	ctx := context.Background()
	opener, err := NewOpener(ctx)
	require.NoError(t, err)
	defer opener.Close(ctx)

	lib, err := opener.OpenBytes(ctx, "broken.wasm", echoModule(exportInvoke))
	require.NoError(t, err)
	defer lib.Close(ctx)

	_, err = lib.Lookup(ports.EntryCreate)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingEntryPoint)
	assert.Equal(t, errors.CodePluginLoadFailed, errors.CodeOf(err))
	assert.Contains(t, err.Error(), exportInvoke)

	_, err = lib.Lookup(ports.EntryUUID)
	assert.NoError(t, err)

	_, err = lib.Lookup("get_plugin_colour")
	assert.ErrorIs(t, err, errors.ErrMissingEntryPoint)
}

func TestOpener_OpenFailures(t *testing.T) {
	ctx := context.Background()
	opener, err := NewOpener(ctx)
	require.NoError(t, err)
	defer opener.Close(ctx)

	_, err = opener.Open(ctx, filepath.Join(t.TempDir(), "absent.wasm"))
	assert.Equal(t, errors.CodeFileNotFound, errors.CodeOf(err))

	garbage := filepath.Join(t.TempDir(), "garbage.wasm")
	require.NoError(t, os.WriteFile(garbage, []byte("not wasm at all"), 0o600))
	_, err = opener.Open(ctx, garbage)
	assert.Equal(t, errors.CodePluginLoadFailed, errors.CodeOf(err))

	onDisk := filepath.Join(t.TempDir(), "echo.wasm")
	require.NoError(t, os.WriteFile(onDisk, echoModule(""), 0o600))
	lib, err := opener.Open(ctx, onDisk)
	require.NoError(t, err)
	assert.Equal(t, onDisk, lib.Path())
	assert.NoError(t, lib.Close(ctx))
}

func TestHostFunctionCallFromGuest(t *testing.T) {
	ctx := context.Background()
	opener, err := NewOpener(ctx)
	require.NoError(t, err)
	defer opener.Close(ctx)

	const requestOffset = 256
	module := buildModule(
		[]wasmImport{{module: DefaultHostModuleName, name: hostfuncs.FuncSystemLanguage, params: []byte{i64}, results: []byte{i64}}},
		[]wasmFunc{
			{name: "lookup", results: []byte{i64}, body: append(i64Const(packed(requestOffset, 2)), opCall, 0x00)},
			{name: exportAllocate, params: []byte{i32}, results: []byte{i32}, body: i32Const(scratchOffset)},
		},
		[]wasmData{{offset: requestOffset, bytes: []byte("{}")}},
	)

	lib, err := opener.OpenBytes(ctx, "lookup.wasm", module)
	require.NoError(t, err)
	defer lib.Close(ctx)
	mod := lib.(*library).mod

	callCtx := hostfuncs.WithServices(ctx, &testServices{lang: entities.LanguageZhTW})
	results, err := mod.ExportedFunction("lookup").Call(callCtx)
	require.NoError(t, err)

	raw, err := readGuest(mod, results[0])
	require.NoError(t, err)
	var reply wireformat.SystemLanguageWire
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.Equal(t, "zh-TW", reply.Language)
}

func TestHostModule_Defaults(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	registry, err := hostfuncs.NewServicesRegistry()
	require.NoError(t, err)
	mod, err := HostModule{}.Register(ctx, runtime, registry)
	require.NoError(t, err)
	assert.Equal(t, DefaultHostModuleName, mod.Name())

	custom, err := HostModule{Name: "custom_module", MaxRequestSize: 2048}.Register(ctx, runtime, registry)
	require.NoError(t, err)
	assert.Equal(t, "custom_module", custom.Name())
}

func TestHostFunctionFaultReachesGuest(t *testing.T) {
	ctx := context.Background()
	opener, err := NewOpener(ctx)
	require.NoError(t, err)
	defer opener.Close(ctx)

	const requestOffset = 256
	module := buildModule(
		[]wasmImport{{module: DefaultHostModuleName, name: hostfuncs.FuncLogMessage, params: []byte{i64}, results: []byte{i64}}},
		[]wasmFunc{
			{name: "lookup", results: []byte{i64}, body: append(i64Const(packed(requestOffset, 2)), opCall, 0x00)},
			{name: exportAllocate, params: []byte{i32}, results: []byte{i32}, body: i32Const(scratchOffset)},
		},
		[]wasmData{{offset: requestOffset, bytes: []byte("{x")}},
	)

	lib, err := opener.OpenBytes(ctx, "faulty.wasm", module)
	require.NoError(t, err)
	defer lib.Close(ctx)
	mod := lib.(*library).mod

	results, err := mod.ExportedFunction("lookup").Call(ctx)
	require.NoError(t, err)

	raw, err := readGuest(mod, results[0])
	require.NoError(t, err)
	var fault hostfuncs.Fault
	require.NoError(t, json.Unmarshal(raw, &fault))
	assert.Equal(t, hostfuncs.KindInvalid, fault.Kind)
	assert.Equal(t, errors.CodeValidation, fault.Code)
}
