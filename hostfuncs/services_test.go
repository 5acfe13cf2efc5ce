package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/log"
	"github.com/reglet-dev/plughost/wireformat"
)

type loggedLine struct {
	level   entities.LogLevel
	source  string
	message string
}

type fakeServices struct {
	lang  entities.Language
	lines []loggedLine
}

func (f *fakeServices) Log(level entities.LogLevel, source, message string) {
	f.lines = append(f.lines, loggedLine{level, source, message})
}

func (f *fakeServices) SystemLanguage() entities.Language { return f.lang }

func (f *fakeServices) HostInterface(context.Context, entities.Capability, uint32) (any, error) {
	return nil, nil
}

type wireServices struct {
	fakeServices
	wire []log.LogMessageWire
}

func (w *wireServices) LogWire(_ context.Context, msg log.LogMessageWire) {
	w.wire = append(w.wire, msg)
}

func TestLogMessage(t *testing.T) {
	msg := log.LogMessageWire{Level: "warn", Source: "resize.go:42", Message: "image too large"}

	t.Run("no services drops the record", func(t *testing.T) {
		ack, err := LogMessage(context.Background(), msg)
		require.NoError(t, err)
		assert.False(t, ack.Accepted)
	})

	t.Run("flattened through Log", func(t *testing.T) {
		svc := &fakeServices{}
		ack, err := LogMessage(WithServices(context.Background(), svc), msg)
		require.NoError(t, err)
		assert.True(t, ack.Accepted)
		require.Len(t, svc.lines, 1)
		assert.Equal(t, loggedLine{entities.LogWarn, "resize.go:42", "image too large"}, svc.lines[0])
	})

	t.Run("missing source names the caller", func(t *testing.T) {
		svc := &fakeServices{}
		ctx := WithCaller(WithServices(context.Background(), svc), "resize.wasm#3")
		_, err := LogMessage(ctx, log.LogMessageWire{Level: "info", Message: "ready"})
		require.NoError(t, err)
		require.Len(t, svc.lines, 1)
		assert.Equal(t, "resize.wasm#3", svc.lines[0].source)
	})

	t.Run("wire logger keeps attributes", func(t *testing.T) {
		svc := &wireServices{}
		withAttrs := msg
		withAttrs.Attrs = []log.LogAttrWire{{Key: "width", Type: "int64", Value: "8000"}}

		ack, err := LogMessage(WithServices(context.Background(), svc), withAttrs)
		require.NoError(t, err)
		assert.True(t, ack.Accepted)
		assert.Empty(t, svc.lines)
		require.Len(t, svc.wire, 1)
		assert.Equal(t, "8000", svc.wire[0].Attrs[0].Value)
	})
}

func TestSystemLanguage(t *testing.T) {
	reply, err := SystemLanguage(context.Background(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, string(entities.DefaultLanguage), reply.Language)

	reply, err = SystemLanguage(WithServices(context.Background(), &fakeServices{lang: entities.LanguageJaJP}), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "ja-JP", reply.Language)
}

func TestServices_ThroughRegistry(t *testing.T) {
	reg, err := NewServicesRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{FuncLogMessage, FuncSystemLanguage}, reg.Names())

	svc := &fakeServices{lang: entities.LanguageKoKR}
	ctx := WithServices(context.Background(), svc)

	resp, err := reg.Call(ctx, FuncSystemLanguage, nil)
	require.NoError(t, err)
	var lang wireformat.SystemLanguageWire
	require.NoError(t, json.Unmarshal(resp, &lang))
	assert.Equal(t, "ko-KR", lang.Language)

	resp, err = reg.Call(ctx, FuncLogMessage, []byte(`{"level":"error","message":"boom"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"accepted":true}`, string(resp))
	require.Len(t, svc.lines, 1)
	assert.Equal(t, entities.LogError, svc.lines[0].level)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	_, ok := ServicesFrom(ctx)
	assert.False(t, ok)
	_, ok = ServicesFrom(WithServices(ctx, nil))
	assert.False(t, ok)

	svc := &fakeServices{}
	got, ok := ServicesFrom(WithServices(ctx, svc))
	require.True(t, ok)
	assert.Same(t, svc, got)

	assert.Empty(t, Caller(ctx))
	assert.Equal(t, "disk.wasm#1", Caller(WithCaller(ctx, "disk.wasm#1")))
	assert.Empty(t, FunctionName(ctx))
}
