package plugin

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/internal/testutil"
)

type logLine struct {
	level   entities.LogLevel
	source  string
	message string
}

type fakeHost struct {
	mu    sync.Mutex
	lines []logLine
	lang  entities.Language
	iface map[entities.Capability]any
}

func (h *fakeHost) Log(level entities.LogLevel, source, message string) {
	h.mu.Lock()
	h.lines = append(h.lines, logLine{level, source, message})
	h.mu.Unlock()
}

func (h *fakeHost) SystemLanguage() entities.Language { return h.lang }

func (h *fakeHost) HostInterface(_ context.Context, capability entities.Capability, _ uint32) (any, error) {
	if obj, ok := h.iface[capability]; ok {
		return obj, nil
	}
	return nil, errors.New(errors.CodeInterfaceNotSupported, capability.String())
}

var _ ports.HostServices = (*fakeHost)(nil)

func TestBase_Texts(t *testing.T) {
	b := &Base{
		Names:        Texts("en-US", "Resizer", "ja-JP", "リサイズ", "fr-FR", "Redimensionneur"),
		Descriptions: Texts("en-US", "Resizes images"),
		ThreadSafe:   true,
		Threads:      entities.ThreadBackground,
	}

	assert.Equal(t, "リサイズ", b.Name(entities.LanguageJaJP))
	assert.Equal(t, "リサイズ", b.Name("ja"))
	assert.Equal(t, "Redimensionneur", b.Name("fr-CA"))
	assert.Equal(t, "Resizer", b.Name(entities.LanguageKoKR))
	assert.Equal(t, "Resizes images", b.Description(entities.LanguageJaJP))
	assert.True(t, b.IsThreadSafe())
	assert.True(t, b.ThreadRequirements().Has(entities.ThreadBackground))

	empty := &Base{}
	assert.Equal(t, entities.DefaultPluginName, empty.Name(entities.LanguageEnUS))
	assert.Equal(t, entities.DefaultPluginDescription, empty.Description(entities.LanguageEnUS))
}

func TestTexts_Panics(t *testing.T) {
	assert.Panics(t, func() { Texts("en-US") })
	assert.Panics(t, func() { Texts("en_US", "underscore") })
}

func TestBase_HostAccess(t *testing.T) {
	ctx := context.Background()
	b := &Base{Names: Texts("en-US", "Disk monitor")}

	assert.Nil(t, b.Host())
	assert.Equal(t, entities.DefaultLanguage, b.Language())
	b.Logf(entities.LogInfo, "dropped")
	_, err := b.State(ctx)
	testutil.AssertCode(t, errors.CodeNotInitialized, err)

	h := &fakeHost{lang: entities.LanguageJaJP, iface: map[entities.Capability]any{
		entities.CapabilityState: "not a store",
	}}
	testutil.AssertCode(t, errors.CodeNullPointer, b.Initialize(ctx, nil))
	require.NoError(t, b.Initialize(ctx, h))
	assert.Equal(t, entities.LanguageJaJP, b.Language())

	b.Logf(entities.LogWarn, "disk at %d%%", 91)
	require.Len(t, h.lines, 1)
	assert.Equal(t, logLine{entities.LogWarn, "Disk monitor", "disk at 91%"}, h.lines[0])

	_, err = b.State(ctx)
	testutil.AssertCode(t, errors.CodeInterfaceNotSupported, err)
	_, err = b.Manager(ctx)
	testutil.AssertCode(t, errors.CodeInterfaceNotSupported, err)

	require.NoError(t, b.Uninitialize(ctx))
	assert.Nil(t, b.Host())
}
