package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// Base implements the descriptive half of ports.Plugin. Embed it and add
// the capability methods:
//
//	type resizer struct {
//		plugin.Base
//	}
//
//	func (r *resizer) Execute(ctx context.Context, req *entities.TaskRequest, res *entities.TaskResult) error
type Base struct {
	// Names and Descriptions are looked up by language with x/text
	// matching. Missing entries fall back to en-US, then to the defaults.
	Names        entities.LocalizedText
	Descriptions entities.LocalizedText

	// ThreadSafe allows the host to enter the instance concurrently.
	ThreadSafe bool

	// Threads are the scheduling constraints, e.g. entities.ThreadUI.
	Threads entities.ThreadRequirements

	mu   sync.RWMutex
	host ports.HostServices
}

func (b *Base) Name(lang entities.Language) string {
	return b.Names.Lookup(lang, entities.DefaultPluginName)
}

func (b *Base) Description(lang entities.Language) string {
	return b.Descriptions.Lookup(lang, entities.DefaultPluginDescription)
}

func (b *Base) IsThreadSafe() bool { return b.ThreadSafe }

func (b *Base) ThreadRequirements() entities.ThreadRequirements { return b.Threads }

// Initialize keeps host for Host and Logf. Embedders overriding it should
// call it first.
func (b *Base) Initialize(_ context.Context, host ports.HostServices) error {
	if host == nil {
		return errors.New(errors.CodeNullPointer, "nil host services")
	}
	b.mu.Lock()
	b.host = host
	b.mu.Unlock()
	return nil
}

// Uninitialize drops the host services.
func (b *Base) Uninitialize(context.Context) error {
	b.mu.Lock()
	b.host = nil
	b.mu.Unlock()
	return nil
}

// Host returns the services handed to Initialize, or nil.
func (b *Base) Host() ports.HostServices {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.host
}

// Language is the host's system language, or the default before
// Initialize.
func (b *Base) Language() entities.Language {
	if h := b.Host(); h != nil {
		return h.SystemLanguage()
	}
	return entities.DefaultLanguage
}

// Logf formats a message and sends it to the host log service under the
// plugin's English name. It is a no-op before Initialize.
func (b *Base) Logf(level entities.LogLevel, format string, args ...any) {
	h := b.Host()
	if h == nil {
		return
	}
	h.Log(level, b.Name(entities.LanguageEnUS), fmt.Sprintf(format, args...))
}

// State resolves the host's key/value store for this module.
func (b *Base) State(ctx context.Context) (ports.StateStore, error) {
	obj, err := b.hostInterface(ctx, entities.CapabilityState)
	if err != nil {
		return nil, err
	}
	store, ok := obj.(ports.StateStore)
	if !ok {
		return nil, errors.Newf(errors.CodeInterfaceNotSupported, "host state service has type %T", obj)
	}
	return store, nil
}

// Manager resolves the manager service of the instance's parent.
func (b *Base) Manager(ctx context.Context) (ports.ManagerService, error) {
	obj, err := b.hostInterface(ctx, entities.CapabilityManager)
	if err != nil {
		return nil, err
	}
	svc, ok := obj.(ports.ManagerService)
	if !ok {
		return nil, errors.Newf(errors.CodeInterfaceNotSupported, "host manager service has type %T", obj)
	}
	return svc, nil
}

func (b *Base) hostInterface(ctx context.Context, capability entities.Capability) (any, error) {
	h := b.Host()
	if h == nil {
		return nil, errors.New(errors.CodeNotInitialized, "plugin not initialized")
	}
	return h.HostInterface(ctx, capability, 1)
}

// Texts builds a LocalizedText from tag/text pairs. It panics on an odd
// argument count or a malformed tag.
func Texts(pairs ...string) entities.LocalizedText {
	if len(pairs)%2 != 0 {
		panic("plugin: Texts needs tag/text pairs")
	}
	t := make(entities.LocalizedText, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		lang := entities.Language(pairs[i])
		if !lang.IsValid() {
			panic(fmt.Sprintf("plugin: invalid language tag %q", pairs[i]))
		}
		t[lang] = pairs[i+1]
	}
	return t
}
