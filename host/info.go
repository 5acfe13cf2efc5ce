package host

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/manager"
)

func (rt *Runtime) texts(ctx context.Context, inst *instance, lang entities.Language) (name, description string) {
	lang = lang.OrDefault()
	name = query(rt, ctx, inst, "name", func() string { return inst.plugin.Name(lang) })
	if name == "" {
		name = entities.DefaultPluginName
	}
	description = query(rt, ctx, inst, "description", func() string { return inst.plugin.Description(lang) })
	if description == "" {
		description = entities.DefaultPluginDescription
	}
	return name, description
}

// BasicInfo summarizes id in lang.
func (rt *Runtime) BasicInfo(ctx context.Context, id entities.InstanceID, lang entities.Language) (entities.BasicInfo, error) {
	inst, err := rt.lookup(id)
	if err != nil {
		return entities.BasicInfo{}, err
	}
	name, description := rt.texts(ctx, inst, lang)
	return entities.BasicInfo{
		Name:           name,
		Description:    description,
		Version:        inst.module.version,
		Instance:       id,
		SupportedTypes: inst.module.supported,
		UUID:           inst.module.uuid,
	}, nil
}

// DetailedInfo describes id in lang.
func (rt *Runtime) DetailedInfo(ctx context.Context, id entities.InstanceID, lang entities.Language) (entities.DetailedInfo, error) {
	inst, err := rt.lookup(id)
	if err != nil {
		return entities.DetailedInfo{}, err
	}
	m := inst.module
	name, description := rt.texts(ctx, inst, lang)
	return entities.DetailedInfo{
		Name:               name,
		Description:        description,
		Path:               m.path,
		Version:            m.version.String(),
		SDKVersion:         m.sdkVersion.String(),
		UUID:               m.uuid.String(),
		Capabilities:       m.supported.Names(),
		ThreadRequirements: inst.requirements.Names(),
		Instance:           id,
		SupportedTypes:     m.supported,
		Loaded:             m.IsLoaded(),
		Initialized:        inst.isInitialized(),
		ThreadSafe:         inst.threadSafe,
	}, nil
}

// Candidate describes id for task matching.
func (rt *Runtime) Candidate(ctx context.Context, id entities.InstanceID, lang entities.Language) (entities.Candidate, error) {
	inst, err := rt.lookup(id)
	if err != nil {
		return entities.Candidate{}, err
	}
	name, _ := rt.texts(ctx, inst, lang)
	c := entities.Candidate{
		Name:           name,
		Instance:       id,
		SupportedTypes: inst.module.supported,
		UUID:           inst.module.uuid,
		ThreadSafe:     inst.threadSafe,
	}
	if fp, ok := inst.plugin.(ports.FormatProvider); ok {
		formats := query(rt, ctx, inst, "supported_formats", func() [2][]string {
			in, out := fp.SupportedFormats()
			return [2][]string{in, out}
		})
		c.InputFormats, c.OutputFormats = formats[0], formats[1]
	}
	return c, nil
}

var _ manager.Dispatcher = (*Runtime)(nil)
