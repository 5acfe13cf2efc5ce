package host

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/hostfuncs"
	"github.com/reglet-dev/plughost/infrastructure/statestore"
	"github.com/reglet-dev/plughost/log"
)

// hostServices is what one instance receives at initialize.
type hostServices struct {
	rt   *Runtime
	inst *instance
}

func newHostServices(rt *Runtime, inst *instance) *hostServices {
	return &hostServices{rt: rt, inst: inst}
}

func (s *hostServices) Log(level entities.LogLevel, source, message string) {
	s.rt.sink.Log(context.Background(), s.inst.module.path, level, source, message)
}

// LogWire keeps the attributes of a record sent by a wasm guest.
func (s *hostServices) LogWire(ctx context.Context, msg log.LogMessageWire) {
	s.rt.sink.LogWire(ctx, s.inst.module.path, msg)
}

func (s *hostServices) SystemLanguage() entities.Language {
	return s.rt.config.language
}

func (s *hostServices) HostInterface(_ context.Context, capability entities.Capability, version uint32) (any, error) {
	if version != InterfaceVersion {
		return nil, errors.Newf(errors.CodeVersionMismatch, "host %s interface version %d", capability, version)
	}
	switch capability {
	case entities.CapabilityManager:
		return ports.ManagerService(s.inst.parent), nil
	case entities.CapabilityState:
		return statestore.NewStore(s.rt.state, s.inst.module.uuid.String()), nil
	}
	return nil, &errors.CapabilityError{Capability: capability.String(), Version: version}
}

var (
	_ ports.HostServices   = (*hostServices)(nil)
	_ hostfuncs.WireLogger = (*hostServices)(nil)
)
