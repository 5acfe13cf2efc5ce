package ports

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/value"
)

// HostServices are the services the host offers an instance at initialize.
type HostServices interface {
	// Log forwards a message to the host log sink.
	Log(level entities.LogLevel, source, message string)

	// SystemLanguage returns the host's configured language.
	SystemLanguage() entities.Language

	// HostInterface resolves a host-side interface. The Manager capability
	// yields the instance's parent ManagerService and the State capability
	// yields a StateStore. Anything else is not supported.
	HostInterface(ctx context.Context, capability entities.Capability, version uint32) (any, error)
}

// TaskCallback receives an asynchronous result. Ownership of req moves to
// the callback; the host releases req after it returns.
type TaskCallback func(req *entities.TaskRequest, res *entities.TaskResult)

// ManagerService discovers and dispatches work across a manager subtree.
type ManagerService interface {
	AllPluginsBasicInfo(ctx context.Context, lang entities.Language) (value.List[entities.BasicInfo], error)
	PluginDetailedInfo(ctx context.Context, id entities.InstanceID, lang entities.Language) (value.Text, error)
	FindPluginsForTask(ctx context.Context, descriptorJSON string) (value.List[entities.InstanceID], error)
	IsPluginAlive(ctx context.Context, id entities.InstanceID) bool
	ExecuteTask(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, res *entities.TaskResult) error
	ExecuteAsyncTask(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, cb TaskCallback) error
	CancelAsyncTask(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest) error
}
