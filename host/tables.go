package host

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/manager"
	"github.com/reglet-dev/plughost/value"
)

// Table is a capability interface bound to one instance. The variants are
// *SingleTaskTable, *AsyncTaskTable, *ResidentTable, *StateTable and
// *ManagerTable; no other type implements it.
//
// Every method takes the id of the calling instance. A table only accepts
// the id it was bound to, and only while that instance is alive.
type Table interface {
	Capability() entities.Capability
	Version() uint32
	Instance() entities.InstanceID
	sealed()
}

type tableBase struct {
	rt         *Runtime
	token      entities.InstanceID
	capability entities.Capability
	version    uint32
}

func (b *tableBase) Capability() entities.Capability { return b.capability }
func (b *tableBase) Version() uint32                 { return b.version }
func (b *tableBase) Instance() entities.InstanceID   { return b.token }
func (b *tableBase) sealed()                         {}

func (b *tableBase) check(caller entities.InstanceID) (*instance, error) {
	if caller != b.token {
		return nil, errors.ErrInstanceMismatch
	}
	return b.rt.lookup(caller)
}

// SingleTaskTable is the synchronous execution table.
type SingleTaskTable struct {
	task ports.SingleTask
	tableBase
}

// Execute runs req to completion. See Runtime.Execute.
func (t *SingleTaskTable) Execute(ctx context.Context, caller entities.InstanceID, req *entities.TaskRequest, res *entities.TaskResult) error {
	inst, err := t.check(caller)
	if err != nil {
		return err
	}
	return t.rt.execute(ctx, inst, t.task, req, res)
}

// AsyncTaskTable is the asynchronous execution table.
type AsyncTaskTable struct {
	task ports.AsyncTask
	tableBase
}

// Execute submits req. See Runtime.ExecuteAsync.
func (t *AsyncTaskTable) Execute(ctx context.Context, caller entities.InstanceID, req *entities.TaskRequest, cb ports.TaskCallback) error {
	inst, err := t.check(caller)
	if err != nil {
		return err
	}
	return t.rt.executeAsync(ctx, inst, t.task, req, cb)
}

// Cancel cancels a pending submission. See Runtime.Cancel.
func (t *AsyncTaskTable) Cancel(ctx context.Context, caller entities.InstanceID, req *entities.TaskRequest) error {
	inst, err := t.check(caller)
	if err != nil {
		return err
	}
	return t.rt.cancel(ctx, inst, t.task, req)
}

// ResidentTable drives a resident plugin's state machine. Cancel is not
// part of it; the host cancels through Runtime.CancelResident.
type ResidentTable struct {
	ctl *residentController
	tableBase
}

// Status returns the host-held status.
func (t *ResidentTable) Status(caller entities.InstanceID) (entities.ExecutionStatus, error) {
	if _, err := t.check(caller); err != nil {
		return entities.StatusIdle, err
	}
	return t.ctl.machine.State(), nil
}

// Configuration returns the plugin's current configuration.
func (t *ResidentTable) Configuration(ctx context.Context, caller entities.InstanceID) (string, error) {
	if _, err := t.check(caller); err != nil {
		return "", err
	}
	return t.ctl.configuration(ctx)
}

// UpdateConfiguration passes config to the plugin in any state.
func (t *ResidentTable) UpdateConfiguration(ctx context.Context, caller entities.InstanceID, config string) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.ctl.updateConfiguration(ctx, config)
}

// Start moves idle to running.
func (t *ResidentTable) Start(ctx context.Context, caller entities.InstanceID) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.ctl.start(ctx)
}

// Suspend moves running to suspended.
func (t *ResidentTable) Suspend(ctx context.Context, caller entities.InstanceID) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.ctl.suspend(ctx)
}

// Resume moves suspended to running.
func (t *ResidentTable) Resume(ctx context.Context, caller entities.InstanceID) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.ctl.resume(ctx)
}

// Stop moves running or suspended to completed.
func (t *ResidentTable) Stop(ctx context.Context, caller entities.InstanceID) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.ctl.stop(ctx)
}

// Reset moves a finished plugin back to idle.
func (t *ResidentTable) Reset(ctx context.Context, caller entities.InstanceID) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.ctl.reset(ctx)
}

// StateTable exposes a plugin-provided state store.
type StateTable struct {
	store ports.StateStore
	tableBase
}

func (t *StateTable) call(ctx context.Context, caller entities.InstanceID, op string, fn func(ctx context.Context) error) error {
	inst, err := t.check(caller)
	if err != nil {
		return err
	}
	return t.rt.dispatch(ctx, inst, "state_"+op, fn)
}

// Format names the store's serialization.
func (t *StateTable) Format(ctx context.Context, caller entities.InstanceID) (string, error) {
	var out string
	err := t.call(ctx, caller, "format", func(context.Context) error {
		out = t.store.Format()
		return nil
	})
	return out, err
}

// Load replaces scope with data.
func (t *StateTable) Load(ctx context.Context, caller entities.InstanceID, scope entities.StateScope, data []byte) error {
	return t.call(ctx, caller, "load", func(ctx context.Context) error {
		return t.store.Load(ctx, scope, data)
	})
}

// Save serializes scope.
func (t *StateTable) Save(ctx context.Context, caller entities.InstanceID, scope entities.StateScope) ([]byte, error) {
	var out []byte
	err := t.call(ctx, caller, "save", func(ctx context.Context) error {
		var err error
		out, err = t.store.Save(ctx, scope)
		return err
	})
	return out, err
}

// Get returns a caller-owned copy of the value under key.
func (t *StateTable) Get(ctx context.Context, caller entities.InstanceID, scope entities.StateScope, key string) (value.Value, bool, error) {
	var (
		out value.Value
		ok  bool
	)
	err := t.call(ctx, caller, "get", func(ctx context.Context) error {
		var err error
		out, ok, err = t.store.Get(ctx, scope, key)
		return err
	})
	return out, ok, err
}

// Set stores a copy of v under key.
func (t *StateTable) Set(ctx context.Context, caller entities.InstanceID, scope entities.StateScope, key string, v value.Value) error {
	return t.call(ctx, caller, "set", func(ctx context.Context) error {
		return t.store.Set(ctx, scope, key, v)
	})
}

// List returns the keys of scope.
func (t *StateTable) List(ctx context.Context, caller entities.InstanceID, scope entities.StateScope) ([]string, error) {
	var out []string
	err := t.call(ctx, caller, "list", func(ctx context.Context) error {
		var err error
		out, err = t.store.List(ctx, scope)
		return err
	})
	return out, err
}

// Clear removes every key of scope.
func (t *StateTable) Clear(ctx context.Context, caller entities.InstanceID, scope entities.StateScope) error {
	return t.call(ctx, caller, "clear", func(ctx context.Context) error {
		return t.store.Clear(ctx, scope)
	})
}

// ManagerTable exposes the router node owned by a manager instance.
type ManagerTable struct {
	node *manager.Router
	tableBase
}

// AllPluginsBasicInfo lists the node's subtree.
func (t *ManagerTable) AllPluginsBasicInfo(ctx context.Context, caller entities.InstanceID, lang entities.Language) (value.List[entities.BasicInfo], error) {
	if _, err := t.check(caller); err != nil {
		return value.List[entities.BasicInfo]{}, err
	}
	return t.node.AllPluginsBasicInfo(ctx, lang)
}

// PluginDetailedInfo describes id as JSON.
func (t *ManagerTable) PluginDetailedInfo(ctx context.Context, caller, id entities.InstanceID, lang entities.Language) (value.Text, error) {
	if _, err := t.check(caller); err != nil {
		return value.Text{}, err
	}
	return t.node.PluginDetailedInfo(ctx, id, lang)
}

// FindPluginsForTask matches a descriptor against the node's subtree.
func (t *ManagerTable) FindPluginsForTask(ctx context.Context, caller entities.InstanceID, descriptorJSON string) (value.List[entities.InstanceID], error) {
	if _, err := t.check(caller); err != nil {
		return value.List[entities.InstanceID]{}, err
	}
	return t.node.FindPluginsForTask(ctx, descriptorJSON)
}

// IsPluginAlive reports whether id is reachable and alive.
func (t *ManagerTable) IsPluginAlive(ctx context.Context, caller, id entities.InstanceID) (bool, error) {
	if _, err := t.check(caller); err != nil {
		return false, err
	}
	return t.node.IsPluginAlive(ctx, id), nil
}

// ExecuteTask runs req synchronously on id.
func (t *ManagerTable) ExecuteTask(ctx context.Context, caller, id entities.InstanceID, req *entities.TaskRequest, res *entities.TaskResult) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.node.ExecuteTask(ctx, id, req, res)
}

// ExecuteAsyncTask submits req to id.
func (t *ManagerTable) ExecuteAsyncTask(ctx context.Context, caller, id entities.InstanceID, req *entities.TaskRequest, cb ports.TaskCallback) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.node.ExecuteAsyncTask(ctx, id, req, cb)
}

// CancelAsyncTask cancels a pending submission on id.
func (t *ManagerTable) CancelAsyncTask(ctx context.Context, caller, id entities.InstanceID, req *entities.TaskRequest) error {
	if _, err := t.check(caller); err != nil {
		return err
	}
	return t.node.CancelAsyncTask(ctx, id, req)
}

var (
	_ Table = (*SingleTaskTable)(nil)
	_ Table = (*AsyncTaskTable)(nil)
	_ Table = (*ResidentTable)(nil)
	_ Table = (*StateTable)(nil)
	_ Table = (*ManagerTable)(nil)
)
