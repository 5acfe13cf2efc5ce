package ports

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
)

// Plugin is the object a module's create entry point returns. Every
// instance implements it; capability interfaces are resolved from it
// through the module's get-interface entry point.
type Plugin interface {
	// Name returns the display name in lang.
	Name(lang entities.Language) string

	// Description returns the description in lang.
	Description(lang entities.Language) string

	// IsThreadSafe reports whether the instance may be entered concurrently.
	IsThreadSafe() bool

	// ThreadRequirements returns the scheduling constraints of the instance.
	ThreadRequirements() entities.ThreadRequirements

	// Initialize prepares the instance. The host guards the initialized
	// flag, so Initialize runs at most once per Uninitialize.
	Initialize(ctx context.Context, host HostServices) error

	// Uninitialize releases what Initialize acquired.
	Uninitialize(ctx context.Context) error
}

// SingleTask is the synchronous execution interface.
type SingleTask interface {
	// Execute runs req to completion and fills res. Owned fields of res are
	// allocated with a free capability and transferred to the caller.
	Execute(ctx context.Context, req *entities.TaskRequest, res *entities.TaskResult) error
}

// CompletionFunc delivers an asynchronous result. The callee owns res and
// may free it once the function returns. Only the first call has effect.
type CompletionFunc func(res *entities.TaskResult)

// AsyncTask is the asynchronous execution interface.
type AsyncTask interface {
	// ExecuteAsync accepts req and returns without waiting. The callee
	// calls done exactly once when the work ends, from any goroutine.
	// ctx is cancelled when the host cancels the request.
	ExecuteAsync(ctx context.Context, req *entities.TaskRequest, done CompletionFunc) error

	// CancelAsync asks the callee to stop req cooperatively.
	CancelAsync(ctx context.Context, req *entities.TaskRequest) error
}

// FaultFunc is handed to a resident plugin at start. Calling it moves the
// plugin to the error state.
type FaultFunc func(err error)

// Resident is the long-running state machine interface. The host owns the
// status; each hook runs only for a transition the host has validated.
type Resident interface {
	Configuration() string
	UpdateConfiguration(ctx context.Context, config string) error

	Start(ctx context.Context, fault FaultFunc) error
	Suspend(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// FormatProvider is optionally implemented by plugins that declare the
// data formats they consume and produce.
type FormatProvider interface {
	SupportedFormats() (input, output []string)
}

// Matcher is a manager's task matching policy.
type Matcher interface {
	// Match returns the candidates able to serve desc, in preference order.
	Match(ctx context.Context, desc *entities.TaskDescriptor, candidates []entities.Candidate) ([]entities.InstanceID, error)
}
