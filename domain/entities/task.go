package entities

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/value"
)

// UnknownDuration marks an estimate the callee cannot provide.
const UnknownDuration = time.Duration(math.MaxInt64)

// UnknownProgress marks a progress ratio the callee cannot provide.
const UnknownProgress = -1.0

// TaskRequest is one unit of work. It is owned by the caller; in the
// asynchronous protocol ownership moves to the completion callback.
// A TaskRequest must not be copied after first use.
type TaskRequest struct {
	// UserData is opaque to the host and the callee.
	UserData any

	// Input is the payload. Release frees it.
	Input value.Value

	// RequestedAt is when the caller issued the request.
	RequestedAt time.Time

	// ID correlates asynchronous submissions. The host assigns one on
	// submission when it is empty.
	ID string

	// InputJSON carries auxiliary structured metadata.
	InputJSON string

	// Language is the caller's language tag.
	Language Language

	// Timeout bounds execution; zero means no limit.
	Timeout time.Duration

	// Caller identifies the requesting module.
	Caller UUID

	// Type classifies the work.
	Type TaskType

	released atomic.Bool
}

// NewTaskRequest creates a request stamped with the current time.
func NewTaskRequest(typ TaskType, input value.Value) *TaskRequest {
	return &TaskRequest{
		Type:        typ,
		Input:       input,
		Language:    DefaultLanguage,
		RequestedAt: time.Now(),
	}
}

// Release destroys the request: the input is freed exactly once, however
// many goroutines race to call it. It reports whether this call did the work.
func (r *TaskRequest) Release() bool {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return false
	}
	r.Input.Release()
	return true
}

// Released reports whether the request has been destroyed.
func (r *TaskRequest) Released() bool {
	return r == nil || r.released.Load()
}

// TaskResult is the callee's answer. Fields the callee allocates carry
// their own free capability; Release frees all of them.
type TaskResult struct {
	// CompletedAt is zero until the task completes.
	CompletedAt time.Time

	// Output is the callee-allocated payload.
	Output value.Value

	// OutputJSON carries structured output metadata.
	OutputJSON value.Text

	// ProgressMessage describes the current progress for humans.
	ProgressMessage value.Text

	// ProgressStage names the current stage.
	ProgressStage value.Text

	// Progress is in [0,1]; UnknownProgress when not reported.
	Progress float64

	// EstimatedRemaining is UnknownDuration when not reported.
	EstimatedRemaining time.Duration

	// Callee identifies the module that produced the result.
	Callee UUID

	// Status is the execution status.
	Status ExecutionStatus

	// Code is the result code.
	Code errors.Code
}

// NewTaskResult returns an empty result with every sentinel set.
func NewTaskResult() *TaskResult {
	return &TaskResult{
		Status:             StatusIdle,
		Progress:           UnknownProgress,
		EstimatedRemaining: UnknownDuration,
	}
}

// Complete marks the result completed successfully with output.
func (r *TaskResult) Complete(output value.Value) {
	r.Output = output
	r.Status = StatusCompleted
	r.Code = errors.CodeSuccess
	r.Progress = 1
	r.EstimatedRemaining = 0
	r.CompletedAt = time.Now()
}

// Fail marks the result failed with code.
func (r *TaskResult) Fail(code errors.Code) {
	r.Status = StatusError
	r.Code = code
	r.CompletedAt = time.Now()
}

// IsSuccess reports a success code with a completed or running status.
func (r *TaskResult) IsSuccess() bool {
	return r.Code.IsSuccess() && (r.Status == StatusCompleted || r.Status == StatusRunning)
}

// IsCompleted reports whether a completion time has been recorded.
func (r *TaskResult) IsCompleted() bool {
	return !r.CompletedAt.IsZero()
}

// HasProgress reports whether a progress ratio was supplied.
func (r *TaskResult) HasProgress() bool {
	return r.Progress >= 0
}

// HasEstimate reports whether a remaining-time estimate was supplied.
func (r *TaskResult) HasEstimate() bool {
	return r.EstimatedRemaining != UnknownDuration
}

// Release frees every callee-owned field.
func (r *TaskResult) Release() {
	if r == nil {
		return
	}
	r.Output.Release()
	r.OutputJSON.Release()
	r.ProgressMessage.Release()
	r.ProgressStage.Release()
}
