package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/value"
	"github.com/reglet-dev/plughost/wireformat"
)

// ToWire converts the request to its JSON wire form.
func (r *TaskRequest) ToWire() (wireformat.TaskRequestWire, error) {
	w := wireformat.TaskRequestWire{
		ID:        r.ID,
		InputJSON: r.InputJSON,
		Language:  string(r.Language),
		TaskType:  uint32(r.Type),
	}
	if !r.RequestedAt.IsZero() {
		w.RequestTimeUs = uint64(r.RequestedAt.UnixMicro())
	}
	if r.Timeout > 0 {
		w.TimeoutUs = uint64(r.Timeout.Microseconds())
	}
	if r.Caller != uuid.Nil {
		w.Caller = r.Caller.String()
	}
	if !r.Input.IsNull() {
		in, err := value.ToWire(r.Input)
		if err != nil {
			return w, errors.Wrap(errors.CodeEncoding, "encode task input", err)
		}
		w.Input = &in
	}
	return w, nil
}

// TaskRequestFromWire rebuilds a request received across the wasm boundary.
func TaskRequestFromWire(w wireformat.TaskRequestWire) (*TaskRequest, error) {
	r := &TaskRequest{
		ID:        w.ID,
		InputJSON: w.InputJSON,
		Language:  ParseLanguage(w.Language),
		Type:      TaskType(w.TaskType),
		Timeout:   time.Duration(w.TimeoutUs) * time.Microsecond,
	}
	if w.RequestTimeUs > 0 {
		r.RequestedAt = time.UnixMicro(int64(w.RequestTimeUs))
	}
	if w.Caller != "" {
		id, err := ParseUUID(w.Caller)
		if err != nil {
			return nil, errors.Wrap(errors.CodeParse, "decode caller", err)
		}
		r.Caller = id
	}
	if w.Input != nil {
		in, err := value.FromWire(*w.Input)
		if err != nil {
			return nil, errors.Wrap(errors.CodeParse, "decode task input", err)
		}
		r.Input = in
	}
	return r, nil
}

// ToWire converts the result to its JSON wire form.
func (r *TaskResult) ToWire() (wireformat.TaskResultWire, error) {
	w := wireformat.TaskResultWire{
		OutputJSON:      r.OutputJSON.String(),
		ProgressMessage: r.ProgressMessage.String(),
		ProgressStage:   r.ProgressStage.String(),
		ProgressRatio:   r.Progress,
		Status:          uint32(r.Status),
		ErrorCode:       int32(r.Code),
	}
	if !r.CompletedAt.IsZero() {
		w.CompletionTimeUs = uint64(r.CompletedAt.UnixMicro())
	}
	if r.HasEstimate() {
		us := uint64(r.EstimatedRemaining.Microseconds())
		w.EstimatedRemainingUs = &us
	}
	if r.Callee != uuid.Nil {
		w.Callee = r.Callee.String()
	}
	if !r.Output.IsNull() {
		out, err := value.ToWire(r.Output)
		if err != nil {
			return w, errors.Wrap(errors.CodeEncoding, "encode task output", err)
		}
		w.Output = &out
	}
	return w, nil
}

// ApplyWire fills r from a wire result. Text and value fields become
// host-owned copies, so Release on them needs no foreign free.
func (r *TaskResult) ApplyWire(w wireformat.TaskResultWire) error {
	r.Status = ExecutionStatus(w.Status)
	r.Code = errors.Code(w.ErrorCode)
	r.Progress = w.ProgressRatio
	r.EstimatedRemaining = UnknownDuration
	if w.EstimatedRemainingUs != nil {
		r.EstimatedRemaining = time.Duration(*w.EstimatedRemainingUs) * time.Microsecond
	}
	if w.CompletionTimeUs > 0 {
		r.CompletedAt = time.UnixMicro(int64(w.CompletionTimeUs))
	}
	if w.OutputJSON != "" {
		r.OutputJSON = value.NewText(w.OutputJSON)
	}
	if w.ProgressMessage != "" {
		r.ProgressMessage = value.NewText(w.ProgressMessage)
	}
	if w.ProgressStage != "" {
		r.ProgressStage = value.NewText(w.ProgressStage)
	}
	if w.Callee != "" {
		id, err := ParseUUID(w.Callee)
		if err != nil {
			return errors.Wrap(errors.CodeParse, "decode callee", err)
		}
		r.Callee = id
	}
	if w.Output != nil {
		out, err := value.FromWire(*w.Output)
		if err != nil {
			return errors.Wrap(errors.CodeParse, "decode task output", err)
		}
		r.Output = out
	}
	return nil
}
