// Package wireformat defines the JSON wire format structures for communication
// between the host and WebAssembly plugin modules. These types must remain
// stable and backward compatible as they define the ABI contract.
package wireformat

import (
	"encoding/json"
	"fmt"
)

// Invoke methods understood by plugin_invoke.
const (
	MethodName               = "name"
	MethodDescription        = "description"
	MethodIsThreadSafe       = "is_thread_safe"
	MethodThreadRequirements = "thread_requirements"
	MethodInitialize         = "initialize"
	MethodUninitialize       = "uninitialize"
	MethodExecute            = "execute"
	MethodCancel             = "cancel"
)

// InvokeRequestWire is the JSON wire format for a host-to-guest instance call.
type InvokeRequestWire struct {
	Request  *TaskRequestWire `json:"request,omitempty"`
	Method   string           `json:"method"`
	Language string           `json:"language,omitempty"`
}

// InvokeResponseWire is the JSON wire format for a guest reply to InvokeRequestWire.
type InvokeResponseWire struct {
	Error        *ErrorDetail    `json:"error,omitempty"`
	Result       *TaskResultWire `json:"result,omitempty"`
	Text         string          `json:"text,omitempty"`
	Code         int32           `json:"code"`
	Requirements uint32          `json:"requirements,omitempty"`
	Bool         bool            `json:"bool,omitempty"`
}

// TaskRequestWire is the JSON wire format for a TaskRequest.
type TaskRequestWire struct {
	Input         *ValueWire `json:"input,omitempty"`
	ID            string     `json:"id,omitempty"`
	Caller        string     `json:"caller,omitempty"`
	InputJSON     string     `json:"input_json,omitempty"`
	Language      string     `json:"language,omitempty"`
	RequestTimeUs uint64     `json:"request_time_us,omitempty"`
	TimeoutUs     uint64     `json:"timeout_us,omitempty"`
	TaskType      uint32     `json:"task_type"`
}

// TaskResultWire is the JSON wire format for a TaskResult. Sentinels follow
// the boundary convention: completion_time_us 0 means not completed,
// progress_ratio below zero means unknown.
type TaskResultWire struct {
	Output                *ValueWire `json:"output,omitempty"`
	Callee                string     `json:"callee,omitempty"`
	OutputJSON            string     `json:"output_json,omitempty"`
	ProgressMessage       string     `json:"progress_message,omitempty"`
	ProgressStage         string     `json:"progress_stage,omitempty"`
	CompletionTimeUs      uint64     `json:"completion_time_us,omitempty"`
	EstimatedRemainingUs  *uint64    `json:"estimated_remaining_us,omitempty"`
	ProgressRatio         float64    `json:"progress_ratio"`
	Status                uint32     `json:"status"`
	ErrorCode             int32      `json:"error_code"`
}

// ValueWire is the JSON wire format for a tagged value.
type ValueWire struct {
	Bool   *bool           `json:"bool,omitempty"`
	Int    *int64          `json:"int,omitempty"`
	Uint   *uint64         `json:"uint,omitempty"`
	Float  *float64        `json:"float,omitempty"`
	String *string         `json:"string,omitempty"`
	Custom json.RawMessage `json:"custom,omitempty"`
	Buffer []byte          `json:"buffer,omitempty"`
	Items  []ValueWire     `json:"items,omitempty"`
	Kind   uint32          `json:"kind"`
}

// SystemLanguageWire is the JSON reply of the system_language host function.
type SystemLanguageWire struct {
	Language string `json:"language"`
}

// ErrorDetail provides structured error information, consistent across host and guest.
// Error Types: "plugin", "capability", "config", "panic", "validation", "internal"
type ErrorDetail struct {
	Wrapped    *ErrorDetail `json:"wrapped,omitempty"`
	Message    string       `json:"message"`
	Type       string       `json:"type"`
	Code       string       `json:"code"`
	Stack      []byte       `json:"stack,omitempty"`
	ResultCode int32        `json:"result_code,omitempty"`
	IsTimeout  bool         `json:"is_timeout,omitempty"`
	IsNotFound bool         `json:"is_not_found,omitempty"`
}

// Error implements the error interface for ErrorDetail.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}
