// Package errors provides the result-code taxonomy and the error types used
// across the host runtime. All error types support errors.As and errors.Is;
// a bare Code is a valid errors.Is target for any error carrying that code.
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"

	"github.com/reglet-dev/plughost/wireformat"
)

// Sentinel errors. Each carries a code so CodeOf reports it correctly.
var (
	ErrInvalidHandle     = &PluginError{Code: CodeInvalidParameter, Op: "invalid instance handle"}
	ErrInstanceMismatch  = &PluginError{Code: CodeInvalidParameter, Op: "table used with a different instance"}
	ErrMissingEntryPoint = &PluginError{Code: CodePluginLoadFailed, Op: "missing entry point"}
	ErrInvalidTransition = &PluginError{Code: CodeInvalidState, Op: "invalid state transition"}
	ErrClosed            = &PluginError{Code: CodeInvalidState, Op: "runtime closed"}
)

// PluginError is an error carrying a result code.
type PluginError struct {
	Err  error
	Op   string
	Code Code
}

// New returns a PluginError for op with no underlying cause.
func New(code Code, op string) error {
	return &PluginError{Code: code, Op: op}
}

// Newf is New with a formatted op description.
func Newf(code Code, format string, args ...any) error {
	return &PluginError{Code: code, Op: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with code and op. A nil err yields nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PluginError{Code: code, Op: op, Err: err}
}

func (e *PluginError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Op != "":
		return e.Op
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Code.String()
	}
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// Is matches a bare Code target against e's code.
func (e *PluginError) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// ToErrorDetail implements DetailedError.
func (e *PluginError) ToErrorDetail() *wireformat.ErrorDetail {
	return &wireformat.ErrorDetail{
		Message:    e.Error(),
		Type:       "plugin",
		Code:       strconv.Itoa(int(e.Code)),
		ResultCode: int32(e.Code),
		IsTimeout:  e.Code == CodeTimeout,
		IsNotFound: e.Code == CodePluginNotFound || e.Code == CodeFileNotFound,
	}
}

// CodeOf extracts the result code carried by err.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var pe *PluginError
	if stdErrors.As(err, &pe) {
		return pe.Code
	}
	var c Code
	if stdErrors.As(err, &c) {
		return c
	}
	var ce *CapabilityError
	if stdErrors.As(err, &ce) {
		return CodeInterfaceNotSupported
	}
	var cfg *ConfigError
	if stdErrors.As(err, &cfg) {
		return CodeValidation
	}
	switch {
	case stdErrors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case stdErrors.Is(err, context.Canceled):
		return CodeCancelled
	}
	return CodeUnknown
}

// FromCode converts a result code returned across the boundary into an error.
// Success and informational codes yield nil.
func FromCode(code Code, op string) error {
	if !code.IsError() {
		return nil
	}
	return &PluginError{Code: code, Op: op}
}

// DetailedError is implemented by error types that can describe themselves
// as a structured wire ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *wireformat.ErrorDetail
}

// ToErrorDetail converts a Go error to the structured wire ErrorDetail.
func ToErrorDetail(err error) *wireformat.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *wireformat.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	code := CodeOf(err)
	return &wireformat.ErrorDetail{
		Message:    err.Error(),
		Type:       "internal",
		ResultCode: int32(code),
		IsTimeout:  code == CodeTimeout,
	}
}

// FromErrorDetail rebuilds an error from a wire ErrorDetail.
func FromErrorDetail(d *wireformat.ErrorDetail) error {
	if d == nil {
		return nil
	}
	code := Code(d.ResultCode)
	if code == CodeSuccess {
		code = CodeUnknown
	}
	return &PluginError{Code: code, Op: d.Message}
}

// CapabilityError reports a capability bit an instance does not provide.
type CapabilityError struct {
	Err        error
	Capability string
	Version    uint32
}

func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("interface not supported: %s (version %d)", e.Capability, e.Version)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// Is matches CodeInterfaceNotSupported.
func (e *CapabilityError) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == CodeInterfaceNotSupported
}

// ToErrorDetail implements DetailedError.
func (e *CapabilityError) ToErrorDetail() *wireformat.ErrorDetail {
	return &wireformat.ErrorDetail{
		Message:    e.Error(),
		Type:       "capability",
		Code:       e.Capability,
		ResultCode: int32(CodeInterfaceNotSupported),
	}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches CodeValidation.
func (e *ConfigError) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == CodeValidation
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *wireformat.ErrorDetail {
	return &wireformat.ErrorDetail{
		Message:    e.Error(),
		Type:       "config",
		Code:       e.Field,
		ResultCode: int32(CodeValidation),
	}
}
