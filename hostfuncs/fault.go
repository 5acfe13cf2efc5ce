package hostfuncs

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/plughost/domain/errors"
)

// Fault kinds.
const (
	KindInvalid         = "invalid_request"
	KindUnknownFunction = "unknown_function"
	KindPanic           = "panic"
	KindFailed          = "failed"
)

// Fault is the response body a guest receives when a host function fails.
// Host-side failures never trap the guest.
type Fault struct {
	Code    errors.Code `json:"code"`
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
}

func (f *Fault) Error() string { return f.Kind + ": " + f.Message }

// Unwrap exposes the result code to errors.CodeOf.
func (f *Fault) Unwrap() error { return f.Code }

// Bytes encodes f as JSON.
func (f *Fault) Bytes() []byte {
	data, _ := json.Marshal(f)
	return data
}

// Invalid reports a request the host cannot accept.
func Invalid(format string, args ...any) *Fault {
	return &Fault{Code: errors.CodeValidation, Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// UnknownFunction reports a call to a name the registry does not hold.
func UnknownFunction(name string) *Fault {
	return &Fault{Code: errors.CodeNotSupported, Kind: KindUnknownFunction, Message: "unknown host function " + name}
}

// Panicked reports a recovered panic value.
func Panicked(v any) *Fault {
	return &Fault{Code: errors.CodeThreadPanic, Kind: KindPanic, Message: fmt.Sprint(v)}
}

// FaultOf converts err for the guest. A Fault in err's chain is returned
// as is; any other error keeps its result code.
func FaultOf(err error) *Fault {
	var f *Fault
	if stdErrors.As(err, &f) {
		return f
	}
	return &Fault{Code: errors.CodeOf(err), Kind: KindFailed, Message: err.Error()}
}
