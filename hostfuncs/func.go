package hostfuncs

import (
	"context"
	"encoding/json"

	"github.com/reglet-dev/plughost/domain/errors"
)

// Func is a host function. It takes a JSON request and returns a JSON
// response; a returned error reaches the guest as a Fault.
type Func func(ctx context.Context, request []byte) ([]byte, error)

// Typed adapts fn to a Func. An empty request decodes as the zero Req.
func Typed[Req, Resp any](fn func(context.Context, Req) (Resp, error)) Func {
	return func(ctx context.Context, request []byte) ([]byte, error) {
		var req Req
		if len(request) > 0 {
			if err := json.Unmarshal(request, &req); err != nil {
				return nil, Invalid("malformed request: %v", err)
			}
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return nil, errors.Wrap(errors.CodeEncoding, "encode response", err)
		}
		return out, nil
	}
}
