package mapper

import (
	"github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"go.lsp.dev/jsonrpc2"
)

// ErrorToJSONRPC maps a dispatch failure to a JSON-RPC error carrying its stable code.
// Errors without a known code pass through unchanged.
func ErrorToJSONRPC(err error) error {
	if err == nil {
		return nil
	}
	if code, ok := errors.ResultCode(err); ok {
		return jsonrpc2.NewError(jsonrpc2.Code(code), err.Error())
	}
	if errors.IsBadRequest(err) {
		return jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
	}
	return err
}
