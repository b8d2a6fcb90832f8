// Package errors maps the engine's failure taxonomy onto the JSON-RPC error
// objects the worker returns.
package errors

import (
	"errors"

	"github.com/kunthar/zops-audience/internal/audience"
	"github.com/kunthar/zops-audience/internal/expression"
	"github.com/kunthar/zops-audience/pkg/rpc"
	"github.com/kunthar/zops-audience/pkg/storage"
)

// Implementation-defined server error codes, inside the JSON-RPC reserved
// range.
const (
	CodeMalformedExpression = -32000
	CodeInvalidResidency    = -32001
	CodeMissingTagMetadata  = -32002
	CodeNotFound            = -32003
)

// FromError converts a core error into its wire form. Unrecognized errors
// pass through unchanged and surface as internal errors.
func FromError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, expression.ErrMalformed):
		return rpc.NewError(CodeMalformedExpression, err.Error())
	case errors.Is(err, audience.ErrInvalidResidency):
		return rpc.NewError(CodeInvalidResidency, err.Error())
	case errors.Is(err, audience.ErrMissingTagMetadata):
		return rpc.NewError(CodeMissingTagMetadata, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return rpc.NewError(CodeNotFound, err.Error())
	default:
		return err
	}
}
