// Package rpc implements the JSON-RPC 2.0 envelope the worker speaks and a
// static method mux. The transport that carries the frames (message broker,
// HTTP bridge) is a collaborator; it feeds raw frames to Mux.Handle and
// ships the returned bytes back.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kunthar/zops-audience/pkg/logger"
)

const Version = "2.0"

// Reserved JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      string          `json:"id"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Result  any    `json:"result,omitempty"`
	Err     *Error `json:"error,omitempty"`
}

// HandlerFunc executes one named operation. Returned errors that are not
// *Error are reported as internal errors.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Mux dispatches frames to a closed set of named operations. The method
// table is built once at startup; registration of a duplicate name panics.
type Mux struct {
	methods map[string]HandlerFunc
	logger  logger.Logger
}

func NewMux(log logger.Logger) *Mux {
	return &Mux{
		methods: make(map[string]HandlerFunc),
		logger:  log,
	}
}

func (m *Mux) Register(method string, handler HandlerFunc) {
	if _, ok := m.methods[method]; ok {
		panic("rpc: method registered twice: " + method)
	}
	m.methods[method] = handler
}

// Methods lists the registered method names.
func (m *Mux) Methods() []string {
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	return names
}

// Handle processes one raw frame and always produces a response frame, so
// the transport can reply unconditionally.
func (m *Mux) Handle(ctx context.Context, frame []byte) []byte {
	if !gjson.ValidBytes(frame) {
		return m.fail("", NewError(CodeParseError, "invalid JSON"))
	}

	// Peek before the full decode so even a structurally odd frame gets a
	// response carrying its id.
	id := gjson.GetBytes(frame, "id").String()
	method := gjson.GetBytes(frame, "method").String()

	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return m.fail(id, NewError(CodeInvalidRequest, err.Error()))
	}
	if req.JSONRPC != Version {
		return m.fail(id, NewError(CodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC)))
	}

	handler, ok := m.methods[method]
	if !ok {
		return m.fail(id, NewError(CodeMethodNotFound, fmt.Sprintf("unknown method %q", method)))
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		rpcErr, ok := err.(*Error)
		if !ok {
			m.logger.Error("rpc handler failed",
				zap.String("method", method),
				zap.String("id", id),
				zap.Error(err))
			rpcErr = NewError(CodeInternalError, err.Error())
		}
		return m.fail(id, rpcErr)
	}

	return m.reply(Response{JSONRPC: Version, ID: id, Result: result})
}

func (m *Mux) fail(id string, rpcErr *Error) []byte {
	return m.reply(Response{JSONRPC: Version, ID: id, Err: rpcErr})
}

func (m *Mux) reply(resp Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		// Only reachable with an unmarshalable handler result.
		m.logger.Error("encoding rpc response", zap.Error(err))
		out, _ = json.Marshal(Response{
			JSONRPC: Version,
			ID:      resp.ID,
			Err:     NewError(CodeInternalError, "unencodable response"),
		})
	}
	return out
}
