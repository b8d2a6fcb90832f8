package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunthar/zops-audience/pkg/logger"
)

func decodeResponse(t *testing.T, frame []byte) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(frame, &resp))
	require.Equal(t, Version, resp.JSONRPC)
	return resp
}

func TestMuxDispatch(t *testing.T) {
	mux := NewMux(logger.NewNoopLogger())
	mux.Register("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var in map[string]string
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, NewError(CodeInvalidParams, err.Error())
		}
		return in, nil
	})

	out := mux.Handle(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"1","method":"echo","params":{"k":"v"}}`))

	resp := decodeResponse(t, out)
	require.Equal(t, "1", resp.ID)
	require.Nil(t, resp.Err)
	require.Equal(t, map[string]any{"k": "v"}, resp.Result)
}

func TestMuxInvalidJSON(t *testing.T) {
	mux := NewMux(logger.NewNoopLogger())

	resp := decodeResponse(t, mux.Handle(context.Background(), []byte(`{"jsonrpc":`)))
	require.NotNil(t, resp.Err)
	require.Equal(t, CodeParseError, resp.Err.Code)
}

func TestMuxUnknownMethod(t *testing.T) {
	mux := NewMux(logger.NewNoopLogger())

	resp := decodeResponse(t, mux.Handle(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"5","method":"nope"}`)))
	require.NotNil(t, resp.Err)
	require.Equal(t, CodeMethodNotFound, resp.Err.Code)
	require.Equal(t, "5", resp.ID)
}

func TestMuxVersionCheck(t *testing.T) {
	mux := NewMux(logger.NewNoopLogger())
	mux.Register("echo", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, nil
	})

	resp := decodeResponse(t, mux.Handle(context.Background(),
		[]byte(`{"jsonrpc":"1.0","id":"2","method":"echo"}`)))
	require.NotNil(t, resp.Err)
	require.Equal(t, CodeInvalidRequest, resp.Err.Code)
}

func TestMuxInternalError(t *testing.T) {
	mux := NewMux(logger.NewNoopLogger())
	mux.Register("boom", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, errors.New("backend down")
	})

	resp := decodeResponse(t, mux.Handle(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"3","method":"boom"}`)))
	require.NotNil(t, resp.Err)
	require.Equal(t, CodeInternalError, resp.Err.Code)
}

func TestMuxDuplicateRegistrationPanics(t *testing.T) {
	mux := NewMux(logger.NewNoopLogger())
	handler := func(_ context.Context, _ json.RawMessage) (any, error) { return nil, nil }

	mux.Register("echo", handler)
	require.Panics(t, func() { mux.Register("echo", handler) })
}
