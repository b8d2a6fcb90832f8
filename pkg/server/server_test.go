package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/push"
	"github.com/kunthar/zops-audience/pkg/rpc"
	servererrors "github.com/kunthar/zops-audience/pkg/server/errors"
	"github.com/kunthar/zops-audience/pkg/setstore"
	"github.com/kunthar/zops-audience/pkg/storage"
	"github.com/kunthar/zops-audience/pkg/storage/memory"
	"github.com/kunthar/zops-audience/pkg/types"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	groups map[string][]string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ push.Notification, groups map[string][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = groups
	return nil
}

func newTestServer(t *testing.T) (*Server, storage.DocumentStore, *fakeDispatcher) {
	t.Helper()

	docs := memory.New()
	dispatcher := &fakeDispatcher{}
	srv := New(setstore.NewMemoryStore(), docs, dispatcher, logger.NewNoopLogger())
	t.Cleanup(srv.Close)
	return srv, docs, dispatcher
}

func seedAudience(t *testing.T, docs storage.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	clients := []struct {
		id, device, token, city string
	}{
		{"c1", "android", "tok1", "istanbul"},
		{"c2", "ios", "tok2", "istanbul"},
		{"c3", "ios", "tok3", "ankara"},
	}
	for _, c := range clients {
		client := &types.Client{ID: c.id, DeviceType: c.device, Token: c.token}
		require.NoError(t, storage.WriteClient(ctx, docs, "p1", client, map[string]string{"city": c.city}))
	}
}

func frame(t *testing.T, method, id string, params any) []byte {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	out, err := json.Marshal(rpc.Request{JSONRPC: rpc.Version, Method: method, Params: raw, ID: id})
	require.NoError(t, err)
	return out
}

func decode(t *testing.T, raw []byte) rpc.Response {
	t.Helper()
	var resp rpc.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func istanbulResidency() *types.Residency {
	return &types.Residency{
		Sets: map[string]types.SetFilter{
			"a": {
				Key:       "city",
				Relation:  types.RelationEqual,
				Values:    []string{"istanbul"},
				Intention: types.IntentionClient,
			},
		},
		Expression: "a",
	}
}

func TestPostPushMessageEndToEnd(t *testing.T) {
	srv, docs, dispatcher := newTestServer(t)
	seedAudience(t, docs)

	req := map[string]any{
		"project":  "p1",
		"title":    "hello",
		"message":  "world",
		"audience": istanbulResidency(),
	}

	resp := decode(t, srv.Handle(context.Background(), frame(t, MethodPostPushMessage, "req-1", req)))
	require.Nil(t, resp.Err)
	require.Equal(t, "req-1", resp.ID)

	result := resp.Result.(map[string]any)
	require.NotEmpty(t, result["message_id"])
	delivered := result["delivered"].(map[string]any)
	require.EqualValues(t, 1, delivered["android"])
	require.EqualValues(t, 1, delivered["ios"])

	require.ElementsMatch(t, []string{"tok1"}, dispatcher.groups["android"])
	require.ElementsMatch(t, []string{"tok2"}, dispatcher.groups["ios"])
}

func TestResolveSegment(t *testing.T) {
	srv, docs, _ := newTestServer(t)
	seedAudience(t, docs)

	req := map[string]any{"project": "p1", "residency": istanbulResidency()}
	resp := decode(t, srv.Handle(context.Background(), frame(t, MethodResolveSegment, "req-2", req)))
	require.Nil(t, resp.Err)

	result := resp.Result.(map[string]any)
	require.ElementsMatch(t, []any{"c1", "c2"}, result["clients"].([]any))
}

func TestInvalidResidencySurfacesAsRPCError(t *testing.T) {
	srv, docs, _ := newTestServer(t)
	seedAudience(t, docs)

	bad := istanbulResidency()
	bad.Expression = "a n missing"
	req := map[string]any{"project": "p1", "residency": bad}

	resp := decode(t, srv.Handle(context.Background(), frame(t, MethodResolveSegment, "req-3", req)))
	require.NotNil(t, resp.Err)
	require.Equal(t, servererrors.CodeInvalidResidency, resp.Err.Code)
}

func TestPostPushMessageRequiresAudience(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := map[string]any{"project": "p1", "title": "t", "message": "m"}
	resp := decode(t, srv.Handle(context.Background(), frame(t, MethodPostPushMessage, "req-4", req)))
	require.NotNil(t, resp.Err)
	require.Equal(t, rpc.CodeInvalidParams, resp.Err.Code)
}

func TestUnknownMethod(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := decode(t, srv.Handle(context.Background(), frame(t, "delete_everything", "req-5", map[string]any{})))
	require.NotNil(t, resp.Err)
	require.Equal(t, rpc.CodeMethodNotFound, resp.Err.Code)
}

func TestMalformedFrame(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := decode(t, srv.Handle(context.Background(), []byte("{not json")))
	require.NotNil(t, resp.Err)
	require.Equal(t, rpc.CodeParseError, resp.Err.Code)
}

func TestMethodsAreAClosedSet(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.ElementsMatch(t, []string{MethodPostPushMessage, MethodResolveSegment}, srv.Methods())
}
