package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunthar/zops-audience/pkg/logger"
)

func TestDispatchPostsPerDeviceType(t *testing.T) {
	var mu sync.Mutex
	received := make(map[string][]string)

	newProvider := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req providerRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "hello", req.Title)

			mu.Lock()
			received[name] = req.Tokens
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	}

	apns := newProvider("ios")
	defer apns.Close()
	gcm := newProvider("android")
	defer gcm.Close()

	dispatcher := NewDispatcher(map[string]string{
		"ios":     apns.URL,
		"android": gcm.URL,
	}, logger.NewNoopLogger())

	err := dispatcher.Dispatch(context.Background(), Notification{Title: "hello", Message: "world"}, map[string][]string{
		"ios":     {"tok1", "tok2"},
		"android": {"tok3"},
		"web":     {"tok4"}, // no endpoint, skipped
	})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"tok1", "tok2"}, received["ios"])
	require.Equal(t, []string{"tok3"}, received["android"])
	require.NotContains(t, received, "web")
}

func TestDispatchReportsProviderFailure(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer failing.Close()

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	dispatcher := NewDispatcher(map[string]string{
		"ios":     failing.URL,
		"android": ok.URL,
	}, logger.NewNoopLogger())

	err := dispatcher.Dispatch(context.Background(), Notification{Title: "t"}, map[string][]string{
		"ios":     {"tok1"},
		"android": {"tok2"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), `provider "ios"`)
}
