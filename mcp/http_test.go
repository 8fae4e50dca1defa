package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixta-dev/mcp-bridge/jsonrpc"
)

func newHTTPTestServer(t *testing.T) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	transport := NewHTTPTransport(echoHandler, "unused")
	ts := httptest.NewServer(http.HandlerFunc(transport.serveFrame))
	t.Cleanup(ts.Close)
	return transport, ts
}

func TestHTTPTransportRoundTrip(t *testing.T) {
	transport, ts := newHTTPTestServer(t)

	resp, err := http.Post(ts.URL, "application/json",
		strings.NewReader(`{"jsonrpc": "2.0", "method": "ping", "id": 1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, transport.session.id, resp.Header.Get("Mcp-Session-Id"))

	var response jsonrpc.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.Equal(t, "2.0", response.Version)
	assert.Nil(t, response.Error)
	assert.Equal(t, "ping", response.Result)
}

func TestHTTPTransportNotification(t *testing.T) {
	_, ts := newHTTPTestServer(t)

	resp, err := http.Post(ts.URL, "application/json",
		strings.NewReader(`{"jsonrpc": "2.0", "method": "notifications/initialized"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHTTPTransportCancelledNotification(t *testing.T) {
	_, ts := newHTTPTestServer(t)

	resp, err := http.Post(ts.URL, "application/json",
		strings.NewReader(`{"jsonrpc": "2.0", "method": "notifications/cancelled", "params": {"requestId": 99}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHTTPTransportMethodNotAllowed(t *testing.T) {
	_, ts := newHTTPTestServer(t)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestHTTPTransportMalformedFrame(t *testing.T) {
	_, ts := newHTTPTestServer(t)

	resp, err := http.Post(ts.URL, "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var response jsonrpc.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpc.ErrParse, response.Error.Code)
}

func TestHTTPTransportShutdown(t *testing.T) {
	transport := NewHTTPTransport(echoHandler, "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- transport.Run(ctx) }()

	// Give the listener a moment to come up, then shut down
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not shut down")
	}
}
