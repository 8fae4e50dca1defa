package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		assert.Equal(t, "custom", r.Header.Get("X-Extra"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := &http.Client{
		Transport: &HeaderTransport{
			Headers: http.Header{
				"Authorization": []string{"Bearer token123"},
				"X-Extra":       []string{"custom"},
			},
		},
	}

	resp, err := client.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHeaderTransportDoesNotStackExistingHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"Bearer from-request"}, r.Header.Values("Authorization"))
		assert.Equal(t, []string{"default"}, r.Header.Values("X-Extra"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := &http.Client{
		Transport: &HeaderTransport{
			Headers: http.Header{
				"Authorization": []string{"Bearer from-transport"},
				"X-Extra":       []string{"default"},
			},
		},
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer from-request")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
