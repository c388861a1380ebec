package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesTransientStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := f.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestDoDoesNotRetryFatalStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := f.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestConditionalHeaders(t *testing.T) {
	h := Conditional("etag-1", "")
	assert.Equal(t, "etag-1", h.Get("If-None-Match"))
	assert.Empty(t, h.Get("If-Modified-Since"))

	h = Conditional("", "Mon, 01 Jan 2024 00:00:00 GMT")
	assert.Empty(t, h.Get("If-None-Match"))
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", h.Get("If-Modified-Since"))
}

func TestIsTransientStatus(t *testing.T) {
	assert.True(t, isTransientStatus(http.StatusServiceUnavailable))
	assert.True(t, isTransientStatus(http.StatusTooManyRequests))
	assert.True(t, isTransientStatus(http.StatusRequestTimeout))
	assert.False(t, isTransientStatus(http.StatusNotFound))
	assert.False(t, isTransientStatus(http.StatusOK))
}
