package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a config tuned for fast tests: high rate, tiny backoff.
func testConfig() Config {
	return Config{
		Timeout:           2 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             100,
	}
}

// TestGetSuccess verifies a plain successful fetch returns the body.
func TestGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>hello</html>"))
	}))
	defer server.Close()

	client := NewClient(testConfig())
	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", string(body))
}

// TestGetSetsUserAgent verifies the client identifies itself.
func TestGetSetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewClient(testConfig())
	_, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, gotUA, "blogmirror")
}

// TestGetRetriesTransientErrors verifies 5xx responses are retried and a
// later success wins.
func TestGetRetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(testConfig())
	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestGetDoesNotRetry404 verifies a 404 fails immediately with a typed
// status error.
func TestGetDoesNotRetry404(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testConfig())
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected *StatusError, got %v", err)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 must not be retried")
}

// TestGetGivesUpAfterMaxAttempts verifies the attempt bound holds when the
// server never recovers.
func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testConfig())
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestGetHonorsCancellation verifies a cancelled context aborts the fetch
// rather than retrying through it.
func TestGetHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(testConfig())
	_, err := client.Get(ctx, server.URL)
	assert.Error(t, err)
}

// TestIsRetryable verifies the retry classification.
func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&StatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, IsRetryable(&StatusError{StatusCode: http.StatusForbidden}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: http.StatusInternalServerError}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("connection reset by peer")))
}
