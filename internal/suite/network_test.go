package suite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newObjectCacheTest(t *testing.T, params map[string]any) *ObjectCacheTest {
	t.Helper()
	test, err := NewObjectCache(Env{Params: params})
	require.NoError(t, err)
	t.Cleanup(func() { _ = test.Close() })
	return test
}

func TestObjectCache_Cycles(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	test := newObjectCacheTest(t, map[string]any{"addr": server.Addr()})

	res := test.Run(context.Background(), 10)
	require.Empty(t, res.Error)
	require.NotNil(t, res.ObjectCache)
	assert.Equal(t, 10, res.ObjectCache.Cycles)
	assert.Equal(t, 40, res.ObjectCache.Operations)
	assert.Equal(t, 10, res.ObjectCache.Hits)
	assert.Equal(t, 10, res.ObjectCache.Misses)

	keys, err := test.client.Keys(context.Background(), "wpbench:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys, "no keys left behind")
}

func TestObjectCache_Unconfigured(t *testing.T) {
	test := newObjectCacheTest(t, nil)

	res := test.Run(context.Background(), 10)
	assert.Contains(t, res.Error, "no object cache configured")
	assert.Zero(t, res.ObjectCache.Operations)
}

func TestObjectCache_Unreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	test := newObjectCacheTest(t, map[string]any{"addr": addr, "timeout": "200ms"})

	res := test.Run(context.Background(), 10)
	assert.Contains(t, res.Error, "connecting to "+addr)
	assert.Zero(t, res.ObjectCache.Cycles)
}

func TestObjectCache_Score(t *testing.T) {
	test := newObjectCacheTest(t, map[string]any{"target": 0.2})

	sub, err := test.Score(models.TestResult{ObjectCache: &models.ObjectCacheStats{Operations: 40}}, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.008, sub.Target, 1e-9)
}

func TestHTTPRequest_Requests(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	test, err := NewHTTPRequest(Env{Params: map[string]any{"url": server.URL}})
	require.NoError(t, err)
	defer test.Close()

	res := test.Run(context.Background(), 5)
	require.Empty(t, res.Error)
	require.NotNil(t, res.HTTP)
	assert.Equal(t, 5, res.HTTP.Requests)
	assert.Equal(t, 5, res.HTTP.Successes)
	assert.Zero(t, res.HTTP.Failures)
	assert.Equal(t, int64(25), res.HTTP.BytesReceived)
	assert.Greater(t, res.HTTP.AvgRequestMs, 0.0)
	assert.Equal(t, int32(5), hits.Load())
}

func TestHTTPRequest_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		cancel()
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	test, err := NewHTTPRequest(Env{Params: map[string]any{"url": server.URL}})
	require.NoError(t, err)
	defer test.Close()

	res := test.Run(ctx, 40)
	assert.Contains(t, res.Error, "stopped after 1 requests")
	require.NotNil(t, res.HTTP)
	assert.Equal(t, 1, res.HTTP.Requests)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPRequest_HonoursContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	test, err := NewHTTPRequest(Env{Params: map[string]any{"url": server.URL, "timeout": "10s"}})
	require.NoError(t, err)
	defer test.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := test.Run(ctx, 10)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.NotEmpty(t, res.Error)
	require.NotNil(t, res.HTTP)
	assert.Equal(t, 1, res.HTTP.Requests)
	assert.Equal(t, 1, res.HTTP.Failures)
}

func TestHTTPRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantSuccess bool
	}{
		{"ok", http.StatusOK, true},
		{"redirect", http.StatusFound, true},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			test, err := NewHTTPRequest(Env{Params: map[string]any{"url": server.URL}})
			require.NoError(t, err)
			defer test.Close()

			res := test.Run(context.Background(), 2)
			assert.Equal(t, 2, res.HTTP.Requests)
			if tt.wantSuccess {
				assert.Empty(t, res.Error)
				assert.Equal(t, 2, res.HTTP.Successes)
				return
			}
			assert.Equal(t, 2, res.HTTP.Failures)
			assert.Contains(t, res.Error, "HTTP")
		})
	}
}

func TestHTTPRequest_Unconfigured(t *testing.T) {
	test, err := NewHTTPRequest(Env{})
	require.NoError(t, err)

	res := test.Run(context.Background(), 3)
	assert.Contains(t, res.Error, "no url configured")
	assert.Zero(t, res.HTTP.Requests)
}
