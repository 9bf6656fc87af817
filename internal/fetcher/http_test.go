package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		RatePerSec: 1000,
		Retry:      fastRetry(3),
	})
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world")) //nolint:errcheck
	}))
	defer srv.Close()

	body, size, err := newTestFetcher().Open(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
	assert.Equal(t, "hello world", readAll(t, body))
}

func TestOpen_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("success")) //nolint:errcheck
	}))
	defer srv.Close()

	body, _, err := newTestFetcher().Open(context.Background(), srv.URL+"/retry")
	require.NoError(t, err)
	assert.Equal(t, "success", readAll(t, body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestOpen_RetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Open(context.Background(), srv.URL+"/fail")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestOpen_NotFoundIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Open(context.Background(), srv.URL+"/nope")
	require.Error(t, err)
	assert.True(t, efberr.IsNotFound(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOpen_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Open(context.Background(), srv.URL+"/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

func TestOpen_429ReducesRate(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{RatePerSec: 100, Retry: fastRetry(3)})
	u, _ := url.Parse(srv.URL)
	lim := f.limiterFor(u.Host)
	initial := lim.Limit()

	body, _, err := f.Open(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, body))
	assert.Equal(t, int32(3), attempts.Load())

	// 100 -> 50 -> 25 -> 30
	assert.Less(t, float64(lim.Limit()), float64(initial))
}

func TestOpen_CircuitOpensAfterFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 2
	cfg.ShouldTrip = resilience.IsTransient
	f := NewHTTPFetcher(HTTPOptions{
		RatePerSec: 1000,
		Retry:      fastRetry(1),
		Breakers:   resilience.NewHostBreakers(cfg),
	})

	for range 2 {
		_, _, err := f.Open(context.Background(), srv.URL)
		require.Error(t, err)
	}
	_, _, err := f.Open(context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOpen_OnResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	var hosts []string
	f := NewHTTPFetcher(HTTPOptions{
		RatePerSec: 1000,
		OnResult: func(host string, err error) {
			assert.NoError(t, err)
			hosts = append(hosts, host)
		},
	})
	body, _, err := f.Open(context.Background(), srv.URL)
	require.NoError(t, err)
	readAll(t, body)

	u, _ := url.Parse(srv.URL)
	assert.Equal(t, []string{u.Host}, hosts)
}

func TestOpen_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newTestFetcher().Open(ctx, srv.URL)
	require.Error(t, err)
}

func TestLimiterFor_HostRates(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{
		RatePerSec: 5,
		HostRates:  map[string]float64{"aviationweather.gov": 2},
	})
	assert.InDelta(t, 2.0, float64(f.limiterFor("aviationweather.gov").Limit()), 0.001)
	assert.InDelta(t, 5.0, float64(f.limiterFor("aeronav.faa.gov").Limit()), 0.001)
	assert.Same(t, f.limiterFor("aeronav.faa.gov"), f.limiterFor("aeronav.faa.gov"))
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "efb/1.0", f.opts.UserAgent)
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
	assert.NotNil(t, f.opts.Breakers)

	transport, ok := f.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 30*time.Second, transport.ResponseHeaderTimeout)
	assert.Zero(t, f.client.Timeout)
}

func TestAdaptiveLimiter_OnSuccess_IncreasesRate(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnSuccess()
	assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)

	lim.OnSuccess()
	assert.InDelta(t, 14.4, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_OnRateLimit_DecreasesRate(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnRateLimit()
	assert.InDelta(t, 5.0, float64(lim.Limit()), 0.1)

	lim.OnRateLimit()
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)
	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)

	for range 20 {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_Wait_ContextCancelled(t *testing.T) {
	lim := NewAdaptiveLimiter(0.001, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}
