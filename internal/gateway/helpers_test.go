package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskbridge/internal/config"
	"taskbridge/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// seenRequest is what the mock backend recorded for one call.
type seenRequest struct {
	Method      string
	RawQuery    string
	ContentType string
	Body        string
}

// mockBackend is an httptest server standing in for the Apps Script app.
type mockBackend struct {
	*httptest.Server

	mu   sync.Mutex
	seen []seenRequest
}

func newMockBackend(t *testing.T, status int, body string) *mockBackend {
	t.Helper()
	return newMockBackendFunc(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func newMockBackendFunc(t *testing.T, h http.HandlerFunc) *mockBackend {
	t.Helper()
	mb := &mockBackend{}
	mb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mb.mu.Lock()
		mb.seen = append(mb.seen, seenRequest{
			Method:      r.Method,
			RawQuery:    r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(data),
		})
		mb.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(mb.Close)
	return mb
}

func (mb *mockBackend) requests() []seenRequest {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]seenRequest, len(mb.seen))
	copy(out, mb.seen)
	return out
}

func (mb *mockBackend) last(t *testing.T) seenRequest {
	t.Helper()
	reqs := mb.requests()
	require.NotEmpty(t, reqs, "backend was never called")
	return reqs[len(reqs)-1]
}

type testEnv struct {
	gateway  *Gateway
	fwd      *Forwarder
	metrics  *Metrics
	logs     *observer.ObservedLogs
	handler  http.Handler
	registry *prometheus.Registry
}

type testOption func(*ForwarderConfig, *Options)

func withTimeout(d time.Duration) testOption {
	return func(fc *ForwarderConfig, _ *Options) { fc.Timeout = d }
}

func withMaxBody(n int64) testOption {
	return func(fc *ForwarderConfig, _ *Options) { fc.MaxBodyBytes = n }
}

func withRateLimit(perSecond float64, burst int) testOption {
	return func(_ *ForwarderConfig, o *Options) {
		o.RateLimit = perSecond
		o.RateBurst = burst
	}
}

func withCORS(origins ...string) testOption {
	return func(_ *ForwarderConfig, o *Options) {
		o.CORS = config.CORSConfig{AllowedOrigins: origins}
	}
}

func newTestEnv(t *testing.T, backendURL string, opts ...testOption) *testEnv {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.Wrap(zap.New(core), config.LoggingConfig{})

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	fc := ForwarderConfig{URL: backendURL, Timeout: 5 * time.Second, LogBodyPrefix: 500}
	o := Options{Logger: logger, Metrics: metrics, CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}}
	for _, opt := range opts {
		opt(&fc, &o)
	}

	fwd, err := NewForwarder(fc, logger, metrics)
	require.NoError(t, err)
	t.Cleanup(fwd.Close)
	o.Forwarder = fwd

	g := New(o)
	return &testEnv{
		gateway:  g,
		fwd:      fwd,
		metrics:  metrics,
		logs:     logs,
		handler:  g.Handler(),
		registry: reg,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
