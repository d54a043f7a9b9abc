package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/chatrelay/chatrelay/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTelemetry swaps the package-level telemetry system for a fake
// collector and restores the original when the test finishes.
func fakeTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	return collector
}

func serveWith(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	RequestMetrics(handler).ServeHTTP(rec, req)
	return rec
}

func TestRequestMetricsEmitsCountAndDuration(t *testing.T) {
	collector := fakeTelemetry(t)

	rec := serveWith(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}, httptest.NewRequest("POST", "/v1/messages/text", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0,
		"expected http_requests_total to be emitted")
	assert.Greater(t, collector.CountMetricsByName("http_request_duration_ms"), 0,
		"expected http_request_duration_ms to be emitted")
}

func TestRequestMetricsNoopWhenTelemetryDisabled(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	defer func() {
		observability.TelemetrySystem = original
	}()

	rec := serveWith(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("GET", "/v1/stats", nil))

	// The middleware must pass the request through without panicking.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestMetricsCountsErrorResponses(t *testing.T) {
	collector := fakeTelemetry(t)

	serveWith(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, httptest.NewRequest("POST", "/v1/messages/image", nil))

	assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
	assert.Greater(t, collector.CountMetricsByName("http_errors_total"), 0,
		"expected http_errors_total for a non-2xx response")
}

func TestRequestMetricsRecordsPayloadSizes(t *testing.T) {
	collector := fakeTelemetry(t)

	req := httptest.NewRequest("POST", "/v1/messages/text", nil)
	req.Header.Set("Content-Length", "2048")
	serveWith(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("a paged reply body"))
	}, req)

	assert.Greater(t, collector.CountMetricsByName("http_request_size_bytes"), 0,
		"expected http_request_size_bytes to be emitted")
	assert.Greater(t, collector.CountMetricsByName("http_response_size_bytes"), 0,
		"expected http_response_size_bytes to be emitted")
}

func TestGetEndpointPatternFallbacks(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health/*"},
		{"/health/live", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/health/startup", "/health/*"},
		{"/v1/messages/text", "/v1/*"},
		{"/v1/messages/42/7/page", "/v1/*"},
		{"/admin/stats", "/admin/*"},
		{"/admin/rate-limits/reset", "/admin/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{"/api/users/123", "/unknown"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			assert.Equal(t, tt.want, getEndpointPattern(req),
				"path %s should map to %s", tt.path, tt.want)
		})
	}
}

func TestRequestMetricsComposesWithRequestID(t *testing.T) {
	collector := fakeTelemetry(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := RequestID(RequestMetrics(handler))

	req := httptest.NewRequest("GET", "/v1/stats", nil)
	req.Header.Set("X-Request-ID", "relay-req-1")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, "relay-req-1", rec.Header().Get("X-Request-ID"))
	assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
}

func TestRequestMetricsMeasuresHandlerTime(t *testing.T) {
	collector := fakeTelemetry(t)

	start := time.Now()
	serveWith(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("GET", "/v1/stats", nil))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Greater(t, collector.CountMetricsByName("http_request_duration_ms"), 0,
		"expected http_request_duration_ms to be emitted")
}
