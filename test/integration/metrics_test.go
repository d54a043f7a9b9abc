package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/observability"
	"github.com/chatrelay/chatrelay/internal/server"
	"github.com/chatrelay/chatrelay/internal/server/handlers"
)

// cleanupMetrics tears down global telemetry state so each test starts
// clean. Lingering exporters can otherwise hold ports across tests.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific socket permission errors so
// tests skip gracefully when the sandbox blocks loopback binds.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	cleanupMetrics(t)
}

func initLoggers(t *testing.T) {
	t.Helper()
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")
	handlers.InitHealthManager("test")
}

// newTestServer stands up the relay HTTP server on IPv4 loopback with
// optional extra routes, skipping if the sandbox refuses sockets.
func newTestServer(t *testing.T, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := server.New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, nil)
	if setup != nil {
		if mux, ok := srv.Handler().(*chi.Mux); ok {
			setup(mux)
		}
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func getAndClose(t *testing.T, client *http.Client, url string) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp.StatusCode
}

func TestMetricsEndpointUnderMixedLoad(t *testing.T) {
	initLoggers(t)
	initMetricsOrSkip(t)

	ts, client := newTestServer(t, func(mux *chi.Mux) {
		mux.Post("/v1/messages/text", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"chat_id":1,"pages":1}`))
		})
		mux.Post("/v1/messages/image", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(25 * time.Millisecond)
			w.WriteHeader(http.StatusAccepted)
		})
		mux.Post("/v1/messages/busy", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})
	})

	paths := []string{
		"/v1/messages/text",
		"/v1/messages/image",
		"/v1/messages/busy",
		"/health",
	}

	const numRequests = 40
	work := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		work <- i
	}
	close(work)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range work {
				path := paths[n%len(paths)]
				var resp *http.Response
				var err error
				if path == "/health" {
					resp, err = client.Get(ts.URL + path)
				} else {
					resp, err = client.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
				}
				if err == nil {
					require.NoError(t, resp.Body.Close())
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scrape := string(body)
	assert.Contains(t, scrape, "test_http_requests_total", "expected request counter in scrape")
	assert.Contains(t, scrape, "test_http_request_duration_ms", "expected duration histogram in scrape")
	assert.Less(t, elapsed, 5*time.Second, "mixed load should finish quickly")
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	initLoggers(t)
	initMetricsOrSkip(t)

	ts, client := newTestServer(t, nil)

	// Generate at least one request so the scrape has samples.
	require.Equal(t, http.StatusOK, getAndClose(t, client, ts.URL+"/version"))

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)

	contentType := resp.Header.Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "text/plain; version=0.0.4"),
		"expected Prometheus content type, got: %s", contentType)

	var sampleLines int
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		if len(strings.Fields(line)) >= 2 {
			sampleLines++
		}
	}
	assert.Greater(t, sampleLines, 0, "expected metric sample lines in scrape")
}

func TestMetricsEndpointWithTelemetryDisabled(t *testing.T) {
	initLoggers(t)

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	t.Setenv("CHATRELAY_METRICS_ENABLED", "false")

	ts, client := newTestServer(t, nil)

	// Regular routes keep working without telemetry.
	require.Equal(t, http.StatusOK, getAndClose(t, client, ts.URL+"/version"))

	// The scrape proxy reports unavailable instead of hanging.
	require.Equal(t, http.StatusServiceUnavailable, getAndClose(t, client, ts.URL+"/metrics"))
}
