package metrics

import (
	"time"

	"github.com/chatrelay/chatrelay/internal/observability"
)

// Relay metrics following Prometheus conventions
var (
	// Request metrics
	RequestsTotal     = "relay_requests_total"
	RequestDuration   = "relay_request_duration_ms"
	RateLimitedTotal  = "relay_rate_limited_total"
	BusyRejectedTotal = "relay_busy_rejected_total"

	// Pipeline gauges
	UpstreamQueueDepth = "relay_upstream_queue_depth"
	ImageQueueActive   = "relay_image_queue_active"
	ActiveRequests     = "relay_active_requests"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordRequest records a completed relay request with its action kind
// (text, image) and outcome.
func RecordRequest(kind string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RequestsTotal,
			1,
			map[string]string{
				"kind":   kind,
				"status": status,
			},
		)
		_ = observability.TelemetrySystem.Histogram(
			RequestDuration,
			duration,
			map[string]string{
				"kind": kind,
			},
		)
	}
}

// RecordRateLimited records a request rejected by the admission rules.
func RecordRateLimited(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitedTotal,
			1,
			map[string]string{"kind": kind},
		)
	}
}

// RecordBusyRejected records a request rejected by the single-flight gate.
func RecordBusyRejected(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BusyRejectedTotal,
			1,
			map[string]string{"kind": kind},
		)
	}
}

// SetPipelineGauges publishes the current pipeline occupancy.
func SetPipelineGauges(upstreamQueued, imageActive, activeRequests int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(UpstreamQueueDepth, float64(upstreamQueued), nil)
		_ = observability.TelemetrySystem.Gauge(ImageQueueActive, float64(imageActive), nil)
		_ = observability.TelemetrySystem.Gauge(ActiveRequests, float64(activeRequests), nil)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
