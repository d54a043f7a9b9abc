package metrics

import (
	"strconv"

	"github.com/chatrelay/chatrelay/internal/observability"
)

// Metric names
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

func count(name string, labels map[string]string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(name, 1, labels)
}

// RecordError counts an error by relay error kind and HTTP status.
func RecordError(errorKind string, httpStatus int) {
	count(ErrorsTotalName, map[string]string{
		"error_kind":  errorKind,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered panic.
func RecordPanic() {
	count(PanicsTotalName, nil)
}

// RecordErrorByEndpoint counts an error against the endpoint it hit.
func RecordErrorByEndpoint(endpoint string, errorKind string) {
	count(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_kind": errorKind,
	})
}
