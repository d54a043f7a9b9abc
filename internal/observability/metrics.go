package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

var (
	// TelemetrySystem is the process-wide telemetry system. Nil until
	// InitMetrics succeeds; emitters treat nil as disabled.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint backing TelemetrySystem.
	PrometheusExporter *exporters.PrometheusExporter

	// metricsPort is the port the exporter actually bound.
	metricsPort int
)

// InitMetrics starts the Prometheus exporter and wires it into a new
// telemetry system. Port 0 asks the kernel for a free port; the bound
// port is recoverable via GetMetricsPort. The optional namespace
// overrides the service name as the metric prefix.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if port < 0 {
		port = 0
	}
	metricsPort = port

	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	PrometheusExporter = exporters.NewPrometheusExporter(prefix, fmt.Sprintf(":%d", port))
	if err := PrometheusExporter.Start(); err != nil {
		return err
	}

	if actual, err := resolvePort(PrometheusExporter.GetAddr()); err == nil {
		metricsPort = actual
	} else if port == 0 {
		// Requested :0 but could not read the bound address back.
		metricsPort = 9090
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: PrometheusExporter,
	})
	if err != nil {
		return err
	}
	TelemetrySystem = sys

	// Relay metrics (relay_requests_total, relay_queue_depth and friends)
	// are auto-registered by gofulmen telemetry on first use; see
	// internal/metrics for emission.
	return nil
}

// GetMetricsPort returns the port the Prometheus exporter is listening on.
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
