package global

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PrometheusRegistry registerer the collector and self metrics are
	// exposed through.
	PrometheusRegistry prometheus.Registerer = prometheus.DefaultRegisterer

	// PrometheusGatherer gatherer backing the /metrics endpoint.
	PrometheusGatherer prometheus.Gatherer = prometheus.DefaultGatherer

	// Modified at runtime
	Version    = "v0.0.0"
	CommitHash = ""
)
