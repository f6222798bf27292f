package global

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CollectErrorsCnt collections aborted by a management backend error
var CollectErrorsCnt = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "infinispan_exporter_collect_errors_total", Help: "The total number of aborted collections",
}, []string{"category"})

// SkippedObjectsCnt objects deliberately not read
var SkippedObjectsCnt = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "infinispan_exporter_skipped_objects_total", Help: "The total number of skipped cache objects",
}, []string{"cache"})

var _ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
	Name: "infinispan_exporter_backend_up", Help: "Whether the last collection completed every query",
}, func() float64 {
	if ExporterRuntimeState.BackendState() == BackendStateUp {
		return 1
	}

	return 0
})

var _ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
	Name: "infinispan_exporter_last_success_timestamp_seconds", Help: "When a collection last completed every query",
}, func() float64 {
	t := ExporterRuntimeState.LastSuccess()
	if t.IsZero() {
		return 0
	}

	return float64(t.UnixMilli()) / 1e3
})
