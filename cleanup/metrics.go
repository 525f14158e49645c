package cleanup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for cleanup
// behavior in production pipelines.
//
// Metrics exposed (all namespaced with "flowreap_"):
//
//  1. deletions_total (counter): files and task directories deleted.
//     Labels: kind (task, file).
//  2. delete_failures_total (counter): deleter errors; the engine retries
//     on a later sweep, so a climbing value with stable deletions_total
//     points at a stuck path.
//     Labels: kind (task, file).
//  3. compat_warnings_total (counter): compatibility warnings issued for
//     process configurations incompatible with eager deletion, one per
//     reason, from OnProcessCreate or OnFlowBegin.
//  4. pending_publish_files (gauge): output files whose publish
//     completion the engine is still waiting on.
//  5. sweep_duration_ms (histogram): time spent in one sweep pass.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := cleanup.NewPrometheusMetrics(registry)
//	engine := cleanup.New(deleter, cleanup.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: prometheus collectors handle their own synchronization.
type PrometheusMetrics struct {
	deletions      *prometheus.CounterVec
	deleteFailures *prometheus.CounterVec
	compatWarnings prometheus.Counter
	pendingPublish prometheus.Gauge
	sweepDuration  prometheus.Histogram

	enabled bool
}

// NewPrometheusMetrics creates and registers all cleanup metrics with the
// provided registry. A nil registry falls back to the default registerer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.deletions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowreap",
		Name:      "deletions_total",
		Help:      "Files and task working directories deleted by the cleanup engine",
	}, []string{"kind"}) // kind: task, file

	pm.deleteFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowreap",
		Name:      "delete_failures_total",
		Help:      "Deleter errors; eligible paths are retried on a later sweep",
	}, []string{"kind"}) // kind: task, file

	pm.compatWarnings = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "flowreap",
		Name:      "compat_warnings_total",
		Help:      "Compatibility warnings issued for processes incompatible with eager deletion",
	})

	pm.pendingPublish = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowreap",
		Name:      "pending_publish_files",
		Help:      "Output files whose publish completion the engine is still waiting on",
	})

	pm.sweepDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowreap",
		Name:      "sweep_duration_ms",
		Help:      "Time spent in one cleanup sweep pass in milliseconds",
		Buckets:   []float64{0.01, 0.1, 1, 5, 10, 50, 100, 500},
	})

	return pm
}

// RecordDeletion increments the deletion counter for the given kind
// ("task" or "file").
func (pm *PrometheusMetrics) RecordDeletion(kind string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.deletions.WithLabelValues(kind).Inc()
}

// RecordDeleteFailure increments the failure counter for the given kind.
func (pm *PrometheusMetrics) RecordDeleteFailure(kind string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.deleteFailures.WithLabelValues(kind).Inc()
}

// RecordCompatWarning increments the compatibility-warning counter.
func (pm *PrometheusMetrics) RecordCompatWarning() {
	if pm == nil || !pm.enabled {
		return
	}
	pm.compatWarnings.Inc()
}

// AddPendingPublish adjusts the pending-publish gauge by delta.
func (pm *PrometheusMetrics) AddPendingPublish(delta int) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.pendingPublish.Add(float64(delta))
}

// RecordSweepDuration records the duration of one sweep pass.
func (pm *PrometheusMetrics) RecordSweepDuration(d time.Duration) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.sweepDuration.Observe(float64(d.Nanoseconds()) / 1e6)
}

// Disable turns off metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() { pm.enabled = false }

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() { pm.enabled = true }
