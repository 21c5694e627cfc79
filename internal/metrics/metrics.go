// Package metrics declares the Prometheus collectors the pipeline and
// alert dispatch update, exposed at /metrics via promhttp.Handler the
// way the teacher wires it in internal/api/server.go.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PipelineRuns counts RunMetric completions by metric and terminal status.
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detectkit_pipeline_runs_total",
		Help: "Total pipeline runs, labeled by metric and terminal status.",
	}, []string{"metric", "status"})

	// DatapointsLoaded counts rows persisted by the loader, per metric.
	DatapointsLoaded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detectkit_datapoints_loaded_total",
		Help: "Total datapoints loaded and saved, labeled by metric.",
	}, []string{"metric"})

	// AnomaliesDetected counts anomalous points, per metric and detector id.
	AnomaliesDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detectkit_anomalies_detected_total",
		Help: "Total anomalous points detected, labeled by metric and detector.",
	}, []string{"metric", "detector_id"})

	// AlertsSent counts successful channel dispatches, per metric and channel.
	AlertsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detectkit_alerts_sent_total",
		Help: "Total alerts successfully dispatched, labeled by metric and channel.",
	}, []string{"metric", "channel"})

	// PipelineDuration observes wall-clock run time of RunMetric, per metric.
	PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "detectkit_pipeline_duration_seconds",
		Help:    "Wall-clock duration of a pipeline run, labeled by metric.",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric"})
)

func init() {
	prometheus.MustRegister(PipelineRuns, DatapointsLoaded, AnomaliesDetected, AlertsSent, PipelineDuration)
}
