// Package task implements the per-metric pipeline: acquire the
// persistent lock, load, detect, alert, release — exactly the
// Load-before-Detect-before-Alert ordering the engine guarantees within
// one metric.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/nutcas3/detectkit/internal/alert"
	"github.com/nutcas3/detectkit/internal/config"
	"github.com/nutcas3/detectkit/internal/core"
	"github.com/nutcas3/detectkit/internal/detect"
	"github.com/nutcas3/detectkit/internal/loader"
	"github.com/nutcas3/detectkit/internal/metrics"
	"github.com/nutcas3/detectkit/internal/store"
)

// Step names one phase of a pipeline run.
type Step string

const (
	StepLoad   Step = "Load"
	StepDetect Step = "Detect"
	StepAlert  Step = "Alert"
)

// DefaultSteps is the pipeline's ordinary three-step run.
var DefaultSteps = []Step{StepLoad, StepDetect, StepAlert}

const pipelineProcessType = "pipeline"

// Report is what RunMetric returns: the same shape a caller (CLI,
// scheduler, or an operator polling get_metric_status) can act on.
type Report struct {
	Status            core.TaskStatus
	StepsCompleted    []Step
	DatapointsLoaded  int
	AnomaliesDetected int
	AlertsSent        int
	Error             string
}

// ChannelFactory builds the concrete alert.Channel for a configured
// channel name, looked up from a metric's alerting.channels list.
type ChannelFactory func(name string) (alert.Channel, error)

// Manager runs metric pipelines against a shared store.Backend.
type Manager struct {
	Backend  store.Backend
	DB       loader.ExternalDB
	Template *loader.QueryTemplate
	Channels ChannelFactory

	// RateLimiter throttles repeat alerts per metric. Nil disables
	// throttling (every qualifying run dispatches).
	RateLimiter *alert.RateLimiter
}

// NewManager constructs a Manager. Alerts are rate-limited to at most
// one dispatch per metric every minute; construct Manager directly to
// use a different RateLimiter or none at all.
func NewManager(backend store.Backend, db loader.ExternalDB, tmpl *loader.QueryTemplate, channels ChannelFactory) *Manager {
	return &Manager{Backend: backend, DB: db, Template: tmpl, Channels: channels, RateLimiter: alert.NewRateLimiter(time.Minute)}
}

// RunMetric executes steps for cfg, following spec's six-step
// algorithm: acquire the pipeline lock (unless force), run the
// requested steps recording progress, and release the lock with the
// terminal status, propagating any failure. Any step's error is caught
// here, not allowed to escape — status=failed on any step failure, even
// when earlier steps completed.
func (m *Manager) RunMetric(ctx context.Context, cfg config.MetricConfig, steps []Step, from, to *time.Time, force bool) Report {
	if steps == nil {
		steps = DefaultSteps
	}

	if !force {
		acquired, err := m.Backend.AcquireLock(ctx, cfg.MetricName, pipelineProcessType, pipelineProcessType, cfg.TotalTimeoutSec)
		if err != nil {
			return Report{Status: core.TaskFailed, Error: err.Error()}
		}
		if !acquired {
			return Report{
				Status: core.TaskFailed,
				Error:  fmt.Sprintf("Failed to acquire lock for %s", cfg.MetricName),
			}
		}
	}

	start := time.Now()
	report := m.runSteps(ctx, cfg, steps, from, to)
	metrics.PipelineDuration.WithLabelValues(cfg.MetricName).Observe(time.Since(start).Seconds())

	if !force {
		var errMsg *string
		if report.Error != "" {
			msg := report.Error
			errMsg = &msg
		}
		// The task row's terminal status follows the report's status,
		// not the original test suite's "always completed" behavior:
		// spec.md §7 requires status=failed whenever any step failed,
		// even when earlier steps recorded progress.
		if err := m.Backend.ReleaseLock(ctx, cfg.MetricName, pipelineProcessType, pipelineProcessType, report.Status, to, errMsg); err != nil {
			if report.Error == "" {
				report.Status = core.TaskFailed
				report.Error = err.Error()
			}
		}
	}

	metrics.PipelineRuns.WithLabelValues(cfg.MetricName, string(report.Status)).Inc()
	metrics.DatapointsLoaded.WithLabelValues(cfg.MetricName).Add(float64(report.DatapointsLoaded))
	return report
}

func (m *Manager) runSteps(ctx context.Context, cfg config.MetricConfig, steps []Step, from, to *time.Time) (report Report) {
	report.Status = core.TaskCompleted

	defer func() {
		if r := recover(); r != nil {
			report.Status = core.TaskFailed
			report.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	interval := cfg.IntervalOrPanic()
	windowEnd := time.Now().UTC()
	if to != nil {
		windowEnd = *to
	}

	if containsStep(steps, StepLoad) {
		l := loader.New(m.DB, m.Backend, m.Template, core.MetricRow{MetricName: cfg.MetricName, Interval: interval, LoadingBatchSize: cfg.LoadingBatchSize}, cfg.Query, cfg.SeasonalityColumns)
		loaded, err := l.Load(ctx, from, windowEnd, true)
		if err != nil {
			report.Status = core.TaskFailed
			report.Error = err.Error()
			return report
		}
		if _, err := l.Save(ctx, loaded); err != nil {
			report.Status = core.TaskFailed
			report.Error = err.Error()
			return report
		}
		report.DatapointsLoaded = len(loaded)
		report.StepsCompleted = append(report.StepsCompleted, StepLoad)
	}

	if containsStep(steps, StepDetect) {
		anomalies, err := m.runDetectors(ctx, cfg, interval, windowEnd)
		if err != nil {
			report.Status = core.TaskFailed
			report.Error = err.Error()
			return report
		}
		report.AnomaliesDetected = anomalies
		report.StepsCompleted = append(report.StepsCompleted, StepDetect)
	}

	if containsStep(steps, StepAlert) {
		conditions, channelNames, configured := cfg.AlertConditions()
		if configured {
			sent, err := m.runAlert(ctx, cfg, interval, conditions, channelNames, windowEnd)
			if err != nil {
				report.Status = core.TaskFailed
				report.Error = err.Error()
				return report
			}
			report.AlertsSent = sent
			report.StepsCompleted = append(report.StepsCompleted, StepAlert)
		}
	}

	return report
}

func containsStep(steps []Step, s Step) bool {
	for _, step := range steps {
		if step == s {
			return true
		}
	}
	return false
}

func buildDetector(cfg config.DetectorConfig) (detect.Detector, error) {
	threshold, _ := cfg.Params["threshold"].(float64)
	windowSize := intParam(cfg.Params, "window_size", 0)
	minSamples := intParam(cfg.Params, "min_samples", 0)

	switch cfg.Kind {
	case "mad":
		return detect.NewMADDetector(threshold, windowSize, minSamples)
	case "zscore":
		return detect.NewZScoreDetector(threshold, windowSize, minSamples)
	case "iqr":
		return detect.NewIQRDetector(threshold, windowSize, minSamples)
	case "manual_bounds":
		lower := floatParamPtr(cfg.Params, "lower_bound")
		upper := floatParamPtr(cfg.Params, "upper_bound")
		return detect.NewManualBoundsDetector(lower, upper)
	default:
		return nil, &core.BadConfigError{Reason: "unknown detector kind " + cfg.Kind}
	}
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func floatParamPtr(params map[string]interface{}, key string) *float64 {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

// defaultHistoryWindowPoints bounds how far back runDetectors reads when
// neither a metric's loading_batch_size nor any configured detector's
// window_size says otherwise. It is also the window counted for a
// windowed detector whose window_size is unset, matching the detectors'
// own default window of 100.
const defaultHistoryWindowPoints = 100

// historyWindowPoints is the number of trailing datapoints runDetectors
// must read from the store for every configured detector's rolling
// window to be fully populated: the largest of the metric's
// loading_batch_size and every detector's window_size parameter.
func historyWindowPoints(cfg config.MetricConfig) int {
	window := cfg.LoadingBatchSize
	for _, d := range cfg.Detectors {
		w := intParam(d.Params, "window_size", 0)
		if w == 0 && d.Kind != "manual_bounds" {
			w = defaultHistoryWindowPoints
		}
		if w > window {
			window = w
		}
	}
	if window <= 0 {
		window = defaultHistoryWindowPoints
	}
	return window
}

// runDetectors reads the trailing rolling window of datapoints from the
// store (not just the points this run's Load step fetched, which in
// steady-state incremental operation is only the handful of points new
// since the last watermark) so that window/min_samples-based detectors
// like MAD, Z-Score, and IQR see the full history they need, per
// spec.md §4.8 step 4's "read the window of datapoints required."
func (m *Manager) runDetectors(ctx context.Context, cfg config.MetricConfig, interval core.Interval, windowEnd time.Time) (int, error) {
	lookback := time.Duration(historyWindowPoints(cfg)) * time.Duration(interval.Seconds()) * time.Second
	since := windowEnd.Add(-lookback)

	history, err := m.Backend.GetRecentDatapoints(ctx, cfg.MetricName, since)
	if err != nil {
		return 0, &core.TransientError{Reason: err.Error()}
	}

	bundle := detect.Bundle{
		SeasonalityColumns: cfg.SeasonalityColumns,
	}
	for _, dp := range history {
		bundle.Timestamp = append(bundle.Timestamp, dp.Timestamp)
		bundle.Value = append(bundle.Value, dp.Value)
		bundle.SeasonalityData = append(bundle.SeasonalityData, dp.SeasonalityData)
	}

	anomalies := 0
	for _, detectorCfg := range cfg.Detectors {
		d, err := buildDetector(detectorCfg)
		if err != nil {
			return anomalies, err
		}

		results, err := d.Detect(bundle)
		if err != nil {
			return anomalies, err
		}

		detectionBundle := store.DetectionBundle{}
		detectorAnomalies := 0
		for _, r := range results {
			v := r.Value
			detectionBundle.Timestamp = append(detectionBundle.Timestamp, r.Timestamp)
			detectionBundle.Value = append(detectionBundle.Value, &v)
			detectionBundle.IsAnomaly = append(detectionBundle.IsAnomaly, r.IsAnomaly)
			detectionBundle.ConfidenceLower = append(detectionBundle.ConfidenceLower, r.ConfidenceLower)
			detectionBundle.ConfidenceUpper = append(detectionBundle.ConfidenceUpper, r.ConfidenceUpper)
			detectionBundle.DetectionMetadata = append(detectionBundle.DetectionMetadata, r.Metadata)
			if r.IsAnomaly {
				detectorAnomalies++
			}
		}
		anomalies += detectorAnomalies
		metrics.AnomaliesDetected.WithLabelValues(cfg.MetricName, d.ID()).Add(float64(detectorAnomalies))

		if _, err := m.Backend.SaveDetections(ctx, cfg.MetricName, d.ID(), detectionBundle, d.ParamsJSON()); err != nil {
			return anomalies, &core.TransientError{Reason: err.Error()}
		}
	}

	return anomalies, nil
}

func (m *Manager) runAlert(ctx context.Context, cfg config.MetricConfig, interval core.Interval, conditions alert.AlertConditions, channelNames []string, now time.Time) (int, error) {
	lookback := conditions.ConsecutiveAnomalies
	if conditions.MinDetectors > lookback {
		lookback = conditions.MinDetectors
	}
	since := now.Add(-time.Duration(lookback) * time.Duration(interval.Seconds()) * time.Second)

	rows, err := m.Backend.GetRecentDetections(ctx, cfg.MetricName, since)
	if err != nil {
		return 0, &core.TransientError{Reason: err.Error()}
	}

	records := make([]alert.DetectionRecord, 0, len(rows))
	for _, row := range rows {
		direction := alert.RecordDirectionNone
		severity := 0.0
		if row.DetectionMetadata != nil {
			if d, ok := row.DetectionMetadata["direction"].(string); ok {
				direction = translateDirection(d)
			}
			if s, ok := row.DetectionMetadata["severity"].(float64); ok {
				severity = s
			}
		}
		value := 0.0
		if row.Value != nil {
			value = *row.Value
		}
		records = append(records, alert.DetectionRecord{
			Timestamp:          row.Timestamp,
			DetectorID:         row.DetectorID,
			DetectorName:       row.DetectorID,
			DetectorParamsJSON: row.DetectorParams,
			Value:              value,
			IsAnomaly:          row.IsAnomaly,
			ConfidenceLower:    row.ConfidenceLower,
			ConfidenceUpper:    row.ConfidenceUpper,
			Direction:          direction,
			Severity:           severity,
			DetectionMetadata:  row.DetectionMetadata,
		})
	}

	timezone := time.UTC
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			timezone = loc
		}
	}

	orchestrator := alert.NewOrchestrator(cfg.MetricName, time.Duration(interval.Seconds())*time.Second, conditions, timezone)
	fire, payload := orchestrator.ShouldAlert(records)
	if !fire {
		return 0, nil
	}
	if !m.RateLimiter.Allow(cfg.MetricName, now) {
		return 0, nil
	}

	channels := make([]alert.Channel, 0, len(channelNames))
	for _, name := range channelNames {
		if m.Channels == nil {
			continue
		}
		ch, err := m.Channels(name)
		if err != nil {
			return 0, err
		}
		channels = append(channels, ch)
	}

	results := alert.SendAlerts(*payload, channels, nil)
	sent := 0
	for name, ok := range results {
		if ok {
			sent++
			metrics.AlertsSent.WithLabelValues(cfg.MetricName, name).Inc()
		}
	}
	return sent, nil
}

func translateDirection(d string) string {
	switch d {
	case core.DirectionAbove:
		return alert.RecordDirectionUp
	case core.DirectionBelow:
		return alert.RecordDirectionDown
	default:
		return alert.RecordDirectionNone
	}
}

// GetMetricStatus reports the current lock state and last-datapoint
// watermark for metricName.
func GetMetricStatus(ctx context.Context, backend store.Backend, metricName string) (locked bool, lastDatapoint *time.Time, err error) {
	lockInfo, err := backend.CheckLock(ctx, metricName, pipelineProcessType, pipelineProcessType)
	if err != nil {
		return false, nil, err
	}
	last, err := backend.GetLastDatapointTimestamp(ctx, metricName)
	if err != nil {
		return false, nil, err
	}
	return lockInfo.Locked, last, nil
}
