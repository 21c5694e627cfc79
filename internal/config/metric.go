package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nutcas3/detectkit/internal/alert"
	"github.com/nutcas3/detectkit/internal/core"
)

// DetectorConfig names one configured detector instance and its
// non-default parameters, as written in a metric's YAML document.
type DetectorConfig struct {
	Kind   string                 `yaml:"kind"`
	Params map[string]interface{} `yaml:"params"`
}

// AlertingConfig mirrors alert.AlertConditions plus the channels to
// dispatch to when alerting is configured for a metric. A metric with
// no alerting block skips the Alert step entirely.
type AlertingConfig struct {
	MinDetectors         int      `yaml:"min_detectors"`
	Direction            string   `yaml:"direction"`
	ConsecutiveAnomalies int      `yaml:"consecutive_anomalies"`
	Channels             []string `yaml:"channels"`
}

func (a AlertingConfig) toConditions() alert.AlertConditions {
	conditions := alert.DefaultAlertConditions()
	if a.MinDetectors > 0 {
		conditions.MinDetectors = a.MinDetectors
	}
	if a.Direction != "" {
		conditions.Direction = a.Direction
	}
	if a.ConsecutiveAnomalies > 0 {
		conditions.ConsecutiveAnomalies = a.ConsecutiveAnomalies
	}
	return conditions
}

// MetricConfig is one metric's full pipeline configuration: where its
// data lives, how it's loaded, which detectors run over it, and (if
// configured) how alerts fire.
type MetricConfig struct {
	MetricName         string            `yaml:"metric_name"`
	Query              string            `yaml:"query"`
	Interval           string            `yaml:"interval"`
	LoadingBatchSize   int               `yaml:"loading_batch_size"`
	Timezone           string            `yaml:"timezone"`
	SeasonalityColumns []string          `yaml:"seasonality_columns"`
	Detectors          []DetectorConfig  `yaml:"detectors"`
	Alerting           *AlertingConfig   `yaml:"alerting"`
	TotalTimeoutSec    int64             `yaml:"total_timeout_seconds"`
	Enabled            bool              `yaml:"enabled"`
	Tags               map[string]string `yaml:"tags"`
}

// LoadMetricConfig parses one metric's YAML document from path.
func LoadMetricConfig(path string) (*MetricConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.BadConfigError{Reason: "reading metric config " + path + ": " + err.Error()}
	}

	var cfg MetricConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &core.BadConfigError{Reason: "parsing metric config " + path + ": " + err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the fields every pipeline run needs before it can
// construct a loader, detector set, and (optionally) orchestrator.
func (c *MetricConfig) Validate() error {
	if c.MetricName == "" {
		return &core.BadConfigError{Reason: "metric_name is required"}
	}
	if c.Query == "" {
		return &core.BadConfigError{Reason: "query is required"}
	}
	if c.Interval == "" {
		return &core.BadConfigError{Reason: "interval is required"}
	}
	if _, err := core.ParseInterval(c.Interval); err != nil {
		return &core.BadConfigError{Reason: err.Error()}
	}
	if err := core.ValidateSeasonalityColumns(c.SeasonalityColumns); err != nil {
		return err
	}
	if len(c.Detectors) == 0 {
		return &core.BadConfigError{Reason: "at least one detector is required"}
	}
	if c.TotalTimeoutSec <= 0 {
		c.TotalTimeoutSec = 300
	}
	return nil
}

// AlertConditions translates the YAML alerting block into
// alert.AlertConditions, applying the orchestrator's own defaults for
// anything the document left unset. Returns false if alerting is not
// configured for this metric.
func (c *MetricConfig) AlertConditions() (alert.AlertConditions, []string, bool) {
	if c.Alerting == nil {
		return alert.AlertConditions{}, nil, false
	}
	return c.Alerting.toConditions(), c.Alerting.Channels, true
}

// IntervalOrPanic parses c.Interval, which Validate has already
// checked succeeds.
func (c *MetricConfig) IntervalOrPanic() core.Interval {
	interval, err := core.ParseInterval(c.Interval)
	if err != nil {
		panic(err)
	}
	return interval
}
