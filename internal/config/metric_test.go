package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nutcas3/detectkit/internal/core"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "metric.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMetricConfigValid(t *testing.T) {
	path := writeTempConfig(t, `
metric_name: req_count
query: "select timestamp, value from t where ts >= '{{ .dtk_start_time }}'"
interval: 1min
detectors:
  - kind: mad
    params:
      threshold: 3
alerting:
  min_detectors: 1
  channels: [ops]
`)
	cfg, err := LoadMetricConfig(path)
	if err != nil {
		t.Fatalf("LoadMetricConfig: %v", err)
	}
	if cfg.MetricName != "req_count" {
		t.Fatalf("metric_name = %q", cfg.MetricName)
	}
	conditions, channels, ok := cfg.AlertConditions()
	if !ok {
		t.Fatalf("expected alerting to be configured")
	}
	if conditions.MinDetectors != 1 || len(channels) != 1 || channels[0] != "ops" {
		t.Fatalf("conditions/channels = %+v %v", conditions, channels)
	}
}

func TestLoadMetricConfigMissingMetricName(t *testing.T) {
	path := writeTempConfig(t, `
query: "select 1"
interval: 1min
detectors:
  - kind: mad
`)
	_, err := LoadMetricConfig(path)
	if _, ok := err.(*core.BadConfigError); !ok {
		t.Fatalf("err = %v (%T), want *core.BadConfigError", err, err)
	}
}

func TestLoadMetricConfigInvalidInterval(t *testing.T) {
	path := writeTempConfig(t, `
metric_name: m
query: "select 1"
interval: not-an-interval
detectors:
  - kind: mad
`)
	_, err := LoadMetricConfig(path)
	if _, ok := err.(*core.BadConfigError); !ok {
		t.Fatalf("err = %v (%T), want *core.BadConfigError", err, err)
	}
}

func TestLoadMetricConfigNoAlertingIsOptional(t *testing.T) {
	path := writeTempConfig(t, `
metric_name: m
query: "select 1"
interval: 1min
detectors:
  - kind: mad
`)
	cfg, err := LoadMetricConfig(path)
	if err != nil {
		t.Fatalf("LoadMetricConfig: %v", err)
	}
	if _, _, ok := cfg.AlertConditions(); ok {
		t.Fatalf("expected alerting to be unconfigured")
	}
}

func TestLoadMetricConfigRejectsUnknownSeasonalityColumn(t *testing.T) {
	path := writeTempConfig(t, `
metric_name: m
query: "select 1"
interval: 1min
seasonality_columns: [not_a_real_column]
detectors:
  - kind: mad
`)
	_, err := LoadMetricConfig(path)
	if _, ok := err.(*core.BadConfigError); !ok {
		t.Fatalf("err = %v (%T), want *core.BadConfigError", err, err)
	}
}
