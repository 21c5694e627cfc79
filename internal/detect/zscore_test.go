package detect

import (
	"testing"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
)

func TestZScoreDetectorDefaults(t *testing.T) {
	d, err := NewZScoreDetector(0, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Threshold != zscoreDefaultThreshold || d.WindowSize != zscoreDefaultWindowSize || d.MinSamples != zscoreDefaultMinSamples {
		t.Errorf("defaults not applied: %+v", d)
	}
}

func TestZScoreDetectorValidation(t *testing.T) {
	if _, err := NewZScoreDetector(-1, 0, 0); err == nil {
		t.Error("expected error for negative threshold")
	}
	if _, err := NewZScoreDetector(1, 5, 10); err == nil {
		t.Error("expected error when min_samples exceeds window_size")
	}
}

func TestZScoreDetectorFlagsOutlier(t *testing.T) {
	d, err := NewZScoreDetector(3.0, 100, 5)
	if err != nil {
		t.Fatal(err)
	}

	n := 40
	ts := tsSeries(n, time.Minute)
	values := make([]*float64, n)
	for i := range values {
		v := 10.0
		if i%2 == 0 {
			v = 11.0
		}
		values[i] = floatPtr(v)
	}
	values[n-1] = floatPtr(-500.0)

	bundle := Bundle{Timestamp: ts, Value: values}
	results, err := d.Detect(bundle)
	if err != nil {
		t.Fatal(err)
	}
	last := results[n-1]
	if !last.IsAnomaly {
		t.Errorf("expected outlier to be flagged, got %+v", last)
	}
	if last.Metadata["direction"] != core.DirectionBelow {
		t.Errorf("expected direction below, got %v", last.Metadata["direction"])
	}
}

func TestZScoreDetectorSeasonalityNoOpWhenAllMatch(t *testing.T) {
	// When every window row matches the target's seasonality exactly,
	// the adjusted baseline must equal the unweighted baseline.
	n := 10
	ts := tsSeries(n, time.Hour)
	values := make([]*float64, n)
	seasonality := make([]map[string]float64, n)
	for i := range values {
		values[i] = floatPtr(float64(i))
		seasonality[i] = map[string]float64{"hour": 0}
	}

	d, err := NewZScoreDetector(3.0, 100, 1)
	if err != nil {
		t.Fatal(err)
	}
	bundle := Bundle{
		Timestamp:          ts,
		Value:              values,
		SeasonalityData:    seasonality,
		SeasonalityColumns: []string{"hour"},
	}
	results, err := d.Detect(bundle)
	if err != nil {
		t.Fatal(err)
	}
	last := results[n-1]
	if last.Metadata["global_mean"] != last.Metadata["adjusted_mean"] {
		t.Errorf("expected adjusted_mean == global_mean when all rows match, got %+v", last.Metadata)
	}
}
