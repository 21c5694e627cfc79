package detect

import (
	"math"
	"testing"
	"time"

	"github.com/nutcas3/detectkit/internal/core"
)

func floatPtr(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func tsSeries(n int, step time.Duration) []time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * step)
	}
	return out
}

func TestMADDetectorDefaults(t *testing.T) {
	d, err := NewMADDetector(0, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Threshold != madDefaultThreshold || d.WindowSize != madDefaultWindowSize || d.MinSamples != madDefaultMinSamples {
		t.Errorf("defaults not applied: %+v", d)
	}
	if d.ParamsJSON() != "{}" {
		t.Errorf("default params JSON = %q, want {}", d.ParamsJSON())
	}
}

func TestMADDetectorValidation(t *testing.T) {
	cases := []struct {
		name                         string
		threshold                   float64
		windowSize, minSamples      int
	}{
		{"negative threshold", -1, 0, 0},
		{"zero window via negative", 1, -5, 0},
		{"min exceeds window", 1, 10, 20},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewMADDetector(c.threshold, c.windowSize, c.minSamples); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// P4: insufficient_data exactly for the first min_samples points.
func TestMADDetectorInsufficientDataBoundary(t *testing.T) {
	d, err := NewMADDetector(3.0, 100, 5)
	if err != nil {
		t.Fatal(err)
	}

	n := 10
	ts := tsSeries(n, time.Minute)
	values := make([]*float64, n)
	for i := range values {
		values[i] = floatPtr(10.0)
	}

	bundle := Bundle{Timestamp: ts, Value: values}
	results, err := d.Detect(bundle)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if results[i].Metadata["reason"] != core.ReasonInsufficientData {
			t.Errorf("index %d: expected insufficient_data, got %+v", i, results[i].Metadata)
		}
	}
	for i := 5; i < n; i++ {
		if _, ok := results[i].Metadata["reason"]; ok {
			t.Errorf("index %d: unexpected reason in metadata %+v", i, results[i].Metadata)
		}
	}
}

func TestMADDetectorMissingDataPassthrough(t *testing.T) {
	d, err := NewMADDetector(3.0, 100, 2)
	if err != nil {
		t.Fatal(err)
	}

	ts := tsSeries(5, time.Minute)
	values := []*float64{floatPtr(1), floatPtr(2), nil, floatPtr(3), floatPtr(4)}

	bundle := Bundle{Timestamp: ts, Value: values}
	results, err := d.Detect(bundle)
	if err != nil {
		t.Fatal(err)
	}
	if results[2].Metadata["reason"] != core.ReasonMissingData {
		t.Errorf("expected missing_data at index 2, got %+v", results[2].Metadata)
	}
}

func TestMADDetectorFlagsObviousOutlier(t *testing.T) {
	d, err := NewMADDetector(3.0, 100, 5)
	if err != nil {
		t.Fatal(err)
	}

	n := 40
	ts := tsSeries(n, time.Minute)
	values := make([]*float64, n)
	for i := range values {
		values[i] = floatPtr(10.0)
	}
	values[n-1] = floatPtr(10000.0)

	bundle := Bundle{Timestamp: ts, Value: values}
	results, err := d.Detect(bundle)
	if err != nil {
		t.Fatal(err)
	}
	last := results[n-1]
	if !last.IsAnomaly {
		t.Errorf("expected obvious outlier to be flagged, got %+v", last)
	}
	if last.Metadata["direction"] != core.DirectionAbove {
		t.Errorf("expected direction above, got %v", last.Metadata["direction"])
	}
}

// S1: [10]*10 + [10,10,10,50,10], MAD threshold=3, window=10, min_samples=5:
// only index 13 is anomalous, direction=above, severity>threshold.
func TestMADDetectorScenarioS1(t *testing.T) {
	d, err := NewMADDetector(3.0, 10, 5)
	if err != nil {
		t.Fatal(err)
	}

	raw := append([]float64{}, repeat(10, 10)...)
	raw = append(raw, 10, 10, 10, 50, 10)
	ts := tsSeries(len(raw), time.Minute)
	values := toPtrs(raw)

	results, err := d.Detect(Bundle{Timestamp: ts, Value: values})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if i == 13 {
			if !r.IsAnomaly {
				t.Errorf("index 13 should be anomalous")
			}
			if r.Metadata["direction"] != core.DirectionAbove {
				t.Errorf("index 13 direction = %v, want above", r.Metadata["direction"])
			}
			if r.Metadata["severity"].(float64) <= 3.0 {
				t.Errorf("index 13 severity = %v, want > 3.0", r.Metadata["severity"])
			}
			continue
		}
		if r.IsAnomaly {
			t.Errorf("index %d unexpectedly anomalous: %+v", i, r)
		}
	}
}

// S2: same as S1 with 50 replaced by -50: only index 13 anomalous, direction=below.
func TestMADDetectorScenarioS2(t *testing.T) {
	d, err := NewMADDetector(3.0, 10, 5)
	if err != nil {
		t.Fatal(err)
	}

	raw := append([]float64{}, repeat(10, 10)...)
	raw = append(raw, 10, 10, 10, -50, 10)
	ts := tsSeries(len(raw), time.Minute)
	values := toPtrs(raw)

	results, err := d.Detect(Bundle{Timestamp: ts, Value: values})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if i == 13 {
			if !r.IsAnomaly {
				t.Errorf("index 13 should be anomalous")
			}
			if r.Metadata["direction"] != core.DirectionBelow {
				t.Errorf("index 13 direction = %v, want below", r.Metadata["direction"])
			}
			continue
		}
		if r.IsAnomaly {
			t.Errorf("index %d unexpectedly anomalous: %+v", i, r)
		}
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func toPtrs(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = floatPtr(v)
	}
	return out
}

func TestMADDetectorIdentityDeterministic(t *testing.T) {
	d1, _ := NewMADDetector(3.5, 50, 10)
	d2, _ := NewMADDetector(3.5, 50, 10)
	if d1.ID() != d2.ID() {
		t.Errorf("same params should produce same ID: %s != %s", d1.ID(), d2.ID())
	}

	d3, _ := NewMADDetector(4.0, 50, 10)
	if d1.ID() == d3.ID() {
		t.Error("different params should produce different IDs")
	}

	z, _ := NewZScoreDetector(3.5, 50, 10)
	if d1.ParamsJSON() == z.ParamsJSON() && d1.ID() == z.ID() {
		t.Error("different detector kinds with identical params must still differ by class tag")
	}
}
