package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWeightedPercentileBasic(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	weights := []float64{0.1, 0.2, 0.4, 0.2, 0.1}

	got, err := WeightedPercentile(values, weights, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// target 0.5 lies between cumulative weights 0.3 (value 2) and 0.7
	// (value 3): 2 + (0.5-0.3)/(0.7-0.3)*(3-2) = 2.5.
	if !almostEqual(got, 2.5) {
		t.Errorf("median = %v, want 2.5", got)
	}
}

func TestWeightedMedianMatchesPercentile50(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	weights := []float64{0.1, 0.2, 0.4, 0.2, 0.1}

	median, err := WeightedMedian(values, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pct, _ := WeightedPercentile(values, weights, 50)
	if median != pct {
		t.Errorf("WeightedMedian %v != WeightedPercentile(50) %v", median, pct)
	}
}

func TestWeightedMAD(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	weights := []float64{0.1, 0.2, 0.4, 0.2, 0.1}

	mad, err := WeightedMAD(values, weights, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// center 2.5; deviations 1.5,0.5,0.5,1.5,2.5. The two 0.5 deviations
	// sort first and together carry weight 0.6, so the 0.5 target falls
	// between them and the result is 0.5.
	if !almostEqual(mad, 0.5) {
		t.Errorf("mad = %v, want 0.5", mad)
	}
}

// P1: min/max/monotone-in-p invariants.
func TestWeightedPercentileP1MinMax(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	weights := UniformWeights(len(values))

	minGot, _ := WeightedPercentile(values, weights, 0)
	maxGot, _ := WeightedPercentile(values, weights, 100)

	if minGot != 1 {
		t.Errorf("p0 = %v, want 1", minGot)
	}
	if maxGot != 5 {
		t.Errorf("p100 = %v, want 5", maxGot)
	}

	prev := minGot
	for _, p := range []float64{0, 10, 25, 50, 75, 90, 100} {
		got, _ := WeightedPercentile(values, weights, p)
		if got < prev-1e-12 {
			t.Errorf("percentile not monotone at p=%v: got %v < prev %v", p, got, prev)
		}
		prev = got
	}
}

func TestWeightedPercentileErrors(t *testing.T) {
	if _, err := WeightedPercentile([]float64{1, 2}, []float64{1}, 50); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, err := WeightedPercentile([]float64{1, 2}, []float64{0.4, 0.4}, 50); err == nil {
		t.Error("expected error for weights not summing to 1")
	}
	if _, err := WeightedPercentile([]float64{1, 2}, []float64{0.5, 0.5}, 150); err == nil {
		t.Error("expected error for percentile out of range")
	}
}

func TestPercentileQuartiles(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	q1, err := Percentile(values, 25)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(q1, 3.25) {
		t.Errorf("q1 = %v, want 3.25", q1)
	}

	q3, err := Percentile(values, 75)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(q3, 7.75) {
		t.Errorf("q3 = %v, want 7.75", q3)
	}
}

func TestWeightedMADCustomCenter(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	weights := UniformWeights(5)
	center := 10.0

	mad, err := WeightedMAD(values, weights, &center)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// deviations from 10: 5,6,7,8,9 with cumulative weights 0.2..1.0; the
	// 0.5 target lies between 0.4 (6) and 0.6 (7), interpolating to 6.5.
	if !almostEqual(mad, 6.5) {
		t.Errorf("mad with custom center = %v, want 6.5", mad)
	}
}
