package detect

import "testing"

func TestSeasonalityWeightsUniformWithoutColumns(t *testing.T) {
	window := []map[string]float64{{"hour": 1}, {"hour": 2}, {"hour": 3}}
	weights, isWeighted := seasonalityWeights(map[string]float64{"hour": 1}, window, nil)
	if isWeighted {
		t.Error("expected no seasonality columns to report non-weighted")
	}
	for _, w := range weights {
		if w != 1.0/3.0 {
			t.Errorf("expected uniform weight, got %v", w)
		}
	}
}

func TestSeasonalityWeightsUniformWhenAllMatch(t *testing.T) {
	window := []map[string]float64{{"hour": 5}, {"hour": 5}, {"hour": 5}}
	weights, isWeighted := seasonalityWeights(map[string]float64{"hour": 5}, window, []string{"hour"})
	if isWeighted {
		t.Error("expected all-match window to report non-weighted")
	}
	for _, w := range weights {
		if w != 1.0/3.0 {
			t.Errorf("expected uniform weight when all rows match, got %v", w)
		}
	}
}

func TestSeasonalityWeightsFavorExactMatch(t *testing.T) {
	window := []map[string]float64{{"hour": 5}, {"hour": 9}, {"hour": 5}}
	weights, isWeighted := seasonalityWeights(map[string]float64{"hour": 5}, window, []string{"hour"})
	if !isWeighted {
		t.Error("expected a partial match to report genuinely weighted")
	}

	if weights[0] <= weights[1] {
		t.Errorf("exact-match row must receive strictly greater weight than mismatch, got %v vs %v", weights[0], weights[1])
	}
	if weights[2] <= weights[1] {
		t.Errorf("exact-match row must receive strictly greater weight than mismatch, got %v vs %v", weights[2], weights[1])
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum < 0.999999999 || sum > 1.000000001 {
		t.Errorf("weights must sum to 1, got %v", sum)
	}
}
