package detect

import "github.com/nutcas3/detectkit/internal/stats"

// seasonalityExactMatchBoost is the multiplier applied to a window row's
// raw weight when every configured seasonality feature matches the
// target point exactly, before renormalization. Any value > 1 satisfies
// the spec's "exact-match rows receive strictly greater weight" rule
// regardless of how many rows fall into each bucket, because the ratio
// between an exact-match row's weight and a non-matching row's weight is
// preserved by renormalization.
const seasonalityExactMatchBoost = 3.0

// seasonalityWeights computes a nonnegative weight vector summing to 1
// for a rolling window, giving seasonality-matching rows more influence
// over the baseline. When no seasonality columns are configured, or
// when every row matches (or none do), it degrades to uniform weights —
// which makes the adjusted baseline equal the unweighted (global)
// baseline, per spec. The second return value reports whether the
// weights are genuinely non-uniform, so callers that have a
// rank-based equivalent for the uniform case (see stats.Percentile)
// can prefer it over the cumulative-weight kernel.
func seasonalityWeights(target map[string]float64, window []map[string]float64, columns []string) ([]float64, bool) {
	n := len(window)
	if n == 0 {
		return nil, false
	}
	if len(columns) == 0 {
		return stats.UniformWeights(n), false
	}

	exact := make([]bool, n)
	numExact := 0
	for i, row := range window {
		if rowMatches(target, row, columns) {
			exact[i] = true
			numExact++
		}
	}
	if numExact == 0 || numExact == n {
		return stats.UniformWeights(n), false
	}

	raw := make([]float64, n)
	var sum float64
	for i := range raw {
		if exact[i] {
			raw[i] = seasonalityExactMatchBoost
		} else {
			raw[i] = 1.0
		}
		sum += raw[i]
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = raw[i] / sum
	}
	return weights, true
}

func rowMatches(target, row map[string]float64, columns []string) bool {
	for _, c := range columns {
		tv, tok := target[c]
		rv, rok := row[c]
		if !tok || !rok {
			return false
		}
		if tv != rv {
			return false
		}
	}
	return true
}
