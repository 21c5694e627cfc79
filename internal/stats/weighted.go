// Package stats provides the weighted statistics kernel used by the
// detectors: weighted percentile/median/MAD over an explicit weight
// vector. The kernel is deliberately oblivious to seasonality — callers
// decide the weighting policy (see internal/detect/seasonality.go).
package stats

import (
	"math"
	"sort"

	"github.com/nutcas3/detectkit/internal/core"
	gonumstat "gonum.org/v1/gonum/stat"
)

const weightSumTolerance = 1e-9

// WeightedPercentile computes the p-th weighted percentile (p in [0,100])
// of values, using linear interpolation between adjacent cumulative-weight
// brackets. weights must sum to 1 within weightSumTolerance.
func WeightedPercentile(values, weights []float64, p float64) (float64, error) {
	if len(values) != len(weights) {
		return 0, &core.BadInputError{Reason: "values and weights must have the same length"}
	}
	if len(values) == 0 {
		return 0, &core.BadInputError{Reason: "values must not be empty"}
	}
	if p < 0 || p > 100 {
		return 0, &core.BadInputError{Reason: "percentile must be in [0, 100]"}
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return 0, &core.BadInputError{Reason: "weights must sum to 1"}
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	sortedValues := make([]float64, len(values))
	sortedWeights := make([]float64, len(values))
	for i, j := range idx {
		sortedValues[i] = values[j]
		sortedWeights[i] = weights[j]
	}

	cumsum := make([]float64, len(sortedWeights))
	running := 0.0
	for i, w := range sortedWeights {
		running += w
		cumsum[i] = running
	}

	target := p / 100.0

	// Before the first bracket.
	if target <= cumsum[0] {
		return sortedValues[0], nil
	}
	// Beyond the last bracket.
	if target >= cumsum[len(cumsum)-1] {
		return sortedValues[len(sortedValues)-1], nil
	}

	upperIdx := sort.SearchFloat64s(cumsum, target)
	lowerIdx := upperIdx - 1

	lowerWeight := cumsum[lowerIdx]
	upperWeight := cumsum[upperIdx]

	if math.Abs(upperWeight-lowerWeight) < weightSumTolerance {
		return sortedValues[upperIdx], nil
	}

	fraction := (target - lowerWeight) / (upperWeight - lowerWeight)
	return sortedValues[lowerIdx] + fraction*(sortedValues[upperIdx]-sortedValues[lowerIdx]), nil
}

// WeightedMedian is WeightedPercentile(..., 50).
func WeightedMedian(values, weights []float64) (float64, error) {
	return WeightedPercentile(values, weights, 50)
}

// WeightedMAD computes the weighted median absolute deviation from center.
// If center is nil, the weighted median of values is used.
func WeightedMAD(values, weights []float64, center *float64) (float64, error) {
	c := 0.0
	if center != nil {
		c = *center
	} else {
		m, err := WeightedMedian(values, weights)
		if err != nil {
			return 0, err
		}
		c = m
	}

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - c)
	}
	return WeightedMedian(deviations, weights)
}

// Percentile computes the classical rank-interpolated percentile (the
// "linear" method numpy.percentile defaults to): for n values and p in
// [0,100], it interpolates between the values at ranks floor(h) and
// ceil(h) where h = (n-1)*p/100. This is the uniform-weight case the
// IQR detector's quartiles are pinned to; WeightedPercentile's
// cumulative-bracket formula does not coincide with it even when every
// weight is equal, so the two are kept as separate primitives rather
// than one calling the other.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, &core.BadInputError{Reason: "values must not be empty"}
	}
	if p < 0 || p > 100 {
		return 0, &core.BadInputError{Reason: "percentile must be in [0, 100]"}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0], nil
	}

	h := float64(len(sorted)-1) * p / 100.0
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo], nil
	}
	fraction := h - float64(lo)
	return sorted[lo] + fraction*(sorted[hi]-sorted[lo]), nil
}

// WeightedMean and WeightedStdDev back the Z-Score detector's baseline.
// WeightedMean delegates to gonum's stat.Mean; WeightedStdDev (below)
// computes its sums directly.
func WeightedMean(values, weights []float64) (float64, error) {
	if len(values) != len(weights) {
		return 0, &core.BadInputError{Reason: "values and weights must have the same length"}
	}
	if len(values) == 0 {
		return 0, &core.BadInputError{Reason: "values must not be empty"}
	}
	return gonumstat.Mean(values, weights), nil
}

// WeightedStdDev returns the weighted standard deviation of values. A
// single-element input has zero spread by definition.
//
// This is hand-rolled rather than routed through gonum's stat.StdDev:
// gonum treats weights as reliability weights and applies a Bessel-style
// correction (dividing by sumWeights-1), which is only valid when
// weights are count-like. Every caller here passes weights renormalized
// to sum to exactly 1 (UniformWeights, seasonality weights), so
// sumWeights-1 is 0 and gonum's formula returns +Inf. With probability
// weights the population variance is simply the weighted mean of
// squared deviations, sum(w_i*(x_i-mean)^2)/sum(w_i).
func WeightedStdDev(values, weights []float64) (float64, error) {
	if len(values) != len(weights) {
		return 0, &core.BadInputError{Reason: "values and weights must have the same length"}
	}
	if len(values) == 0 {
		return 0, &core.BadInputError{Reason: "values must not be empty"}
	}
	if len(values) == 1 {
		return 0, nil
	}

	mean, err := WeightedMean(values, weights)
	if err != nil {
		return 0, err
	}

	var sumWeights, weightedSS float64
	for i, v := range values {
		d := v - mean
		weightedSS += weights[i] * d * d
		sumWeights += weights[i]
	}
	if sumWeights == 0 {
		return 0, nil
	}
	return math.Sqrt(weightedSS / sumWeights), nil
}

// UniformWeights returns a weight vector of length n summing to 1 (each
// weight 1/n), used by detectors with no seasonality configured.
func UniformWeights(n int) []float64 {
	w := make([]float64, n)
	if n == 0 {
		return w
	}
	each := 1.0 / float64(n)
	for i := range w {
		w[i] = each
	}
	return w
}
