// Package bayes implements the second-generation statistical engines, one
// routine per metric type. All three share the gate structure (exposure,
// win probability, expected loss) but differ in posterior family: Gamma
// for counts, Normal for continuous means, Beta for funnel conversion.
package bayes

import (
	"expeval/domain/stats"
)

// Decision thresholds for the v2 engines.
const (
	MinimumExposure   = 100
	WinProbabilityBar = 0.9
	ExpectedLossBar   = 0.01
)

// exposureGate returns true when every variant clears the minimum
// exposure. All v2 routes apply it before any probabilistic verdict.
func exposureGate(control stats.VariantSummary, tests []stats.VariantSummary) bool {
	if control.UserCount < MinimumExposure {
		return false
	}
	for _, t := range tests {
		if t.UserCount < MinimumExposure {
			return false
		}
	}
	return true
}

// bestTest picks the test variant with the highest win probability.
// probabilities are in (control, tests...) order; the returned index is
// into that same ordering.
func bestTest(probabilities []float64) (int, float64) {
	bestIdx, bestProb := 0, 0.0
	for i := 1; i < len(probabilities); i++ {
		if probabilities[i] > bestProb {
			bestIdx, bestProb = i, probabilities[i]
		}
	}
	return bestIdx, bestProb
}
