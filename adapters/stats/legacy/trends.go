// Package legacy implements the first-generation statistical engine. It
// treats every metric uniformly as trends data: a Gamma posterior over each
// variant's per-user event rate, with no per-metric-type specialization.
package legacy

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"expeval/adapters/stats/montecarlo"
	"expeval/domain/core"
	"expeval/domain/stats"
)

// Decision thresholds carried over from the original engine generation.
const (
	// MinimumExposure is the absolute exposure each variant needs before
	// any verdict other than not_enough_exposure is possible.
	MinimumExposure = 100

	// WinProbabilityBar is the probability-of-best a test variant must
	// reach for the result to count as conclusive.
	WinProbabilityBar = 0.9

	// ExpectedLossBar is the largest tolerable expected loss (in rate
	// units) for a conclusive winner.
	ExpectedLossBar = 0.01
)

// Strategy returns the v1 three-function contract.
func Strategy() stats.Strategy {
	return stats.Strategy{
		Probabilities:     Probabilities,
		Significance:      Significance,
		CredibleIntervals: CredibleIntervals,
	}
}

// ratePosterior is the Gamma posterior over a variant's per-user rate:
// shape count+1 (unit prior), rate equal to the exposure.
func ratePosterior(v stats.VariantSummary) distuv.Gamma {
	exposure := float64(v.UserCount)
	if exposure < 1 {
		exposure = 1
	}
	return distuv.Gamma{Alpha: v.Sum + 1, Beta: exposure}
}

// Probabilities returns each variant's probability of having the highest
// rate, in (control, tests...) order.
func Probabilities(control stats.VariantSummary, tests []stats.VariantSummary) ([]float64, error) {
	dists := make([]montecarlo.Quantiler, 0, len(tests)+1)
	dists = append(dists, ratePosterior(control))
	for _, t := range tests {
		dists = append(dists, ratePosterior(t))
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	return montecarlo.WinProbabilities(samples), nil
}

// Significance classifies the result. Order of the gates matters: exposure
// first, then win probability, then expected loss; only a result clearing
// all three is significant, with a Poisson rate-difference p-value.
func Significance(control stats.VariantSummary, tests []stats.VariantSummary, probabilities []float64) (stats.SignificanceCode, float64, error) {
	if control.UserCount < MinimumExposure {
		return stats.NotEnoughExposure, 1, nil
	}
	for _, t := range tests {
		if t.UserCount < MinimumExposure {
			return stats.NotEnoughExposure, 1, nil
		}
	}

	bestIdx, bestProb := 0, 0.0
	for i := 1; i < len(probabilities); i++ {
		if probabilities[i] > bestProb {
			bestIdx, bestProb = i, probabilities[i]
		}
	}
	if bestProb < WinProbabilityBar {
		return stats.LowWinProbability, 1, nil
	}

	all := append([]stats.VariantSummary{control}, tests...)
	dists := make([]montecarlo.Quantiler, len(all))
	for i, v := range all {
		dists[i] = ratePosterior(v)
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	others := make([][]float64, 0, len(samples)-1)
	for i := range samples {
		if i != bestIdx {
			others = append(others, samples[i])
		}
	}
	loss := montecarlo.ExpectedLoss(samples[bestIdx], others)
	if loss > ExpectedLossBar {
		return stats.HighLoss, loss, nil
	}

	return stats.Significant, rateDifferencePValue(control, all[bestIdx]), nil
}

// CredibleIntervals maps every variant to the central 95% range of its
// rate posterior, taken directly from the Gamma quantiles.
func CredibleIntervals(variants []stats.VariantSummary) (map[core.VariantKey]stats.CredibleInterval, error) {
	intervals := make(map[core.VariantKey]stats.CredibleInterval, len(variants))
	for _, v := range variants {
		dist := ratePosterior(v)
		intervals[v.Key] = stats.CredibleInterval{dist.Quantile(0.025), dist.Quantile(0.975)}
	}
	return intervals, nil
}

// rateDifferencePValue is a two-sided normal approximation of the Poisson
// rate difference between the champion and control.
func rateDifferencePValue(control, champion stats.VariantSummary) float64 {
	n1 := float64(control.UserCount)
	n2 := float64(champion.UserCount)
	if n1 == 0 || n2 == 0 {
		return 1
	}
	r1 := control.Sum / n1
	r2 := champion.Sum / n2
	se := r1/n1 + r2/n2
	if se <= 0 {
		return 1
	}
	z := math.Abs(r2-r1) / math.Sqrt(se)
	p := 2 * (1 - distuv.UnitNormal.CDF(z))
	if p < 0 {
		p = 0
	}
	return p
}
