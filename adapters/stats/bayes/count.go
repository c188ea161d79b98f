package bayes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"expeval/adapters/stats/montecarlo"
	"expeval/domain/core"
	"expeval/domain/stats"
)

// CountStrategy returns the v2 route for count metrics: a Gamma-Poisson
// model over each variant's per-user event rate.
func CountStrategy() stats.Strategy {
	return stats.Strategy{
		Probabilities:     CountProbabilities,
		Significance:      CountSignificance,
		CredibleIntervals: CountCredibleIntervals,
	}
}

// countPosterior is Gamma(1+count, 1+exposure): a unit prior updated with
// the observed totals, on the per-user rate scale.
func countPosterior(v stats.VariantSummary) distuv.Gamma {
	return distuv.Gamma{Alpha: 1 + v.Sum, Beta: 1 + float64(v.UserCount)}
}

// CountProbabilities returns each variant's probability of having the
// highest rate, (control, tests...) order.
func CountProbabilities(control stats.VariantSummary, tests []stats.VariantSummary) ([]float64, error) {
	dists := make([]montecarlo.Quantiler, 0, len(tests)+1)
	dists = append(dists, countPosterior(control))
	for _, t := range tests {
		dists = append(dists, countPosterior(t))
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	return montecarlo.WinProbabilities(samples), nil
}

// CountSignificance applies the exposure, win-probability and expected-loss
// gates, then reports a rate-difference p-value for a conclusive winner.
func CountSignificance(control stats.VariantSummary, tests []stats.VariantSummary, probabilities []float64) (stats.SignificanceCode, float64, error) {
	if !exposureGate(control, tests) {
		return stats.NotEnoughExposure, 1, nil
	}

	bestIdx, bestProb := bestTest(probabilities)
	if bestProb < WinProbabilityBar {
		return stats.LowWinProbability, 1, nil
	}

	all := append([]stats.VariantSummary{control}, tests...)
	dists := make([]montecarlo.Quantiler, len(all))
	for i, v := range all {
		dists[i] = countPosterior(v)
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	others := make([][]float64, 0, len(samples)-1)
	for i := range samples {
		if i != bestIdx {
			others = append(others, samples[i])
		}
	}
	if loss := montecarlo.ExpectedLoss(samples[bestIdx], others); loss > ExpectedLossBar {
		return stats.HighLoss, loss, nil
	}

	return stats.Significant, countPValue(control, all[bestIdx]), nil
}

// CountCredibleIntervals samples each variant's rate posterior and takes
// the central 95% range.
func CountCredibleIntervals(variants []stats.VariantSummary) (map[core.VariantKey]stats.CredibleInterval, error) {
	intervals := make(map[core.VariantKey]stats.CredibleInterval, len(variants))
	for _, v := range variants {
		samples := montecarlo.Draw(countPosterior(v), montecarlo.SampleCount)
		ci, err := montecarlo.CredibleInterval(samples)
		if err != nil {
			return nil, err
		}
		intervals[v.Key] = stats.CredibleInterval(ci)
	}
	return intervals, nil
}

// countPValue is a two-sided normal approximation of the Poisson rate
// difference between champion and control.
func countPValue(control, champion stats.VariantSummary) float64 {
	n1, n2 := float64(control.UserCount), float64(champion.UserCount)
	if n1 == 0 || n2 == 0 {
		return 1
	}
	r1, r2 := control.Sum/n1, champion.Sum/n2
	se := r1/n1 + r2/n2
	if se <= 0 {
		return 1
	}
	z := math.Abs(r2-r1) / math.Sqrt(se)
	p := 2 * (1 - distuv.UnitNormal.CDF(z))
	return math.Max(p, 0)
}
