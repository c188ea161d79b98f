package bayes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"expeval/adapters/stats/montecarlo"
	"expeval/domain/core"
	"expeval/domain/stats"
)

// FunnelStrategy returns the v2 route for funnel metrics: a Beta posterior
// over each variant's conversion rate, built from success/failure counts.
func FunnelStrategy() stats.Strategy {
	return stats.Strategy{
		Probabilities:     FunnelProbabilities,
		Significance:      FunnelSignificance,
		CredibleIntervals: FunnelCredibleIntervals,
	}
}

// conversionPosterior is Beta(1+successes, 1+failures): a uniform prior
// updated with the funnel view of the summary.
func conversionPosterior(v stats.VariantSummary) distuv.Beta {
	return distuv.Beta{
		Alpha: 1 + float64(v.SuccessCount()),
		Beta:  1 + float64(v.FailureCount()),
	}
}

// FunnelProbabilities returns each variant's probability of having the
// highest conversion rate, (control, tests...) order.
func FunnelProbabilities(control stats.VariantSummary, tests []stats.VariantSummary) ([]float64, error) {
	dists := make([]montecarlo.Quantiler, 0, len(tests)+1)
	dists = append(dists, conversionPosterior(control))
	for _, t := range tests {
		dists = append(dists, conversionPosterior(t))
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	return montecarlo.WinProbabilities(samples), nil
}

// FunnelSignificance applies the shared gates; the conclusive p-value is a
// two-proportion z-test on conversion rates.
func FunnelSignificance(control stats.VariantSummary, tests []stats.VariantSummary, probabilities []float64) (stats.SignificanceCode, float64, error) {
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
		dists[i] = conversionPosterior(v)
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

	return stats.Significant, twoProportionPValue(control, all[bestIdx]), nil
}

// FunnelCredibleIntervals samples each variant's conversion posterior and
// takes the central 95% range.
func FunnelCredibleIntervals(variants []stats.VariantSummary) (map[core.VariantKey]stats.CredibleInterval, error) {
	intervals := make(map[core.VariantKey]stats.CredibleInterval, len(variants))
	for _, v := range variants {
		samples := montecarlo.Draw(conversionPosterior(v), montecarlo.SampleCount)
		ci, err := montecarlo.CredibleInterval(samples)
		if err != nil {
			return nil, err
		}
		intervals[v.Key] = stats.CredibleInterval(ci)
	}
	return intervals, nil
}

// twoProportionPValue is a two-sided pooled z-test on conversion rates.
func twoProportionPValue(control, champion stats.VariantSummary) float64 {
	n1, n2 := float64(control.UserCount), float64(champion.UserCount)
	if n1 == 0 || n2 == 0 {
		return 1
	}
	p1 := float64(control.SuccessCount()) / n1
	p2 := float64(champion.SuccessCount()) / n2
	pooled := (float64(control.SuccessCount()) + float64(champion.SuccessCount())) / (n1 + n2)
	se := pooled * (1 - pooled) * (1/n1 + 1/n2)
	if se <= 0 {
		return 1
	}
	z := math.Abs(p2-p1) / math.Sqrt(se)
	p := 2 * (1 - distuv.UnitNormal.CDF(z))
	return math.Max(p, 0)
}
