package bayes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"expeval/adapters/stats/montecarlo"
	"expeval/domain/core"
	"expeval/domain/stats"
)

// ContinuousStrategy returns the v2 route for continuous metrics: a Normal
// posterior over each variant's per-user mean value, with the variance
// recovered from the sum of squares.
func ContinuousStrategy() stats.Strategy {
	return stats.Strategy{
		Probabilities:     ContinuousProbabilities,
		Significance:      ContinuousSignificance,
		CredibleIntervals: ContinuousCredibleIntervals,
	}
}

// meanVariance recovers the per-user sample mean and variance from the
// sufficient statistics (n, sum, sum of squares).
func meanVariance(v stats.VariantSummary) (mean, variance float64) {
	n := float64(v.UserCount)
	if n == 0 {
		return 0, 0
	}
	mean = v.Sum / n
	if v.UserCount > 1 {
		variance = (v.SumSquares - n*mean*mean) / (n - 1)
	}
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// meanPosterior is the Normal posterior over the variant's mean: centered
// at the sample mean with the standard error as scale. A floor on the
// scale keeps the distribution proper for degenerate inputs.
func meanPosterior(v stats.VariantSummary) distuv.Normal {
	mean, variance := meanVariance(v)
	n := math.Max(float64(v.UserCount), 1)
	sigma := math.Sqrt(variance / n)
	if sigma < 1e-12 {
		sigma = 1e-12
	}
	return distuv.Normal{Mu: mean, Sigma: sigma}
}

// ContinuousProbabilities returns each variant's probability of having the
// highest mean, (control, tests...) order.
func ContinuousProbabilities(control stats.VariantSummary, tests []stats.VariantSummary) ([]float64, error) {
	dists := make([]montecarlo.Quantiler, 0, len(tests)+1)
	dists = append(dists, meanPosterior(control))
	for _, t := range tests {
		dists = append(dists, meanPosterior(t))
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	return montecarlo.WinProbabilities(samples), nil
}

// ContinuousSignificance mirrors the count gates; the conclusive p-value
// is a Welch t-test on the recovered means and variances.
func ContinuousSignificance(control stats.VariantSummary, tests []stats.VariantSummary, probabilities []float64) (stats.SignificanceCode, float64, error) {
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
		dists[i] = meanPosterior(v)
	}
	samples := montecarlo.DrawAll(dists, montecarlo.SampleCount)
	others := make([][]float64, 0, len(samples)-1)
	for i := range samples {
		if i != bestIdx {
			others = append(others, samples[i])
		}
	}
	// Expected loss on the mean scale, normalized by the control mean so
	// the bar is comparable across metrics with different units.
	loss := montecarlo.ExpectedLoss(samples[bestIdx], others)
	if controlMean, _ := meanVariance(control); controlMean > 0 {
		loss /= controlMean
	}
	if loss > ExpectedLossBar {
		return stats.HighLoss, loss, nil
	}

	return stats.Significant, welchPValue(control, all[bestIdx]), nil
}

// ContinuousCredibleIntervals samples each variant's mean posterior and
// takes the central 95% range.
func ContinuousCredibleIntervals(variants []stats.VariantSummary) (map[core.VariantKey]stats.CredibleInterval, error) {
	intervals := make(map[core.VariantKey]stats.CredibleInterval, len(variants))
	for _, v := range variants {
		samples := montecarlo.Draw(meanPosterior(v), montecarlo.SampleCount)
		ci, err := montecarlo.CredibleInterval(samples)
		if err != nil {
			return nil, err
		}
		intervals[v.Key] = stats.CredibleInterval(ci)
	}
	return intervals, nil
}

// welchPValue is a two-sided Welch t-test between champion and control
// using the Welch-Satterthwaite degrees of freedom.
func welchPValue(control, champion stats.VariantSummary) float64 {
	m1, v1 := meanVariance(control)
	m2, v2 := meanVariance(champion)
	n1, n2 := float64(control.UserCount), float64(champion.UserCount)
	if n1 < 2 || n2 < 2 {
		return 1
	}
	se := v1/n1 + v2/n2
	if se <= 0 {
		return 1
	}
	t := math.Abs(m2-m1) / math.Sqrt(se)
	df := se * se / ((v1*v1)/(n1*n1*(n1-1)) + (v2*v2)/(n2*n2*(n2-1)))
	if df <= 0 || math.IsNaN(df) {
		return 1
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - tDist.CDF(t))
	return math.Max(p, 0)
}
