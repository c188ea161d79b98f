package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expeval/domain/core"
	"expeval/domain/stats"
)

func TestCountSignificanceClearWinner(t *testing.T) {
	control := stats.VariantSummary{Key: "control", UserCount: 1000, Sum: 100}
	tests := []stats.VariantSummary{{Key: "test", UserCount: 1000, Sum: 300}}

	probs, err := CountProbabilities(control, tests)
	require.NoError(t, err)
	assert.Greater(t, probs[1], 0.99)

	code, pValue, err := CountSignificance(control, tests, probs)
	require.NoError(t, err)
	assert.Equal(t, stats.Significant, code)
	assert.Less(t, pValue, 0.05)
}

func TestCountSignificanceExposureGate(t *testing.T) {
	control := stats.VariantSummary{Key: "control", UserCount: 1000, Sum: 100}
	tests := []stats.VariantSummary{{Key: "test", UserCount: 99, Sum: 30}}

	code, _, err := CountSignificance(control, tests, []float64{0.0, 1.0})
	require.NoError(t, err)
	assert.Equal(t, stats.NotEnoughExposure, code)
}

func TestCountSignificanceIdenticalArms(t *testing.T) {
	control := stats.VariantSummary{Key: "control", UserCount: 1000, Sum: 100}
	tests := []stats.VariantSummary{{Key: "test", UserCount: 1000, Sum: 100}}

	probs, err := CountProbabilities(control, tests)
	require.NoError(t, err)

	code, _, err := CountSignificance(control, tests, probs)
	require.NoError(t, err)
	assert.Equal(t, stats.LowWinProbability, code)
}

func TestCountCredibleIntervalsBracketRate(t *testing.T) {
	intervals, err := CountCredibleIntervals([]stats.VariantSummary{
		{Key: "control", UserCount: 1000, Sum: 100},
	})
	require.NoError(t, err)
	ci := intervals["control"]
	assert.Less(t, ci[0], 0.1)
	assert.Greater(t, ci[1], 0.1)
}

func continuousSummary(key string, n int64, mean, variance float64) stats.VariantSummary {
	nf := float64(n)
	return stats.VariantSummary{
		Key:        core.VariantKey(key),
		UserCount:  n,
		Sum:        mean * nf,
		SumSquares: nf*mean*mean + variance*(nf-1),
	}
}

func TestMeanVarianceRecoversSufficientStats(t *testing.T) {
	v := continuousSummary("control", 1000, 10, 4)
	mean, variance := meanVariance(v)
	assert.InDelta(t, 10, mean, 1e-9)
	assert.InDelta(t, 4, variance, 1e-9)
}

func TestContinuousSignificanceClearWinner(t *testing.T) {
	control := continuousSummary("control", 1000, 10, 4)
	tests := []stats.VariantSummary{continuousSummary("test", 1000, 11, 4)}

	probs, err := ContinuousProbabilities(control, tests)
	require.NoError(t, err)
	assert.Greater(t, probs[1], 0.99)

	code, pValue, err := ContinuousSignificance(control, tests, probs)
	require.NoError(t, err)
	assert.Equal(t, stats.Significant, code)
	assert.Less(t, pValue, 0.05)
}

func TestContinuousSignificanceIdenticalArms(t *testing.T) {
	control := continuousSummary("control", 1000, 10, 4)
	tests := []stats.VariantSummary{continuousSummary("test", 1000, 10, 4)}

	probs, err := ContinuousProbabilities(control, tests)
	require.NoError(t, err)

	code, _, err := ContinuousSignificance(control, tests, probs)
	require.NoError(t, err)
	assert.Equal(t, stats.LowWinProbability, code)
}

func TestContinuousCredibleIntervalsBracketMean(t *testing.T) {
	intervals, err := ContinuousCredibleIntervals([]stats.VariantSummary{
		continuousSummary("control", 1000, 10, 4),
	})
	require.NoError(t, err)
	ci := intervals["control"]
	assert.Less(t, ci[0], 10.0)
	assert.Greater(t, ci[1], 10.0)
}

func TestFunnelSignificanceClearWinner(t *testing.T) {
	control := stats.VariantSummary{Key: "control", UserCount: 1000, Sum: 100}
	tests := []stats.VariantSummary{{Key: "test", UserCount: 1000, Sum: 300}}

	probs, err := FunnelProbabilities(control, tests)
	require.NoError(t, err)
	assert.Greater(t, probs[1], 0.99)

	code, pValue, err := FunnelSignificance(control, tests, probs)
	require.NoError(t, err)
	assert.Equal(t, stats.Significant, code)
	assert.Less(t, pValue, 0.05)
}

func TestFunnelSignificanceExposureGate(t *testing.T) {
	control := stats.VariantSummary{Key: "control", UserCount: 10, Sum: 1}
	tests := []stats.VariantSummary{{Key: "test", UserCount: 1000, Sum: 300}}

	code, _, err := FunnelSignificance(control, tests, []float64{0.0, 1.0})
	require.NoError(t, err)
	assert.Equal(t, stats.NotEnoughExposure, code)
}

func TestFunnelCredibleIntervalsBracketConversion(t *testing.T) {
	intervals, err := FunnelCredibleIntervals([]stats.VariantSummary{
		{Key: "control", UserCount: 1000, Sum: 100},
		{Key: "test", UserCount: 1000, Sum: 300},
	})
	require.NoError(t, err)

	control := intervals["control"]
	assert.Less(t, control[0], 0.1)
	assert.Greater(t, control[1], 0.1)

	test := intervals["test"]
	assert.Greater(t, test[0], control[1], "separated conversion rates should have disjoint intervals")
}

func TestBestTestIgnoresControl(t *testing.T) {
	idx, prob := bestTest([]float64{0.95, 0.03, 0.02})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.03, prob, 1e-9)
}
