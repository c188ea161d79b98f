package montecarlo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/stat/distuv"
)

func TestDrawIsDeterministic(t *testing.T) {
	dist := distuv.Beta{Alpha: 3, Beta: 7}
	first := Draw(dist, 1000)
	second := Draw(dist, 1000)
	assert.Equal(t, first, second)
}

func TestDrawAllIsDeterministic(t *testing.T) {
	dists := []Quantiler{
		distuv.Beta{Alpha: 3, Beta: 7},
		distuv.Beta{Alpha: 5, Beta: 5},
	}
	first := DrawAll(dists, 1000)
	second := DrawAll(dists, 1000)
	assert.Equal(t, first, second)
}

func TestWinProbabilitiesSeparatedDistributions(t *testing.T) {
	dists := []Quantiler{
		distuv.Normal{Mu: 0, Sigma: 1},
		distuv.Normal{Mu: 10, Sigma: 1},
	}
	probs := WinProbabilities(DrawAll(dists, SampleCount))
	require.Len(t, probs, 2)
	assert.Less(t, probs[0], 0.01)
	assert.Greater(t, probs[1], 0.99)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
}

func TestWinProbabilitiesSymmetric(t *testing.T) {
	dists := []Quantiler{
		distuv.Normal{Mu: 5, Sigma: 1},
		distuv.Normal{Mu: 5, Sigma: 1},
	}
	probs := WinProbabilities(DrawAll(dists, SampleCount))
	assert.InDelta(t, 0.5, probs[0], 0.05)
	assert.InDelta(t, 0.5, probs[1], 0.05)
}

func TestExpectedLossDominantChampion(t *testing.T) {
	champion := Draw(distuv.Normal{Mu: 10, Sigma: 0.1}, SampleCount)
	other := Draw(distuv.Normal{Mu: 0, Sigma: 0.1}, SampleCount)
	loss := ExpectedLoss(champion, [][]float64{other})
	assert.InDelta(t, 0, loss, 1e-6)
}

func TestExpectedLossTrailingChampion(t *testing.T) {
	champion := Draw(distuv.Normal{Mu: 0, Sigma: 0.1}, SampleCount)
	other := Draw(distuv.Normal{Mu: 1, Sigma: 0.1}, SampleCount)
	loss := ExpectedLoss(champion, [][]float64{other})
	assert.InDelta(t, 1.0, loss, 0.1)
}

func TestCredibleIntervalCoversCenter(t *testing.T) {
	samples := Draw(distuv.Normal{Mu: 5, Sigma: 1}, SampleCount)
	ci, err := CredibleInterval(samples)
	require.NoError(t, err)
	assert.Less(t, ci[0], 5.0)
	assert.Greater(t, ci[1], 5.0)
	// Central 95% of a unit-sigma normal is roughly +/- 1.96.
	assert.InDelta(t, 5-1.96, ci[0], 0.2)
	assert.InDelta(t, 5+1.96, ci[1], 0.2)
}

func TestCredibleIntervalEmptySamples(t *testing.T) {
	_, err := CredibleInterval(nil)
	assert.Error(t, err)
}
