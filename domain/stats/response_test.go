package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expeval/domain/metric"
)

func TestResponseJSONFunnelRowsUnderVariantsKey(t *testing.T) {
	resp := EvaluationResponse{
		Kind:   "ExperimentQuery",
		Metric: metric.Definition{Type: metric.TypeFunnel, Event: &metric.EventConfig{Event: "purchase"}},
		FunnelVariants: []FunnelVariant{
			{Key: "control", SuccessCount: 40, FailureCount: 60},
			{Key: "test", SuccessCount: 55, FailureCount: 45},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"variants":[{"key":"control","success_count":40,"failure_count":60}`)
	assert.NotContains(t, string(data), "funnel_variants")

	var decoded EvaluationResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, resp.FunnelVariants, decoded.FunnelVariants)
	assert.Empty(t, decoded.TrendsVariants)
}

func TestResponseJSONTrendsRowsUnderVariantsKey(t *testing.T) {
	resp := EvaluationResponse{
		Kind:   "ExperimentQuery",
		Metric: metric.Definition{Type: metric.TypeCount, Event: &metric.EventConfig{Event: "purchase"}},
		TrendsVariants: []TrendsVariant{
			{Key: "control", Count: 20, Exposure: 200, AbsoluteExposure: 200},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"variants":[{"key":"control","count":20,"exposure":200,"absolute_exposure":200}]`)

	var decoded EvaluationResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, resp.TrendsVariants, decoded.TrendsVariants)
	assert.Empty(t, decoded.FunnelVariants)
}

func TestResponseJSONOmitsVariantsWhenEmpty(t *testing.T) {
	data, err := json.Marshal(EvaluationResponse{Kind: "ExperimentQuery"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"variants"`)
}
