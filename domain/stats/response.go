package stats

import (
	"encoding/json"

	"expeval/domain/core"
	"expeval/domain/metric"
)

// TrendsVariant is the raw per-variant stats shape for count and
// continuous metrics.
type TrendsVariant struct {
	Key              core.VariantKey `json:"key"`
	Count            float64         `json:"count"`
	Exposure         int64           `json:"exposure"`
	AbsoluteExposure int64           `json:"absolute_exposure"`
}

// FunnelVariant is the raw per-variant stats shape for funnel metrics.
type FunnelVariant struct {
	Key          core.VariantKey `json:"key"`
	SuccessCount int64           `json:"success_count"`
	FailureCount int64           `json:"failure_count"`
}

// EvaluationResponse is the uniform evaluation result. On the wire both
// metric shapes share one "variants" key; which row type it carries
// follows the metric type, so callers read a single field regardless of
// engine version or metric internals.
type EvaluationResponse struct {
	Kind              string                               `json:"kind"`
	Metric            metric.Definition                    `json:"metric"`
	TrendsVariants    []TrendsVariant                      `json:"-"`
	FunnelVariants    []FunnelVariant                      `json:"-"`
	Probability       map[core.VariantKey]float64          `json:"probability"`
	Significant       bool                                 `json:"significant"`
	SignificanceCode  SignificanceCode                     `json:"significance_code"`
	PValue            float64                              `json:"p_value"`
	CredibleIntervals map[core.VariantKey]CredibleInterval `json:"credible_intervals"`
	StatsVersion      int                                  `json:"stats_version"`
	ComputedAt        core.Timestamp                       `json:"computed_at"`
	IsCached          bool                                 `json:"is_cached"`
}

// MarshalJSON emits whichever variants list is populated under the shared
// "variants" key.
func (r EvaluationResponse) MarshalJSON() ([]byte, error) {
	type alias EvaluationResponse
	var variants interface{}
	switch {
	case len(r.FunnelVariants) > 0:
		variants = r.FunnelVariants
	case len(r.TrendsVariants) > 0:
		variants = r.TrendsVariants
	}
	return json.Marshal(struct {
		alias
		Variants interface{} `json:"variants,omitempty"`
	}{alias(r), variants})
}

// UnmarshalJSON decodes the shared "variants" key into the row type the
// metric type dictates.
func (r *EvaluationResponse) UnmarshalJSON(data []byte) error {
	type alias EvaluationResponse
	aux := struct {
		*alias
		Variants json.RawMessage `json:"variants"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Variants) == 0 {
		return nil
	}
	if r.Metric.Type == metric.TypeFunnel {
		return json.Unmarshal(aux.Variants, &r.FunnelVariants)
	}
	return json.Unmarshal(aux.Variants, &r.TrendsVariants)
}
