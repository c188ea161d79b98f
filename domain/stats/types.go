package stats

import (
	"expeval/domain/core"
)

// VariantSummary is the minimal sufficient statistics for one variant:
// distinct exposed users, sum of per-user values, sum of squared values.
// Funnel consumption reinterprets (UserCount, Sum) as (total, successes).
type VariantSummary struct {
	Key        core.VariantKey `json:"key"`
	UserCount  int64           `json:"user_count"`
	Sum        float64         `json:"sum"`
	SumSquares float64         `json:"sum_squares"`
}

// SuccessCount is the funnel view: number of exposed users with at least
// one positive outcome.
func (v VariantSummary) SuccessCount() int64 {
	return int64(v.Sum)
}

// FailureCount is the funnel complement: exposed users with no outcome.
func (v VariantSummary) FailureCount() int64 {
	return v.UserCount - v.SuccessCount()
}

// SignificanceCode is the categorical verdict a strategy produces.
type SignificanceCode string

const (
	Significant       SignificanceCode = "significant"
	NotEnoughExposure SignificanceCode = "not_enough_exposure"
	HighLoss          SignificanceCode = "high_loss"
	LowWinProbability SignificanceCode = "low_win_probability"
	NotSignificant    SignificanceCode = "not_significant"
)

// CredibleInterval is a per-variant uncertainty range (low, high).
type CredibleInterval [2]float64

// InferenceResult is the uniform statistical verdict produced by whichever
// strategy the dispatcher selected.
type InferenceResult struct {
	Probabilities     []float64                            `json:"probabilities"`
	SignificanceCode  SignificanceCode                     `json:"significance_code"`
	PValue            float64                              `json:"p_value"`
	CredibleIntervals map[core.VariantKey]CredibleInterval `json:"credible_intervals"`
}

// Strategy is the fixed three-function contract every statistical engine
// route conforms to, regardless of engine generation or metric type.
//
// Probabilities returns one probability-of-being-best per variant in
// (control, tests...) order. Significance classifies the result and
// produces a p-value. CredibleIntervals maps each variant to its (low,
// high) range; input order is control first.
type Strategy struct {
	Probabilities     func(control VariantSummary, tests []VariantSummary) ([]float64, error)
	Significance      func(control VariantSummary, tests []VariantSummary, probabilities []float64) (SignificanceCode, float64, error)
	CredibleIntervals func(variants []VariantSummary) (map[core.VariantKey]CredibleInterval, error)
}

// SplitControl partitions summaries into the control row and the test rows,
// preserving order. Absence of the control row is a data integrity failure:
// downstream statistics are meaningless without a baseline.
func SplitControl(variants []VariantSummary) (VariantSummary, []VariantSummary, error) {
	var control *VariantSummary
	tests := make([]VariantSummary, 0, len(variants))
	for i := range variants {
		if variants[i].Key == core.ControlVariantKey && control == nil {
			v := variants[i]
			control = &v
			continue
		}
		tests = append(tests, variants[i])
	}
	if control == nil {
		return VariantSummary{}, nil, core.ErrMissingControl
	}
	return *control, tests, nil
}
