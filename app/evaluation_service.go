package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expeval/domain/core"
	"expeval/domain/experiment"
	"expeval/domain/metric"
	"expeval/domain/stats"
	"expeval/ports"
)

// RouteKey addresses one statistical inference route: an engine generation
// crossed with a metric type.
type RouteKey struct {
	Version experiment.StatsVersion
	Metric  metric.Type
}

// StrategyTable maps routes to strategies. Built once at wiring time and
// resolved once per request, never re-branched at call sites.
type StrategyTable map[RouteKey]stats.Strategy

// Resolve returns the strategy for the route. An unknown metric type at
// dispatch is a fatal configuration error, not a silent default.
func (t StrategyTable) Resolve(version experiment.StatsVersion, metricType metric.Type) (stats.Strategy, error) {
	if s, ok := t[RouteKey{Version: version, Metric: metricType}]; ok {
		return s, nil
	}
	return stats.Strategy{}, core.NewUnsupportedMetricTypeError(string(metricType))
}

// EvaluationRequest asks for one experiment/metric verdict.
type EvaluationRequest struct {
	ExperimentID core.ExperimentID `json:"experiment_id"`
	Metric       metric.Definition `json:"metric"`
	ForceRefresh bool              `json:"force_refresh,omitempty"`
}

// Validate rejects the request before any query is built.
func (r EvaluationRequest) Validate() error {
	if r.ExperimentID == "" {
		return core.ErrMissingExperimentID
	}
	return r.Metric.Validate()
}

// CacheKey identifies the request's result across invocations.
func (r EvaluationRequest) CacheKey() string {
	return r.ExperimentID.String() + "|" + r.Metric.Fingerprint()
}

// SourceQuery rejects use of the evaluator as a generic nested query
// source; the plan's summary output is not a row source for other
// insights.
func (r EvaluationRequest) SourceQuery() error {
	return core.NewSourceQueryError(r.Metric.Kind)
}

// EvaluationService orchestrates the metric evaluation pipeline: context
// resolution, plan construction, execution, statistical dispatch and
// response assembly.
type EvaluationService struct {
	experiments ports.ExperimentRepository
	actions     ports.ActionRepository
	executor    ports.QueryExecutor
	cache       ports.ResultCache
	strategies  StrategyTable
	freshness   FreshnessPolicy
	now         func() time.Time
	logger      *slog.Logger
}

// NewEvaluationService wires the pipeline. A nil freshness policy defaults
// to the 24-hour window; a nil clock defaults to time.Now.
func NewEvaluationService(
	experiments ports.ExperimentRepository,
	actions ports.ActionRepository,
	executor ports.QueryExecutor,
	cache ports.ResultCache,
	strategies StrategyTable,
	freshness FreshnessPolicy,
	logger *slog.Logger,
) *EvaluationService {
	if freshness == nil {
		freshness = FreshnessWindow(DefaultResultTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluationService{
		experiments: experiments,
		actions:     actions,
		executor:    executor,
		cache:       cache,
		strategies:  strategies,
		freshness:   freshness,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *EvaluationService) WithClock(now func() time.Time) *EvaluationService {
	s.now = now
	return s
}

// Evaluate returns the verdict for the request, serving a cached result
// while it is fresh and recomputing otherwise. Concurrent requests for the
// same stale key collapse into one computation.
func (s *EvaluationService) Evaluate(ctx context.Context, req EvaluationRequest) (*stats.EvaluationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.CacheKey()
	if !req.ForceRefresh {
		if cached, ok := s.cache.Get(ctx, key); ok && s.freshness(cached.ComputedAt, s.now()) {
			s.logger.Debug("serving cached experiment result", "experiment_id", req.ExperimentID, "computed_at", cached.ComputedAt)
			resp := cached.Response
			resp.IsCached = true
			return &resp, nil
		}
	}

	result, err := s.cache.Compute(ctx, key, func(ctx context.Context) (*ports.CachedResult, error) {
		resp, err := s.compute(ctx, req)
		if err != nil {
			return nil, err
		}
		return &ports.CachedResult{Response: *resp, ComputedAt: resp.ComputedAt}, nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, *result)

	resp := result.Response
	return &resp, nil
}

// compute runs the full pipeline once: one plan, one execution, one
// dispatch. Failures from the execution engine surface unchanged.
func (s *EvaluationService) compute(ctx context.Context, req EvaluationRequest) (*stats.EvaluationResponse, error) {
	started := s.now()

	exp, err := s.experiments.GetExperiment(ctx, req.ExperimentID)
	if err != nil {
		return nil, err
	}
	team, err := s.experiments.GetTeam(ctx, exp.TeamID)
	if err != nil {
		return nil, err
	}
	expCtx, err := experiment.NewContext(*exp, *team)
	if err != nil {
		return nil, err
	}

	def := normalizeMetric(req.Metric)

	summaries, err := s.evaluateSummaries(ctx, expCtx, def)
	if err != nil {
		return nil, err
	}

	control, tests, err := stats.SplitControl(summaries)
	if err != nil {
		return nil, err
	}

	inference, err := s.dispatch(expCtx.StatsVersion, def.Type, control, tests)
	if err != nil {
		return nil, err
	}

	resp := assembleResponse(def, expCtx.StoredVersion, control, tests, inference)
	resp.ComputedAt = core.NewTimestamp(s.now())

	s.logger.Info("experiment evaluated",
		"experiment_id", req.ExperimentID,
		"metric_type", def.Type,
		"stats_version", expCtx.StoredVersion,
		"variants", len(summaries),
		"significant", resp.Significant,
		"duration_ms", s.now().Sub(started).Milliseconds(),
	)
	return resp, nil
}

// evaluateSummaries builds the plan, submits it once to the execution
// engine and shapes the returned tuples into variant summaries.
func (s *EvaluationService) evaluateSummaries(ctx context.Context, expCtx *experiment.Context, def metric.Definition) ([]stats.VariantSummary, error) {
	plan, err := NewPlanBuilder(expCtx, def, s.actions).Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.executor.Execute(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("executing experiment query: %w", err)
	}

	summaries := make([]stats.VariantSummary, 0, len(rows))
	for _, row := range rows {
		summary, err := summaryFromRow(row)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// dispatch resolves the (engine version, metric type) route once and
// invokes the strategy's three functions with the fixed contract. An empty
// test list still calls through; degenerate behavior is the strategy's.
func (s *EvaluationService) dispatch(version experiment.StatsVersion, metricType metric.Type, control stats.VariantSummary, tests []stats.VariantSummary) (*stats.InferenceResult, error) {
	strategy, err := s.strategies.Resolve(version, metricType)
	if err != nil {
		return nil, err
	}

	probabilities, err := strategy.Probabilities(control, tests)
	if err != nil {
		return nil, fmt.Errorf("computing probabilities: %w", err)
	}
	code, pValue, err := strategy.Significance(control, tests, probabilities)
	if err != nil {
		return nil, fmt.Errorf("computing significance: %w", err)
	}
	ordered := append([]stats.VariantSummary{control}, tests...)
	intervals, err := strategy.CredibleIntervals(ordered)
	if err != nil {
		return nil, fmt.Errorf("computing credible intervals: %w", err)
	}

	return &stats.InferenceResult{
		Probabilities:     probabilities,
		SignificanceCode:  code,
		PValue:            pValue,
		CredibleIntervals: intervals,
	}, nil
}

// assembleResponse merges variant summaries and the inference result into
// the uniform response. The shape never depends on metric type or engine
// version beyond which variants list is populated; the version argument is
// the experiment's stored value, echoed as recorded.
func assembleResponse(def metric.Definition, version int, control stats.VariantSummary, tests []stats.VariantSummary, inference *stats.InferenceResult) *stats.EvaluationResponse {
	ordered := append([]stats.VariantSummary{control}, tests...)

	probability := make(map[core.VariantKey]float64, len(ordered))
	for i, v := range ordered {
		if i < len(inference.Probabilities) {
			probability[v.Key] = inference.Probabilities[i]
		}
	}

	resp := &stats.EvaluationResponse{
		Kind:              "ExperimentQuery",
		Metric:            def,
		Probability:       probability,
		Significant:       inference.SignificanceCode == stats.Significant,
		SignificanceCode:  inference.SignificanceCode,
		PValue:            inference.PValue,
		CredibleIntervals: inference.CredibleIntervals,
		StatsVersion:      version,
	}

	if def.Type == metric.TypeFunnel {
		resp.FunnelVariants = make([]stats.FunnelVariant, 0, len(ordered))
		for _, v := range ordered {
			resp.FunnelVariants = append(resp.FunnelVariants, stats.FunnelVariant{
				Key:          v.Key,
				SuccessCount: v.SuccessCount(),
				FailureCount: v.FailureCount(),
			})
		}
		return resp
	}

	resp.TrendsVariants = make([]stats.TrendsVariant, 0, len(ordered))
	for _, v := range ordered {
		resp.TrendsVariants = append(resp.TrendsVariants, stats.TrendsVariant{
			Key:              v.Key,
			Count:            v.Sum,
			Exposure:         v.UserCount,
			AbsoluteExposure: v.UserCount,
		})
	}
	return resp
}

// normalizeMetric fills in the default metric type: unset means count.
func normalizeMetric(def metric.Definition) metric.Definition {
	if def.Type == "" {
		def.Type = metric.TypeCount
	}
	return def
}

// summaryFromRow shapes one executor tuple (variant, num_users, total_sum,
// total_sum_of_squares) into a variant summary.
func summaryFromRow(row ports.Row) (stats.VariantSummary, error) {
	if len(row) < 4 {
		return stats.VariantSummary{}, fmt.Errorf("variant results row has %d columns, want 4", len(row))
	}
	key, ok := row[0].(string)
	if !ok {
		if b, isBytes := row[0].([]byte); isBytes {
			key = string(b)
		} else {
			return stats.VariantSummary{}, fmt.Errorf("variant key column has type %T, want string", row[0])
		}
	}
	users, err := toInt64(row[1])
	if err != nil {
		return stats.VariantSummary{}, fmt.Errorf("num_users: %w", err)
	}
	sum, err := toFloat64(row[2])
	if err != nil {
		return stats.VariantSummary{}, fmt.Errorf("total_sum: %w", err)
	}
	sumSquares, err := toFloat64(row[3])
	if err != nil {
		return stats.VariantSummary{}, fmt.Errorf("total_sum_of_squares: %w", err)
	}
	return stats.VariantSummary{
		Key:        core.VariantKey(key),
		UserCount:  users,
		Sum:        sum,
		SumSquares: sumSquares,
	}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case []byte:
		var f float64
		if _, err := fmt.Sscanf(string(n), "%g", &f); err != nil {
			return 0, fmt.Errorf("parsing numeric %q: %w", n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}
