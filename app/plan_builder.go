package app

import (
	"context"
	"errors"
	"fmt"

	"expeval/domain/action"
	"expeval/domain/core"
	"expeval/domain/experiment"
	"expeval/domain/metric"
	"expeval/domain/query"
	"expeval/ports"
)

// Event log wire names emitted by the flag evaluation system.
const (
	FlagCalledEvent      = "$feature_flag_called"
	FlagKeyProperty      = "$feature_flag"
	FlagResponseProperty = "$feature_flag_response"
)

// PlanBuilder turns an experiment context plus a metric definition into a
// layered aggregation plan. The layers, innermost first: first exposure per
// (user, variant), qualifying outcomes at or after exposure, per-user value
// sums (zero-filled), per-variant sufficient statistics.
type PlanBuilder struct {
	exp     *experiment.Context
	metric  metric.Definition
	actions ports.ActionRepository
}

// NewPlanBuilder creates a builder for one evaluation request.
func NewPlanBuilder(exp *experiment.Context, def metric.Definition, actions ports.ActionRepository) *PlanBuilder {
	return &PlanBuilder{exp: exp, metric: def, actions: actions}
}

// Build assembles the full variant-results plan. One row per variant:
// (variant, num_users, total_sum, total_sum_of_squares).
func (b *PlanBuilder) Build(ctx context.Context) (*query.SelectQuery, error) {
	if err := b.metric.Validate(); err != nil {
		return nil, err
	}

	exposure := b.exposureQuery()

	outcome, err := b.outcomeQuery(ctx, exposure)
	if err != nil {
		return nil, err
	}

	perUser := b.perUserQuery(exposure, outcome)

	return b.perVariantQuery(perUser), nil
}

// metricValueExpr produces the value each outcome row contributes. Count
// and funnel metrics emit a constant 1 so aggregation reduces to a count;
// continuous metrics extract a numeric value from the configured property
// or warehouse column.
func (b *PlanBuilder) metricValueExpr() query.Expr {
	if b.metric.Type == metric.TypeContinuous {
		prop := b.metric.MathProperty()
		if b.metric.Source() == metric.SourceWarehouse {
			return query.NumericCast{Expr: query.Field{Chain: []string{b.metric.Warehouse.TableName, prop}}}
		}
		return query.NumericCast{Expr: query.Property{Column: "properties", Key: prop}}
	}
	return query.Constant{Value: 1}
}

// propertyFilterExpr translates one caller-supplied property predicate.
func propertyFilterExpr(f metric.PropertyFilter) query.Expr {
	prop := query.Property{Column: "properties", Key: f.Key}
	switch f.Operator {
	case metric.OpNotEqual:
		return query.Compare{Op: query.OpNotEq, Left: prop, Right: query.Constant{Value: f.Value}}
	case metric.OpContains:
		return query.Compare{Op: query.OpILike, Left: prop, Right: query.Constant{Value: "%" + f.Value + "%"}}
	case metric.OpIsSet:
		return query.Compare{Op: query.OpNotNull, Left: prop}
	case metric.OpIsNotSet:
		return query.Compare{Op: query.OpIsNull, Left: prop}
	default:
		return query.Compare{Op: query.OpEq, Left: prop, Right: query.Constant{Value: f.Value}}
	}
}

// testAccountFilters returns the team's exclusion predicates, applied only
// when the metric opts in and the team has any configured.
func (b *PlanBuilder) testAccountFilters() []query.Expr {
	if !b.metric.FilterTestAccounts || len(b.exp.Team.TestAccountFilters) == 0 {
		return nil
	}
	exprs := make([]query.Expr, 0, len(b.exp.Team.TestAccountFilters))
	for _, f := range b.exp.Team.TestAccountFilters {
		exprs = append(exprs, propertyFilterExpr(f))
	}
	return exprs
}

// exposureQuery finds each user's first qualifying exposure per variant
// within the analysis window. One row per (user, variant): the minimum
// timestamp is the tie-break when a user sees the same variant repeatedly.
// A user exposed to different variants gets one row per variant; that
// double-count is an accepted semantic of the upstream flag system.
func (b *PlanBuilder) exposureQuery() *query.SelectQuery {
	variantExpr := query.Property{Column: "properties", Key: FlagResponseProperty}

	variantKeys := make([]string, 0, len(b.exp.Variants))
	for _, v := range b.exp.Variants {
		variantKeys = append(variantKeys, string(v))
	}

	preds := []query.Expr{
		query.Compare{Op: query.OpEq, Left: query.Field{Chain: []string{"event"}}, Right: query.Constant{Value: FlagCalledEvent}},
		query.Compare{Op: query.OpEq, Left: query.Property{Column: "properties", Key: FlagKeyProperty}, Right: query.Constant{Value: string(b.exp.FlagKey)}},
		query.Compare{Op: query.OpIn, Left: variantExpr, Right: query.Constant{Value: variantKeys}},
	}

	// Restrict to the analysis window. Both bounds inclusive; a missing
	// end date leaves the upper bound open (experiment still running).
	if b.exp.Window.From != nil {
		preds = append(preds, query.Compare{
			Op:    query.OpGtEq,
			Left:  query.Field{Chain: []string{"timestamp"}},
			Right: query.Constant{Value: b.exp.Window.From.Time()},
		})
	}
	if b.exp.Window.To != nil {
		preds = append(preds, query.Compare{
			Op:    query.OpLtEq,
			Left:  query.Field{Chain: []string{"timestamp"}},
			Right: query.Constant{Value: b.exp.Window.To.Time()},
		})
	}
	preds = append(preds, b.testAccountFilters()...)

	return &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"distinct_id"}},
			query.Alias{Name: "variant", Expr: variantExpr},
			query.Alias{Name: "first_exposure_time", Expr: query.Call{Name: "min", Args: []query.Expr{query.Field{Chain: []string{"timestamp"}}}}},
		},
		From:    query.Table{Name: "events"},
		Where:   query.AndAll(preds...),
		GroupBy: []query.Expr{query.Alias{Name: "variant", Expr: variantExpr}, query.Field{Chain: []string{"distinct_id"}}},
	}
}

// outcomeQuery finds all qualifying outcome rows at or after the matched
// first exposure. Two mutually exclusive shapes, selected by the metric
// source. Output columns are always (timestamp, distinct_id, variant,
// value).
func (b *PlanBuilder) outcomeQuery(ctx context.Context, exposure *query.SelectQuery) (*query.SelectQuery, error) {
	if b.metric.Source() == metric.SourceWarehouse {
		return b.warehouseOutcomeQuery(exposure), nil
	}
	return b.eventOutcomeQuery(ctx, exposure)
}

// warehouseOutcomeQuery joins the external table to the exposure rows on
// the configured user-identifier column. The table is purpose-built, so no
// event identity filter applies.
func (b *PlanBuilder) warehouseOutcomeQuery(exposure *query.SelectQuery) *query.SelectQuery {
	cfg := b.metric.Warehouse
	return &query.SelectQuery{
		Select: []query.Expr{
			query.Alias{Name: "timestamp", Expr: query.Field{Chain: []string{cfg.TableName, cfg.TimestampField}}},
			query.Alias{Name: "distinct_id", Expr: query.Field{Chain: []string{cfg.TableName, cfg.DistinctIDField}}},
			query.Field{Chain: []string{"exposure", "variant"}},
			query.Alias{Name: "value", Expr: b.metricValueExpr()},
		},
		From: query.Table{Name: cfg.TableName},
		Joins: []query.Join{{
			Type:   query.InnerJoin,
			Source: exposure,
			Alias:  "exposure",
			Constraint: query.Compare{
				Op:    query.OpEq,
				Left:  query.Field{Chain: []string{cfg.TableName, cfg.DistinctIDField}},
				Right: query.Field{Chain: []string{"exposure", "distinct_id"}},
			},
		}},
		Where: query.Compare{
			Op:    query.OpGtEq,
			Left:  query.Field{Chain: []string{cfg.TableName, cfg.TimestampField}},
			Right: query.Field{Chain: []string{"exposure", "first_exposure_time"}},
		},
	}
}

// eventOutcomeQuery joins the raw event log to the exposure rows. The
// identity predicate is a literal event name or a resolved action; a
// missing action degrades to a match-nothing predicate so the evaluation
// reports zero outcomes instead of failing.
func (b *PlanBuilder) eventOutcomeQuery(ctx context.Context, exposure *query.SelectQuery) (*query.SelectQuery, error) {
	var identity query.Expr
	if b.metric.Source() == metric.SourceAction {
		act, err := b.actions.GetAction(ctx, b.metric.Action.ActionID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			identity = query.FalseExpr()
		case err != nil:
			return nil, fmt.Errorf("resolving action %s: %w", b.metric.Action.ActionID, err)
		default:
			identity = actionExpr(act)
		}
	} else {
		var event string
		if b.metric.Event != nil {
			event = b.metric.Event.Event
		}
		identity = query.Compare{Op: query.OpEq, Left: query.Field{Chain: []string{"events", "event"}}, Right: query.Constant{Value: event}}
	}

	preds := []query.Expr{
		// Strict post-exposure attribution: an outcome counts only at or
		// after the user's first exposure to the variant.
		query.Compare{
			Op:    query.OpGtEq,
			Left:  query.Field{Chain: []string{"events", "timestamp"}},
			Right: query.Field{Chain: []string{"exposure", "first_exposure_time"}},
		},
		identity,
	}
	if b.metric.Event != nil {
		for _, f := range b.metric.Event.Properties {
			preds = append(preds, propertyFilterExpr(f))
		}
	}

	return &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"events", "timestamp"}},
			query.Field{Chain: []string{"events", "distinct_id"}},
			query.Field{Chain: []string{"exposure", "variant"}},
			query.Alias{Name: "value", Expr: b.metricValueExpr()},
		},
		From: query.Table{Name: "events"},
		Joins: []query.Join{{
			Type:   query.InnerJoin,
			Source: exposure,
			Alias:  "exposure",
			Constraint: query.Compare{
				Op:    query.OpEq,
				Left:  query.Field{Chain: []string{"events", "distinct_id"}},
				Right: query.Field{Chain: []string{"exposure", "distinct_id"}},
			},
		}},
		Where: query.AndAll(preds...),
	}, nil
}

// actionExpr expands an action definition into an OR of per-step
// predicates over the event log.
func actionExpr(act *action.Action) query.Expr {
	steps := make([]query.Expr, 0, len(act.Steps))
	for _, step := range act.Steps {
		preds := []query.Expr{
			query.Compare{Op: query.OpEq, Left: query.Field{Chain: []string{"events", "event"}}, Right: query.Constant{Value: step.Event}},
		}
		for _, f := range step.Properties {
			preds = append(preds, propertyFilterExpr(f))
		}
		steps = append(steps, query.AndAll(preds...))
	}
	if len(steps) == 0 {
		return query.FalseExpr()
	}
	if len(steps) == 1 {
		return steps[0]
	}
	return query.Or{Exprs: steps}
}

// perUserQuery sums outcome values per (user, variant). The left join is
// deliberate: exposed users with no matching outcome are retained with a
// zero value, so they still count toward variant user totals.
func (b *PlanBuilder) perUserQuery(exposure, outcome *query.SelectQuery) *query.SelectQuery {
	return &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"exposure", "variant"}},
			query.Field{Chain: []string{"exposure", "distinct_id"}},
			query.Alias{Name: "value", Expr: query.Call{Name: "sum", Args: []query.Expr{
				query.Call{Name: "coalesce", Args: []query.Expr{
					query.Field{Chain: []string{"outcome", "value"}},
					query.Constant{Value: 0},
				}},
			}}},
		},
		From:  exposure,
		Alias: "exposure",
		Joins: []query.Join{{
			Type:   query.LeftJoin,
			Source: outcome,
			Alias:  "outcome",
			Constraint: query.And{Exprs: []query.Expr{
				query.Compare{
					Op:    query.OpEq,
					Left:  query.Field{Chain: []string{"exposure", "distinct_id"}},
					Right: query.Field{Chain: []string{"outcome", "distinct_id"}},
				},
				query.Compare{
					Op:    query.OpEq,
					Left:  query.Field{Chain: []string{"exposure", "variant"}},
					Right: query.Field{Chain: []string{"outcome", "variant"}},
				},
			}},
		}},
		GroupBy: []query.Expr{
			query.Field{Chain: []string{"exposure", "variant"}},
			query.Field{Chain: []string{"exposure", "distinct_id"}},
		},
	}
}

// perVariantQuery reduces per-user values into one summary row per
// variant: distinct user count, sum, sum of squares. These are the
// sufficient statistics every downstream strategy consumes.
func (b *PlanBuilder) perVariantQuery(perUser *query.SelectQuery) *query.SelectQuery {
	return &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"metrics_per_user", "variant"}},
			query.Alias{Name: "num_users", Expr: query.Call{Name: "count", Args: []query.Expr{query.Field{Chain: []string{"metrics_per_user", "distinct_id"}}}}},
			query.Alias{Name: "total_sum", Expr: query.Call{Name: "sum", Args: []query.Expr{query.Field{Chain: []string{"metrics_per_user", "value"}}}}},
			query.Alias{Name: "total_sum_of_squares", Expr: query.Call{Name: "sum", Args: []query.Expr{
				query.Call{Name: "power", Args: []query.Expr{query.Field{Chain: []string{"metrics_per_user", "value"}}, query.Constant{Value: 2}}},
			}}},
		},
		From:    perUser,
		Alias:   "metrics_per_user",
		GroupBy: []query.Expr{query.Field{Chain: []string{"metrics_per_user", "variant"}}},
	}
}
