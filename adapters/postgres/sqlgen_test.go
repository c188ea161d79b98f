package postgres

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expeval/domain/query"
)

func TestRenderSimpleSelect(t *testing.T) {
	q := &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"distinct_id"}},
			query.Field{Chain: []string{"events", "timestamp"}},
		},
		From: query.Table{Name: "events"},
		Where: query.Compare{
			Op:    query.OpEq,
			Left:  query.Field{Chain: []string{"event"}},
			Right: query.Constant{Value: "purchase"},
		},
	}

	sql, args, err := RenderSQL(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "distinct_id", "events"."timestamp" FROM "events" WHERE "event" = $1`, sql)
	assert.Equal(t, []interface{}{"purchase"}, args)
}

func TestRenderPropertyAccessAndCast(t *testing.T) {
	q := &query.SelectQuery{
		Select: []query.Expr{
			query.Alias{Name: "value", Expr: query.NumericCast{Expr: query.Property{Column: "properties", Key: "revenue"}}},
		},
		From: query.Table{Name: "events"},
	}

	sql, args, err := RenderSQL(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT (("properties" ->> $1))::double precision AS "value" FROM "events"`, sql)
	assert.Equal(t, []interface{}{"revenue"}, args)
}

func TestRenderMembershipUsesArrayParam(t *testing.T) {
	q := &query.SelectQuery{
		Select: []query.Expr{query.Field{Chain: []string{"distinct_id"}}},
		From:   query.Table{Name: "events"},
		Where: query.Compare{
			Op:    query.OpIn,
			Left:  query.Property{Column: "properties", Key: "$feature_flag_response"},
			Right: query.Constant{Value: []string{"control", "test"}},
		},
	}

	sql, args, err := RenderSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sql, `= ANY($2)`)
	require.Len(t, args, 2)
	assert.Equal(t, "$feature_flag_response", args[0])
	assert.Equal(t, pq.Array([]string{"control", "test"}), args[1])
}

func TestRenderSubqueryWithJoinAndGrouping(t *testing.T) {
	exposure := &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"distinct_id"}},
			query.Alias{Name: "variant", Expr: query.Property{Column: "properties", Key: "$feature_flag_response"}},
		},
		From:    query.Table{Name: "events"},
		GroupBy: []query.Expr{query.Alias{Name: "variant", Expr: query.Property{Column: "properties", Key: "$feature_flag_response"}}, query.Field{Chain: []string{"distinct_id"}}},
	}

	outer := &query.SelectQuery{
		Select: []query.Expr{
			query.Field{Chain: []string{"exposure", "variant"}},
			query.Alias{Name: "num_users", Expr: query.Call{Name: "count", Args: []query.Expr{query.Field{Chain: []string{"exposure", "distinct_id"}}}}},
		},
		From:  exposure,
		Alias: "exposure",
		Joins: []query.Join{{
			Type:   query.LeftJoin,
			Source: query.Table{Name: "events"},
			Alias:  "outcome",
			Constraint: query.Compare{
				Op:    query.OpEq,
				Left:  query.Field{Chain: []string{"exposure", "distinct_id"}},
				Right: query.Field{Chain: []string{"outcome", "distinct_id"}},
			},
		}},
		GroupBy: []query.Expr{query.Field{Chain: []string{"exposure", "variant"}}},
	}

	sql, _, err := RenderSQL(outer)
	require.NoError(t, err)
	assert.Contains(t, sql, `FROM (SELECT`)
	assert.Contains(t, sql, `) AS "exposure"`)
	assert.Contains(t, sql, `LEFT JOIN "events" AS "outcome" ON`)
	assert.Contains(t, sql, `count("exposure"."distinct_id") AS "num_users"`)
	// Grouping by a select alias renders the bare name.
	assert.Contains(t, sql, `GROUP BY "variant", "distinct_id"`)
}

func TestRenderSubqueryRequiresAlias(t *testing.T) {
	inner := &query.SelectQuery{
		Select: []query.Expr{query.Field{Chain: []string{"distinct_id"}}},
		From:   query.Table{Name: "events"},
	}
	outer := &query.SelectQuery{
		Select: []query.Expr{query.Field{Chain: []string{"distinct_id"}}},
		From:   inner,
	}

	_, _, err := RenderSQL(outer)
	assert.Error(t, err)
}

func TestRenderNullChecksAndBooleans(t *testing.T) {
	q := &query.SelectQuery{
		Select: []query.Expr{query.Field{Chain: []string{"distinct_id"}}},
		From:   query.Table{Name: "events"},
		Where: query.And{Exprs: []query.Expr{
			query.Compare{Op: query.OpNotNull, Left: query.Property{Column: "properties", Key: "plan"}},
			query.Or{Exprs: []query.Expr{
				query.Compare{Op: query.OpEq, Left: query.Field{Chain: []string{"event"}}, Right: query.Constant{Value: "a"}},
				query.Compare{Op: query.OpEq, Left: query.Field{Chain: []string{"event"}}, Right: query.Constant{Value: "b"}},
			}},
		}},
	}

	sql, _, err := RenderSQL(q)
	require.NoError(t, err)
	assert.Contains(t, sql, `IS NOT NULL`)
	assert.Contains(t, sql, `OR`)
	assert.Contains(t, sql, `AND`)
}

func TestRenderIsDeterministic(t *testing.T) {
	q := &query.SelectQuery{
		Select: []query.Expr{query.Field{Chain: []string{"distinct_id"}}},
		From:   query.Table{Name: "events"},
		Where: query.Compare{
			Op:    query.OpILike,
			Left:  query.Property{Column: "properties", Key: "email"},
			Right: query.Constant{Value: "%@internal.test%"},
		},
	}

	first, firstArgs, err := RenderSQL(q)
	require.NoError(t, err)
	second, secondArgs, err := RenderSQL(q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstArgs, secondArgs)
}

func TestQuoteIdentEscapesQuotes(t *testing.T) {
	assert.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
}
