package ports

import (
	"context"

	"expeval/domain/query"
)

// Row is one result row as an ordered tuple matching the select list order.
type Row []interface{}

// QueryExecutor runs a composed query plan against the backing store and
// returns materialized rows. It is an opaque black box to the pipeline:
// retry, timeout and cancellation policy belong to the implementation.
type QueryExecutor interface {
	Execute(ctx context.Context, q *query.SelectQuery) ([]Row, error)
}
