package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"expeval/domain/query"
	"expeval/ports"
)

// Executor runs rendered query plans against PostgreSQL and returns rows
// as ordered tuples. It carries no retry or caching policy of its own.
type Executor struct {
	db *sqlx.DB
}

// NewExecutor creates a plan executor backed by the given connection pool.
func NewExecutor(db *sqlx.DB) ports.QueryExecutor {
	return &Executor{db: db}
}

// Execute renders the plan and materializes the full result set.
func (e *Executor) Execute(ctx context.Context, q *query.SelectQuery) ([]ports.Row, error) {
	sqlText, args, err := RenderSQL(q)
	if err != nil {
		return nil, fmt.Errorf("rendering query plan: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query plan: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []ports.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		scans := make([]interface{}, len(cols))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, err
		}
		out = append(out, ports.Row(values))
	}
	return out, rows.Err()
}
