package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"expeval/domain/action"
	"expeval/domain/core"
	"expeval/domain/metric"
	"expeval/ports"
)

// ActionRepositoryImpl implements ActionRepository for PostgreSQL
type ActionRepositoryImpl struct {
	db *sqlx.DB
}

// NewActionRepository creates a new PostgreSQL action repository
func NewActionRepository(db *sqlx.DB) ports.ActionRepository {
	return &ActionRepositoryImpl{db: db}
}

// GetAction retrieves an action and its match steps by identifier
func (r *ActionRepositoryImpl) GetAction(ctx context.Context, id core.ActionID) (*action.Action, error) {
	var row struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT id, name FROM actions WHERE id = $1`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrActionNotFound
	}
	if err != nil {
		return nil, err
	}

	type stepRow struct {
		Event      string `db:"event"`
		URL        string `db:"url"`
		Properties []byte `db:"properties"`
	}
	var stepRows []stepRow
	err = r.db.SelectContext(ctx, &stepRows, `
		SELECT event, COALESCE(url, '') AS url, properties
		FROM action_steps
		WHERE action_id = $1
		ORDER BY position
	`, string(id))
	if err != nil {
		return nil, err
	}

	steps := make([]action.Step, 0, len(stepRows))
	for _, s := range stepRows {
		step := action.Step{Event: s.Event, URL: s.URL}
		if len(s.Properties) > 0 {
			var filters []metric.PropertyFilter
			if err := json.Unmarshal(s.Properties, &filters); err != nil {
				return nil, err
			}
			step.Properties = filters
		}
		steps = append(steps, step)
	}

	return &action.Action{
		ID:    core.ActionID(row.ID),
		Name:  row.Name,
		Steps: steps,
	}, nil
}
