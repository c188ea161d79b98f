package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"expeval/domain/core"
	"expeval/domain/experiment"
	"expeval/domain/metric"
	"expeval/ports"
)

// ExperimentRepositoryImpl implements ExperimentRepository for PostgreSQL
type ExperimentRepositoryImpl struct {
	db *sqlx.DB
}

// NewExperimentRepository creates a new PostgreSQL experiment repository
func NewExperimentRepository(db *sqlx.DB) ports.ExperimentRepository {
	return &ExperimentRepositoryImpl{db: db}
}

// GetExperiment retrieves an experiment with its feature flag, variants
// and optional holdout resolved
func (r *ExperimentRepositoryImpl) GetExperiment(ctx context.Context, id core.ExperimentID) (*experiment.Experiment, error) {
	var row struct {
		ID           string         `db:"id"`
		TeamID       string         `db:"team_id"`
		Name         string         `db:"name"`
		StartDate    sql.NullTime   `db:"start_date"`
		EndDate      sql.NullTime   `db:"end_date"`
		StatsVersion int            `db:"stats_version"`
		FlagID       string         `db:"flag_id"`
		FlagKey      string         `db:"flag_key"`
		HoldoutID    sql.NullString `db:"holdout_id"`
		HoldoutName  sql.NullString `db:"holdout_name"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT e.id, e.team_id, e.name, e.start_date, e.end_date, e.stats_version,
		       f.id AS flag_id, f.key AS flag_key,
		       h.id AS holdout_id, h.name AS holdout_name
		FROM experiments e
		JOIN feature_flags f ON f.id = e.feature_flag_id
		LEFT JOIN holdouts h ON h.id = e.holdout_id
		WHERE e.id = $1
	`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrExperimentNotFound
	}
	if err != nil {
		return nil, err
	}

	var variants []experiment.Variant
	err = r.db.SelectContext(ctx, &variants, `
		SELECT key, name, rollout_percent
		FROM feature_flag_variants
		WHERE flag_id = $1
		ORDER BY position
	`, row.FlagID)
	if err != nil {
		return nil, err
	}

	exp := &experiment.Experiment{
		ID:     core.ExperimentID(row.ID),
		TeamID: core.ID(row.TeamID),
		Name:   row.Name,
		FeatureFlag: experiment.FeatureFlag{
			ID:       core.ID(row.FlagID),
			Key:      core.FlagKey(row.FlagKey),
			Variants: variants,
		},
		StatsConfig: map[string]int{"version": row.StatsVersion},
	}
	if row.StartDate.Valid {
		t := core.NewTimestamp(row.StartDate.Time)
		exp.StartDate = &t
	}
	if row.EndDate.Valid {
		t := core.NewTimestamp(row.EndDate.Time)
		exp.EndDate = &t
	}
	if row.HoldoutID.Valid {
		exp.Holdout = &experiment.Holdout{
			ID:   core.ID(row.HoldoutID.String),
			Name: row.HoldoutName.String,
		}
	}
	return exp, nil
}

// GetTeam retrieves team settings including test-account filters
func (r *ExperimentRepositoryImpl) GetTeam(ctx context.Context, id core.ID) (*experiment.Team, error) {
	var row struct {
		ID       string `db:"id"`
		Timezone string `db:"timezone"`
		Filters  []byte `db:"test_account_filters"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT id, COALESCE(timezone, '') AS timezone, test_account_filters
		FROM teams
		WHERE id = $1
	`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("team", string(id))
	}
	if err != nil {
		return nil, err
	}

	team := &experiment.Team{
		ID:       core.ID(row.ID),
		Timezone: row.Timezone,
	}
	if len(row.Filters) > 0 {
		var filters []metric.PropertyFilter
		if err := json.Unmarshal(row.Filters, &filters); err != nil {
			return nil, err
		}
		team.TestAccountFilters = filters
	}
	return team, nil
}
