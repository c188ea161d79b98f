package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"expeval/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createTeamsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create teams table")
	}

	if err := r.createFeatureFlagsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create feature_flags table")
	}

	if err := r.createFlagVariantsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create feature_flag_variants table")
	}

	if err := r.createHoldoutsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create holdouts table")
	}

	if err := r.createExperimentsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create experiments table")
	}

	if err := r.createActionsTables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create actions tables")
	}

	if err := r.createEventsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create events table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createTeamsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS teams (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			timezone VARCHAR(64),
			test_account_filters JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createFeatureFlagsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feature_flags (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			key VARCHAR(255) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (team_id, key)
		)
	`)
	return err
}

func (r *MigrationRunner) createFlagVariantsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feature_flag_variants (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			flag_id UUID NOT NULL REFERENCES feature_flags(id) ON DELETE CASCADE,
			key VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			rollout_percent DECIMAL(5,2) NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			UNIQUE (flag_id, key)
		)
	`)
	return err
}

func (r *MigrationRunner) createHoldoutsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS holdouts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createExperimentsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS experiments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			feature_flag_id UUID NOT NULL REFERENCES feature_flags(id),
			holdout_id UUID REFERENCES holdouts(id),
			name VARCHAR(255) NOT NULL,
			start_date TIMESTAMP WITH TIME ZONE,
			end_date TIMESTAMP WITH TIME ZONE,
			stats_version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createActionsTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS actions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS action_steps (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			action_id UUID NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
			event VARCHAR(255) NOT NULL,
			url TEXT,
			properties JSONB,
			position INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

func (r *MigrationRunner) createEventsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			event VARCHAR(255) NOT NULL,
			distinct_id VARCHAR(255) NOT NULL,
			properties JSONB,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_experiments_team ON experiments(team_id)`,
		`CREATE INDEX IF NOT EXISTS idx_flag_variants_flag ON feature_flag_variants(flag_id)`,
		`CREATE INDEX IF NOT EXISTS idx_action_steps_action ON action_steps(action_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_event_time ON events(event, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_distinct ON events(distinct_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
