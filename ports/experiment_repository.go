package ports

import (
	"context"

	"expeval/domain/core"
	"expeval/domain/experiment"
)

// ExperimentRepository resolves experiment and team records.
type ExperimentRepository interface {
	// GetExperiment returns the experiment with its feature flag and
	// optional holdout resolved, or core.ErrExperimentNotFound.
	GetExperiment(ctx context.Context, id core.ExperimentID) (*experiment.Experiment, error)

	// GetTeam returns the owning team's settings (timezone, test-account
	// filters), or core.ErrNotFound.
	GetTeam(ctx context.Context, id core.ID) (*experiment.Team, error)
}
