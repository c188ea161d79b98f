package testkit

import (
	"context"
	"sync"

	"expeval/domain/action"
	"expeval/domain/core"
	"expeval/domain/experiment"
	"expeval/domain/query"
	"expeval/ports"
)

// TestKit provides in-memory port implementations and fixtures for
// exercising the evaluation pipeline without a database.
type TestKit struct {
	Experiments *InMemoryExperimentRepository
	Actions     *InMemoryActionRepository
	Executor    *StubExecutor
}

// NewTestKit creates a test kit with empty in-memory stores.
func NewTestKit() *TestKit {
	return &TestKit{
		Experiments: NewInMemoryExperimentRepository(),
		Actions:     NewInMemoryActionRepository(),
		Executor:    &StubExecutor{},
	}
}

// InMemoryExperimentRepository serves experiments and teams from maps.
type InMemoryExperimentRepository struct {
	mu          sync.RWMutex
	experiments map[core.ExperimentID]experiment.Experiment
	teams       map[core.ID]experiment.Team
}

// NewInMemoryExperimentRepository creates an empty repository.
func NewInMemoryExperimentRepository() *InMemoryExperimentRepository {
	return &InMemoryExperimentRepository{
		experiments: make(map[core.ExperimentID]experiment.Experiment),
		teams:       make(map[core.ID]experiment.Team),
	}
}

// AddExperiment stores an experiment fixture.
func (r *InMemoryExperimentRepository) AddExperiment(exp experiment.Experiment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experiments[exp.ID] = exp
}

// AddTeam stores a team fixture.
func (r *InMemoryExperimentRepository) AddTeam(team experiment.Team) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[team.ID] = team
}

// GetExperiment returns the stored experiment or ErrExperimentNotFound.
func (r *InMemoryExperimentRepository) GetExperiment(_ context.Context, id core.ExperimentID) (*experiment.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.experiments[id]
	if !ok {
		return nil, core.ErrExperimentNotFound
	}
	return &exp, nil
}

// GetTeam returns the stored team or a not-found error.
func (r *InMemoryExperimentRepository) GetTeam(_ context.Context, id core.ID) (*experiment.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	team, ok := r.teams[id]
	if !ok {
		return nil, core.NewNotFoundError("team", string(id))
	}
	return &team, nil
}

// InMemoryActionRepository serves actions from a map.
type InMemoryActionRepository struct {
	mu      sync.RWMutex
	actions map[core.ActionID]action.Action
}

// NewInMemoryActionRepository creates an empty repository.
func NewInMemoryActionRepository() *InMemoryActionRepository {
	return &InMemoryActionRepository{actions: make(map[core.ActionID]action.Action)}
}

// AddAction stores an action fixture.
func (r *InMemoryActionRepository) AddAction(a action.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.ID] = a
}

// GetAction returns the stored action or ErrActionNotFound.
func (r *InMemoryActionRepository) GetAction(_ context.Context, id core.ActionID) (*action.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	if !ok {
		return nil, core.ErrActionNotFound
	}
	return &a, nil
}

// StubExecutor returns preset rows for any plan and records the last plan
// it was asked to run.
type StubExecutor struct {
	mu       sync.Mutex
	Rows     []ports.Row
	Err      error
	LastPlan *query.SelectQuery
	Calls    int
}

// Execute returns the configured rows or error.
func (e *StubExecutor) Execute(_ context.Context, q *query.SelectQuery) ([]ports.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LastPlan = q
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Rows, nil
}
