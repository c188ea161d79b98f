package experiment

import (
	"fmt"
	"time"

	"expeval/domain/core"
	"expeval/domain/metric"
)

// StatsVersion selects which generation of statistical engines is applied
// to the per-variant summary statistics.
type StatsVersion int

const (
	StatsV1 StatsVersion = 1
	StatsV2 StatsVersion = 2
)

// Variant is one arm of a feature flag's multivariate rollout.
type Variant struct {
	Key            core.VariantKey `json:"key" db:"key"`
	Name           string          `json:"name,omitempty" db:"name"`
	RolloutPercent float64         `json:"rollout_percent" db:"rollout_percent"`
}

// FeatureFlag is the flag an experiment is bound to. Exposure is defined
// as the flag evaluating to one of the experiment's variant keys.
type FeatureFlag struct {
	ID       core.ID      `json:"id" db:"id"`
	Key      core.FlagKey `json:"key" db:"key"`
	Variants []Variant    `json:"variants"`
}

// Holdout is an optional group of users withheld from all experiments.
// When present its members surface as an extra variant keyed "holdout-<id>".
type Holdout struct {
	ID   core.ID `json:"id" db:"id"`
	Name string  `json:"name" db:"name"`
}

// VariantKey returns the reserved variant key for this holdout group.
func (h Holdout) VariantKey() core.VariantKey {
	return core.VariantKey(fmt.Sprintf("holdout-%s", h.ID))
}

// Experiment is one running or completed A/B test.
type Experiment struct {
	ID          core.ExperimentID `json:"id" db:"id"`
	TeamID      core.ID           `json:"team_id" db:"team_id"`
	Name        string            `json:"name" db:"name"`
	FeatureFlag FeatureFlag       `json:"feature_flag"`
	Holdout     *Holdout          `json:"holdout,omitempty"`
	StartDate   *core.Timestamp   `json:"start_date,omitempty" db:"start_date"`
	EndDate     *core.Timestamp   `json:"end_date,omitempty" db:"end_date"`
	StatsConfig map[string]int    `json:"stats_config,omitempty"`
}

// StatsEngineVersion resolves the stats engine generation used for
// routing, defaulting to v1 for any stored version other than 2.
func (e Experiment) StatsEngineVersion() StatsVersion {
	if v, ok := e.StatsConfig["version"]; ok && v == int(StatsV2) {
		return StatsV2
	}
	return StatsV1
}

// StoredStatsVersion is the version recorded on the experiment, defaulting
// to 1 when the config carries none. Responses echo this value as stored
// even when routing falls back to the v1 engines.
func (e Experiment) StoredStatsVersion() int {
	if v, ok := e.StatsConfig["version"]; ok && v > 0 {
		return v
	}
	return int(StatsV1)
}

// Team carries the per-organization settings the pipeline reads:
// the reporting timezone and the test-account exclusion predicates.
type Team struct {
	ID                 core.ID                 `json:"id" db:"id"`
	Timezone           string                  `json:"timezone,omitempty" db:"timezone"`
	TestAccountFilters []metric.PropertyFilter `json:"test_account_filters,omitempty"`
}

// Context is the immutable per-evaluation view of an experiment: the
// ordered variant set (control first by convention), the stats engine
// version and the timezone-normalized analysis window. Built once per
// evaluation request.
type Context struct {
	Experiment    Experiment
	Team          Team
	FlagKey       core.FlagKey
	Variants      []core.VariantKey
	StatsVersion  StatsVersion
	StoredVersion int
	Window        DateWindow
}

// NewContext derives the evaluation context from the experiment and team
// records. The variant set is the flag's variants in their stored order,
// plus the holdout key when the experiment references a holdout group.
func NewContext(exp Experiment, team Team) (*Context, error) {
	if exp.ID == "" {
		return nil, core.ErrMissingExperimentID
	}

	variants := make([]core.VariantKey, 0, len(exp.FeatureFlag.Variants)+1)
	for _, v := range exp.FeatureFlag.Variants {
		variants = append(variants, v.Key)
	}
	if exp.Holdout != nil {
		variants = append(variants, exp.Holdout.VariantKey())
	}

	window, err := ResolveDateWindow(exp.StartDate, exp.EndDate, team.Timezone)
	if err != nil {
		return nil, err
	}

	return &Context{
		Experiment:    exp,
		Team:          team,
		FlagKey:       exp.FeatureFlag.Key,
		Variants:      variants,
		StatsVersion:  exp.StatsEngineVersion(),
		StoredVersion: exp.StoredStatsVersion(),
		Window:        window,
	}, nil
}

// DateWindow is an inclusive, timezone-normalized analysis window.
// Explicit means the bounds are fixed, never recomputed relative to "now".
// A nil To is an open upper bound: the experiment is still running.
type DateWindow struct {
	From     *core.Timestamp `json:"date_from,omitempty"`
	To       *core.Timestamp `json:"date_to,omitempty"`
	Explicit bool            `json:"explicit_date"`
}

// ResolveDateWindow converts experiment start/end timestamps into the
// analysis window. If the team configures an IANA timezone both bounds are
// converted into it before use; otherwise they are used as stored. Absent
// bounds degrade to nil, never an error.
func ResolveDateWindow(start, end *core.Timestamp, timezone string) (DateWindow, error) {
	from, to := start, end
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return DateWindow{}, fmt.Errorf("invalid team timezone %q: %w", timezone, err)
		}
		if start != nil {
			t := start.In(loc)
			from = &t
		}
		if end != nil {
			t := end.In(loc)
			to = &t
		}
	}
	return DateWindow{From: from, To: to, Explicit: true}, nil
}
