package testkit

import (
	"math/rand"
	"sort"

	"expeval/ports"
)

// CohortConfig configures the synthetic cohort generator: per-variant user
// counts and the per-user outcome distribution. The same seed always
// produces the same rows.
type CohortConfig struct {
	Users          map[string]int     `json:"users"`
	ConversionRate map[string]float64 `json:"conversion_rate"`
	MeanValue      map[string]float64 `json:"mean_value"`
	ValueSpread    float64            `json:"value_spread"`
	Seed           int64              `json:"seed"`
}

// DefaultCohortConfig returns a two-variant cohort with a mild uplift on
// the test arm.
func DefaultCohortConfig() CohortConfig {
	return CohortConfig{
		Users:          map[string]int{"control": 500, "test": 500},
		ConversionRate: map[string]float64{"control": 0.10, "test": 0.12},
		MeanValue:      map[string]float64{"control": 1.0, "test": 1.2},
		ValueSpread:    0.3,
		Seed:           42,
	}
}

// GenerateSummaryRows simulates per-user outcomes for each variant and
// aggregates them into executor-shaped rows (variant, num_users, total_sum,
// total_sum_of_squares). Variants emit in sorted key order.
func GenerateSummaryRows(cfg CohortConfig) []ports.Row {
	rng := rand.New(rand.NewSource(cfg.Seed))

	keys := make([]string, 0, len(cfg.Users))
	for k := range cfg.Users {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]ports.Row, 0, len(keys))
	for _, key := range keys {
		users := cfg.Users[key]
		rate := cfg.ConversionRate[key]
		mean := cfg.MeanValue[key]

		var sum, sumSquares float64
		for i := 0; i < users; i++ {
			if rng.Float64() >= rate {
				continue
			}
			value := mean + rng.NormFloat64()*cfg.ValueSpread
			if value < 0 {
				value = 0
			}
			sum += value
			sumSquares += value * value
		}
		rows = append(rows, ports.Row{key, int64(users), sum, sumSquares})
	}
	return rows
}

// GenerateFunnelRows simulates binary conversions only: the sum column is
// the number of converted users, so success+failure always equals the user
// count.
func GenerateFunnelRows(cfg CohortConfig) []ports.Row {
	rng := rand.New(rand.NewSource(cfg.Seed))

	keys := make([]string, 0, len(cfg.Users))
	for k := range cfg.Users {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]ports.Row, 0, len(keys))
	for _, key := range keys {
		users := cfg.Users[key]
		rate := cfg.ConversionRate[key]

		var converted int64
		for i := 0; i < users; i++ {
			if rng.Float64() < rate {
				converted++
			}
		}
		rows = append(rows, ports.Row{key, int64(users), float64(converted), float64(converted)})
	}
	return rows
}
