package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSummaryRowsIsDeterministic(t *testing.T) {
	cfg := DefaultCohortConfig()
	assert.Equal(t, GenerateSummaryRows(cfg), GenerateSummaryRows(cfg))

	cfg.Seed = 7
	assert.NotEqual(t, GenerateSummaryRows(DefaultCohortConfig()), GenerateSummaryRows(cfg))
}

func TestGenerateSummaryRowsShape(t *testing.T) {
	rows := GenerateSummaryRows(DefaultCohortConfig())
	require.Len(t, rows, 2)

	// Sorted key order: control before test.
	assert.Equal(t, "control", rows[0][0])
	assert.Equal(t, "test", rows[1][0])

	for _, row := range rows {
		require.Len(t, row, 4)
		users := row[1].(int64)
		sum := row[2].(float64)
		sumSquares := row[3].(float64)
		assert.Equal(t, int64(500), users)
		assert.Greater(t, sum, 0.0)
		assert.Greater(t, sumSquares, 0.0)
	}
}

func TestGenerateFunnelRowsInvariant(t *testing.T) {
	rows := GenerateFunnelRows(DefaultCohortConfig())
	require.Len(t, rows, 2)

	for _, row := range rows {
		users := row[1].(int64)
		converted := int64(row[2].(float64))
		assert.GreaterOrEqual(t, converted, int64(0))
		assert.LessOrEqual(t, converted, users, "conversions cannot exceed exposed users")
		assert.Equal(t, row[2], row[3], "funnel rows carry the conversion count in both sum columns")
	}
}
