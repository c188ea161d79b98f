package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"expeval/domain/core"
)

func TestFreshnessWindow(t *testing.T) {
	policy := FreshnessWindow(24 * time.Hour)
	computed := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, policy(core.NewTimestamp(computed), computed.Add(1*time.Hour)))
	assert.True(t, policy(core.NewTimestamp(computed), computed.Add(24*time.Hour)))
	assert.False(t, policy(core.NewTimestamp(computed), computed.Add(24*time.Hour+time.Second)))
}
