package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockAt_ReportsConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, loc, ClockAt(loc).Now().Location())
}

func TestSameDay_IgnoresTimeOfDay(t *testing.T) {
	assert.True(t, sameDay(time.Date(2025, 3, 13, 23, 30, 0, 0, time.UTC), ts(2025, 3, 13)))
	assert.False(t, sameDay(ts(2025, 3, 13), ts(2025, 3, 14)))
	assert.False(t, sameDay(ts(2024, 3, 13), ts(2025, 3, 13)))
}
