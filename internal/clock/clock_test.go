package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatePinsMarketOpen(t *testing.T) {
	ms, err := ParseDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T09:30:00Z", FormatDateTime(ms))
	assert.Equal(t, "2024-01-02", FormatDate(ms))
}

func TestParseDateRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "2024/01/02", "02-01-2024", "2024-13-40", "yesterday"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrBadDate, bad)
	}
}

func TestTickAdvancesSimTime(t *testing.T) {
	c := New()
	require.NoError(t, c.Initialize("2024-01-02", 72000))

	start := c.SimTime()
	c.Tick()
	assert.Equal(t, start+1200, c.SimTime()) // 86_400_000 / 72000
	assert.Equal(t, uint64(1), c.TotalTicks())
	assert.Equal(t, 1, c.TickInDay())
	assert.False(t, c.IsNewDay())
}

func TestNewDayRollover(t *testing.T) {
	c := New()
	require.NoError(t, c.Initialize("2024-01-02", 10))

	for i := 0; i < 9; i++ {
		c.Tick()
		assert.False(t, c.IsNewDay())
	}
	c.Tick()
	assert.True(t, c.IsNewDay())
	assert.Equal(t, 0, c.TickInDay())

	c.Tick()
	assert.False(t, c.IsNewDay())
}

func TestTickScale(t *testing.T) {
	c := New()
	require.NoError(t, c.Initialize("2024-01-02", 72000))
	assert.Equal(t, 1.0, c.TickScale())

	c.SetTicksPerDay(576)
	assert.Equal(t, 125.0, c.TickScale())

	// populate pins the reference so coarse backfill runs at scale 1
	c.SetReferenceTicksPerDay(576)
	assert.Equal(t, 1.0, c.TickScale())
}

func TestFullSimulatedDayAdvancesOneCalendarDay(t *testing.T) {
	c := New()
	require.NoError(t, c.Initialize("2024-01-02", 1440))

	for i := 0; i < 1440; i++ {
		c.Tick()
	}
	assert.Equal(t, "2024-01-03", c.CurrentDateString())
}
