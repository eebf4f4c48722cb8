package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToISTShiftsUTC(t *testing.T) {
	utc := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)
	ist := ToIST(utc)
	// 20:00 UTC is 01:30 next day in IST
	assert.Equal(t, 1, ist.Hour())
	assert.Equal(t, 30, ist.Minute())
	assert.Equal(t, 16, ist.Day())
	assert.True(t, utc.Equal(ist))
}

func TestStartAndEndOfDayUseISTCalendar(t *testing.T) {
	// Late UTC evening is already the next IST day
	utc := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	start := StartOfDay(utc)
	assert.Equal(t, 16, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, IST, start.Location())

	end := EndOfDay(utc)
	assert.Equal(t, 16, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.True(t, end.After(start))
}

func TestParseInISTRoundTrip(t *testing.T) {
	parsed, err := ParseInIST(DateTimeLayout, "2026-03-01 09:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01 09:30:00", FormatIST(parsed, DateTimeLayout))
	assert.Equal(t, IST.String(), parsed.Location().String())

	_, err = ParseInIST(DateLayout, "not-a-date")
	assert.Error(t, err)
}
