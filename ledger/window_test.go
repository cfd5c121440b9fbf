package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoursBetween_Rounding(t *testing.T) {
	base := time.Date(2024, 11, 5, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"ninety minutes", 90 * time.Minute, "1.5"},
		{"fifty minutes", 50 * time.Minute, "0.83"},
		{"full hour", time.Hour, "1"},
		{"zero duration", 0, "0"},
		{"one minute", time.Minute, "0.02"},
		{"forty minutes", 40 * time.Minute, "0.67"},
		{"two hours fifteen", 2*time.Hour + 15*time.Minute, "2.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HoursBetween(base, base.Add(tt.duration))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestHoursBetween_NegativeWhenFinishPrecedesStart(t *testing.T) {
	base := time.Date(2024, 11, 5, 14, 0, 0, 0, time.UTC)
	got := HoursBetween(base, base.Add(-30*time.Minute))
	assert.Equal(t, "-0.5", got.String())
}

func TestMonthWindow_Bounds(t *testing.T) {
	w, err := MonthWindow(2024, 11)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), w.End)
}

func TestMonthWindow_DecemberRollsIntoNextYear(t *testing.T) {
	w, err := MonthWindow(2024, 12)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), w.End)
}

func TestMonthWindow_RejectsBadInput(t *testing.T) {
	_, err := MonthWindow(2024, 0)
	assert.True(t, IsValidation(err))

	_, err = MonthWindow(2024, 13)
	assert.True(t, IsValidation(err))

	_, err = MonthWindow(0, 6)
	assert.True(t, IsValidation(err))
}

func TestWindow_ContainsIsHalfOpen(t *testing.T) {
	w, err := MonthWindow(2024, 11)
	require.NoError(t, err)

	// Start date is in, end date is out.
	assert.True(t, w.Contains(time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2024, 11, 30, 23, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)))
}

func TestNewWindow_RejectsReversedRange(t *testing.T) {
	start := time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC)
	_, err := NewWindow(start, start.AddDate(0, 0, -1))
	assert.True(t, IsValidation(err))
}
