package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Wednesday.
var now = time.Date(2025, time.March, 12, 15, 4, 5, 0, time.UTC)

func TestWindows(t *testing.T) {
	tests := []struct {
		name       string
		r          Range
		start, end string
	}{
		{"day", Day(now), "2025-03-12", "2025-03-12"},
		{"week", Week(now), "2025-03-09", "2025-03-15"},
		{"last week", LastWeek(now), "2025-03-02", "2025-03-08"},
		{"month", Month(now), "2025-03-01", "2025-03-31"},
		{"year", Year(now), "2025-01-01", "2025-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.start, tt.r.StartDate())
			assert.Equal(t, tt.end, tt.r.EndDate())
		})
	}
}

func TestWeekOnSunday(t *testing.T) {
	sunday := time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-09", Week(sunday).StartDate())
	assert.Equal(t, "2025-03-15", Week(sunday).EndDate())
}

func TestMonthFebruaryLeapYear(t *testing.T) {
	r := Month(time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-29", r.EndDate())
}

func TestYearToDateMonths(t *testing.T) {
	months := YearToDateMonths(now)
	if assert.Len(t, months, 3) {
		assert.Equal(t, "2025-01-01", months[0].StartDate())
		assert.Equal(t, "2025-01-31", months[0].EndDate())
		assert.Equal(t, "2025-02-28", months[1].EndDate())
		assert.Equal(t, "2025-03-31", months[2].EndDate())
	}
}

func TestRangeContains(t *testing.T) {
	r := Week(now)
	assert.True(t, r.Contains("2025-03-09"))
	assert.True(t, r.Contains("2025-03-15T23:00:00Z"))
	assert.False(t, r.Contains("2025-03-16"))
	assert.False(t, r.Contains("2025-03-08"))
}
