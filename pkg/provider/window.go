package provider

import (
	"time"

	"github.com/yurifrl/perch/pkg/models"
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) StartDate() string {
	return r.Start.Format(models.DateLayout)
}

func (r Range) EndDate() string {
	return r.End.Format(models.DateLayout)
}

// Contains reports whether the calendar date d (YYYY-MM-DD) falls inside r.
func (r Range) Contains(d string) bool {
	if len(d) > len(models.DateLayout) {
		d = d[:len(models.DateLayout)]
	}
	return d >= r.StartDate() && d <= r.EndDate()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Day is today.
func Day(now time.Time) Range {
	d := midnight(now)
	return Range{Start: d, End: d}
}

// Week runs Sunday to Saturday around now.
func Week(now time.Time) Range {
	start := midnight(now).AddDate(0, 0, -int(now.Weekday()))
	return Range{Start: start, End: start.AddDate(0, 0, 6)}
}

// LastWeek is the Sunday to Saturday week before Week(now).
func LastWeek(now time.Time) Range {
	return Week(midnight(now).AddDate(0, 0, -7))
}

// Month is the calendar month around now.
func Month(now time.Time) Range {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Range{Start: start, End: start.AddDate(0, 1, -1)}
}

// Year is Jan 1 to Dec 31 of the current year.
func Year(now time.Time) Range {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return Range{Start: start, End: start.AddDate(1, 0, -1)}
}

// YearToDateMonths splits the year into whole months, January through the
// current month.
func YearToDateMonths(now time.Time) []Range {
	months := make([]Range, 0, int(now.Month()))
	for m := time.January; m <= now.Month(); m++ {
		months = append(months, Month(time.Date(now.Year(), m, 1, 0, 0, 0, 0, now.Location())))
	}
	return months
}
