package application

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/facility-reservations/internal/scheduler"
)

// MonthGridCells is the number of cells in a month grid: six Sunday-first weeks.
const MonthGridCells = 42

// SnapshotSource provides point-in-time copies of the reservation list.
type SnapshotSource interface {
	Snapshot() []Reservation
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a YYYY-MM string.
func ParseYearMonth(raw string) (YearMonth, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: month %q", scheduler.ErrInvalidFormat, raw)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing d.
func MonthOf(d scheduler.Date) YearMonth {
	return YearMonth{Year: d.Year, Month: d.Month}
}

// PrevMonth returns the month before ym.
func PrevMonth(ym YearMonth) YearMonth {
	return ym.add(-1)
}

// NextMonth returns the month after ym.
func NextMonth(ym YearMonth) YearMonth {
	return ym.add(1)
}

func (ym YearMonth) add(months int) YearMonth {
	t := time.Date(ym.Year, ym.Month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// First returns the first day of the month.
func (ym YearMonth) First() scheduler.Date {
	return scheduler.Date{Year: ym.Year, Month: ym.Month, Day: 1}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// MonthGrid lays out ym as 42 day cells starting on the Sunday on or before the first.
func MonthGrid(ym YearMonth) []DayCell {
	first := ym.First()
	start := first.AddDays(-int(first.Weekday()))
	cells := make([]DayCell, MonthGridCells)
	for i := range cells {
		d := start.AddDays(i)
		cells[i] = DayCell{Date: d, InMonth: d.Year == ym.Year && d.Month == ym.Month}
	}
	return cells
}

// CalendarIndex answers the day and upcoming queries a calendar view needs. It derives
// everything from snapshots and never mutates them.
type CalendarIndex struct {
	source SnapshotSource
}

// NewCalendarIndex constructs a calendar index over source.
func NewCalendarIndex(source SnapshotSource) *CalendarIndex {
	return &CalendarIndex{source: source}
}

func (c *CalendarIndex) snapshot() []Reservation {
	if c == nil || c.source == nil {
		return nil
	}
	return c.source.Snapshot()
}

// ReservationsOn returns the reservations on date, keeping snapshot order. A facility
// filter of FacilityAll or "" matches every facility.
func (c *CalendarIndex) ReservationsOn(date scheduler.Date, facilityFilter string) []Reservation {
	var out []Reservation
	for _, r := range c.snapshot() {
		if r.Date != date || !matchesFacility(r, facilityFilter) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Upcoming returns reservations that end after now, ordered by date then start time and
// truncated to limit. A limit of zero or less returns every match.
func (c *CalendarIndex) Upcoming(now time.Time, limit int, facilityFilter string) UpcomingPage {
	loc := now.Location()
	var matches []Reservation
	for _, r := range c.snapshot() {
		if !matchesFacility(r, facilityFilter) {
			continue
		}
		if !r.Date.At(r.TimeRange.End, loc).After(now) {
			continue
		}
		matches = append(matches, r)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if cmp := matches[i].Date.Compare(matches[j].Date); cmp != 0 {
			return cmp < 0
		}
		return matches[i].TimeRange.Start < matches[j].TimeRange.Start
	})

	page := UpcomingPage{Reservations: matches}
	if limit > 0 && len(matches) > limit {
		page.Reservations = matches[:limit]
		page.Remaining = len(matches) - limit
	}
	return page
}

func matchesFacility(r Reservation, filter string) bool {
	return filter == "" || filter == FacilityAll || r.FacilityID == filter
}
