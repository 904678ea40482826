package dashboard

import (
	"time"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// DateRange is a symbolic date range shortcut.
type DateRange string

// Date range shortcuts.
const (
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
	RangeYear  DateRange = "year"
)

// LocalDate formats the calendar day of t in loc. A nil loc means time.Local.
func LocalDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(visitors.DateLayout)
}

// ResolveDateRange returns the start and end calendar days of a shortcut,
// both computed in loc. The end is always today.
func ResolveDateRange(r DateRange, now time.Time, loc *time.Location) (string, string, error) {
	if loc == nil {
		loc = time.Local
	}
	today := now.In(loc)
	y, m, d := today.Date()
	end := today.Format(visitors.DateLayout)

	var start time.Time
	switch r {
	case RangeToday:
		return end, end, nil
	case RangeWeek:
		start = time.Date(y, m, d-7, 0, 0, 0, 0, loc)
	case RangeMonth:
		start = time.Date(y, m, d-30, 0, 0, 0, 0, loc)
	case RangeYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return "", "", ErrUnknownDateRange
	}
	return start.Format(visitors.DateLayout), end, nil
}

// DefaultDates returns the initial filter window: the first day of the
// current month through today.
func DefaultDates(now time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.Local
	}
	today := now.In(loc)
	y, m, _ := today.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	return first.Format(visitors.DateLayout), today.Format(visitors.DateLayout)
}
