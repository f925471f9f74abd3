package services

import "time"

const (
	minManualDuration = 1
	maxManualDuration = 365
)

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DurationDays is the inclusive day count between start and end.
func DurationDays(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours()/24) + 1
}

// AddDays moves a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return DateOnly(t).AddDate(0, 0, n)
}

// ClampDuration keeps manual task durations inside [1, 365].
func ClampDuration(days int) int {
	if days < minManualDuration {
		return minManualDuration
	}
	if days > maxManualDuration {
		return maxManualDuration
	}
	return days
}

// DateRange is an inclusive [From, To] window of calendar days.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) normalized() DateRange {
	return DateRange{From: DateOnly(r.From), To: DateOnly(r.To)}
}

// Contains reports whether [start, end] lies inside the range.
func (r DateRange) Contains(start, end time.Time) bool {
	n := r.normalized()
	return !DateOnly(start).Before(n.From) && !DateOnly(end).After(n.To)
}
