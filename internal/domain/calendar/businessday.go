// Package calendar implements business-day arithmetic. Business days are Monday to Friday;
// no holiday calendar is modeled.
package calendar

import "time"

func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// AddBusinessDays returns the n-th business day strictly after start, keeping the clock time and
// location of start. n <= 0 returns start unchanged.
func AddBusinessDays(start time.Time, n int) time.Time {
	current := start
	for counted := 0; counted < n; {
		current = current.AddDate(0, 0, 1)
		if IsBusinessDay(current) {
			counted++
		}
	}
	return current
}

// CountBusinessDays counts business days in the inclusive date range [start, end], compared as
// calendar dates in start's location. It returns 0 when end is before start.
func CountBusinessDays(start time.Time, end time.Time) int {
	from := dateOf(start, start.Location())
	to := dateOf(end, start.Location())
	if to.Before(from) {
		return 0
	}

	count := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if IsBusinessDay(day) {
			count++
		}
	}
	return count
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
