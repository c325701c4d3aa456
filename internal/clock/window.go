package clock

import "time"

// DayWindow returns the UTC calendar day containing t as an inclusive range:
// start is midnight UTC, end is the last nanosecond before the next midnight.
func DayWindow(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// InWindow reports whether t lies in [start, end], both ends included.
func InWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
