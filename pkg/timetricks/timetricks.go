package timetricks

import (
	"time"
)

const (
	dayFormat      = "20060102"
	shortDayFormat = "01/02"
	clockFormat    = "3:04 PM"
	week           = 7 * 24 * time.Hour
)

func SameDay(t time.Time, t2 time.Time) bool {
	return t.Format(dayFormat) == t2.Format(dayFormat)
}

func Today(t time.Time) bool {
	return SameDay(t, time.Now())
}

func Yesterday(t time.Time) bool {
	return Today(t.Add(24 * time.Hour))
}

func TrimClock(t time.Time) time.Time {
	h, m, s := t.Clock()
	return t.Add(-1 *
		(time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(t.Nanosecond())))
}

// Day names the calendar day of a past time t relative to now: "Today",
// "Yesterday", a weekday within the last week, or the month and day.
func Day(t time.Time) string {
	return day(t, time.Now())
}

func day(t, now time.Time) string {
	switch {
	case SameDay(t, now):
		return "Today"
	case SameDay(t.Add(24*time.Hour), now):
		return "Yesterday"
	case t.After(TrimClock(now).Add(-week)):
		return t.Weekday().String()
	default:
		return t.Format(shortDayFormat)
	}
}

// LastSeen describes when a visitor was last seen, e.g. "Today at 4:27 PM".
func LastSeen(t time.Time) string {
	return Day(t) + " at " + t.Format(clockFormat)
}
