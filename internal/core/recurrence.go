package core

import "time"

// NextOccurrence computes the next due instant after last for the given
// recurrence. Pure function, no I/O.
//
// Monthly advancement preserves the day of month where it exists in the target
// month and clamps to its last day otherwise (Jan 31 -> Feb 28/29).
func NextOccurrence(last time.Time, r Recurrence) (time.Time, error) {
	switch r {
	case EveryMinute:
		return last.Add(time.Minute), nil
	case Daily:
		return last.AddDate(0, 0, 1), nil
	case Weekly:
		return last.AddDate(0, 0, 7), nil
	case Monthly:
		return addMonthClamped(last), nil
	default:
		return time.Time{}, ErrInvalidRecurrence
	}
}

// addMonthClamped adds one calendar month without the day-overflow
// normalization time.AddDate would apply.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	// Day 0 of month+2 is the last day of month+1.
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
