package recurrence

import (
	"time"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/model"
)

// NextOccurrence returns the instant of the occurrence after eventTime under
// rule. The second result is false when the rule produces no further
// occurrence. Monthly uses clock.AddMonths, which clamps to the last day of a
// shorter target month.
func NextOccurrence(eventTime time.Time, rule model.Recurrence) (time.Time, bool) {
	switch rule {
	case model.RecurrenceDaily:
		return clock.AddDays(eventTime, 1), true
	case model.RecurrenceWeekly:
		return clock.AddWeeks(eventTime, 1), true
	case model.RecurrenceMonthly:
		return clock.AddMonths(eventTime, 1), true
	}
	return time.Time{}, false
}

// NextWithin is NextOccurrence restricted to occurrences at or before end.
// A nil end means the series is unbounded.
func NextWithin(eventTime time.Time, rule model.Recurrence, end *time.Time) (time.Time, bool) {
	next, ok := NextOccurrence(eventTime, rule)
	if !ok {
		return time.Time{}, false
	}
	if end != nil && next.After(*end) {
		return time.Time{}, false
	}
	return next, true
}
