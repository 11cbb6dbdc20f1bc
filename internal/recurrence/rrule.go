package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/model"
)

var frequencies = map[model.Recurrence]rrule.Frequency{
	model.RecurrenceDaily:   rrule.DAILY,
	model.RecurrenceWeekly:  rrule.WEEKLY,
	model.RecurrenceMonthly: rrule.MONTHLY,
}

// RRule renders rule for a series starting at start as an RFC 5545 RRULE
// value (without the "RRULE:" prefix), bounded by until when non-nil. The
// second result is false for none.
//
// A plain FREQ=MONTHLY skips months that lack the start day, while
// NextOccurrence clamps to the last day. A start on the last day of its month
// is therefore rendered with BYMONTHDAY=-1. Starts on the 29th or 30th that
// are not month-end still differ after a short month.
func RRule(rule model.Recurrence, start time.Time, until *time.Time) (string, bool) {
	freq, ok := frequencies[rule]
	if !ok {
		return "", false
	}
	opt := rrule.ROption{Freq: freq, Interval: 1}
	if rule == model.RecurrenceMonthly && isMonthEnd(start) {
		opt.Bymonthday = []int{-1}
	}
	if until != nil {
		opt.Until = until.UTC()
	}
	return opt.RRuleString(), true
}

// Describe returns a human-readable description of the rule.
func Describe(rule model.Recurrence, until *time.Time) string {
	var s string
	switch rule {
	case model.RecurrenceDaily:
		s = "Repeats daily"
	case model.RecurrenceWeekly:
		s = "Repeats weekly"
	case model.RecurrenceMonthly:
		s = "Repeats monthly"
	default:
		return "Does not repeat"
	}
	if until != nil {
		s += " until " + until.UTC().Format("2006-01-02 15:04")
	}
	return s
}

func isMonthEnd(t time.Time) bool {
	return t.Day() == clock.DaysInMonth(t.Year(), t.Month())
}
