// Package ics renders events as an iCalendar feed.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/desklist/internal/model"
	"github.com/dukerupert/desklist/internal/recurrence"
)

const productID = "-//desklist//desklist//EN"

// Events carry no duration; exported VEVENTs last this long.
const defaultDuration = 30 * time.Minute

// Export builds a calendar from events. reminders maps an event id to its
// queue entries; unfired entries become DISPLAY alarms.
func Export(events []model.Event, reminders map[string][]model.ReminderEntry, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		ev := cal.AddEvent(e.ID)
		ev.SetDtStampTime(stamp)
		ev.SetCreatedTime(e.CreatedAt)
		ev.SetModifiedAt(e.UpdatedAt)
		ev.SetStartAt(e.EventTime)
		ev.SetEndAt(e.EventTime.Add(defaultDuration))
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if rule, ok := recurrence.RRule(e.Recurrence, e.EventTime, e.RecurrenceEnd); ok {
			ev.AddRrule(rule)
		}

		for _, r := range reminders[e.ID] {
			if r.Fired {
				continue
			}
			alarm := ev.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(Duration(r.FireAt.Sub(e.EventTime)))
			alarm.SetProperty(ical.ComponentPropertyDescription, e.Title)
		}
	}

	return cal.Serialize()
}

// Duration formats d as an RFC 5545 duration, e.g. -PT15M or PT1H30M.
// Sub-second precision is dropped.
func Duration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteString("PT")

	secs := int64(d / time.Second)
	h, m, s := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
