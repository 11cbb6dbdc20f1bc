// Package reminder turns an event's time-relevant fields into queue drafts.
package reminder

import (
	"time"

	"github.com/dukerupert/desklist/internal/model"
)

// Generate returns the drafts to enqueue for an event: an on_time draft at
// eventTime when remindOnTime is set, then an advance draft at remindAt when
// present. remindAt is not checked against eventTime.
func Generate(eventID string, eventTime time.Time, remindAt *time.Time, remindOnTime bool) []model.ReminderDraft {
	drafts := make([]model.ReminderDraft, 0, 2)
	if remindOnTime {
		drafts = append(drafts, model.ReminderDraft{
			EventID: eventID,
			FireAt:  eventTime,
			Type:    model.ReminderOnTime,
		})
	}
	if remindAt != nil {
		drafts = append(drafts, model.ReminderDraft{
			EventID: eventID,
			FireAt:  *remindAt,
			Type:    model.ReminderAdvance,
		})
	}
	return drafts
}

// ForEvent generates drafts from an event's current state.
func ForEvent(e *model.Event) []model.ReminderDraft {
	return Generate(e.ID, e.EventTime, e.RemindAt, e.RemindOnTime)
}
