package model

import "time"

type ReminderType string

const (
	ReminderOnTime  ReminderType = "on_time"
	ReminderAdvance ReminderType = "advance"
)

// ReminderDraft is a queue entry that has not been persisted yet.
type ReminderDraft struct {
	EventID string
	FireAt  time.Time
	Type    ReminderType
}

type ReminderEntry struct {
	ID      int64        `json:"id"`
	EventID string       `json:"event_id"`
	FireAt  time.Time    `json:"fire_at"`
	Fired   bool         `json:"fired"`
	Type    ReminderType `json:"type"`
}

// DueReminder is an unfired entry joined with the display fields of its event.
type DueReminder struct {
	ReminderEntry
	Title     string    `json:"title"`
	EventTime time.Time `json:"event_time"`
}
