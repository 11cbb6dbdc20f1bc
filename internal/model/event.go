package model

import (
	"fmt"
	"time"
)

// Recurrence is the rule that governs spawning a follow-up event on completion.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence accepts the stored/wire names. An empty string means none.
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(s); r {
	case "":
		return RecurrenceNone, nil
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, nil
	}
	return "", fmt.Errorf("unknown recurrence: %q", s)
}

type Event struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	EventTime     time.Time  `json:"event_time"`
	Completed     bool       `json:"completed"`
	RemindAt      *time.Time `json:"remind_at"`
	RemindOnTime  bool       `json:"remind_on_time"`
	Recurrence    Recurrence `json:"recurrence"`
	RecurrenceEnd *time.Time `json:"recurrence_end"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewEvent holds the caller-supplied fields of an event being created.
type NewEvent struct {
	Title         string
	Description   string
	EventTime     time.Time
	RemindAt      *time.Time
	RemindOnTime  bool
	Recurrence    Recurrence
	RecurrenceEnd *time.Time
}

// OptionalTime distinguishes "leave unchanged" (Set == false) from
// "set to null" (Set == true, Time == nil) in a partial update.
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// EventPatch is a partial update. Nil pointers and unset optionals are left alone.
type EventPatch struct {
	Title         *string
	Description   *string
	EventTime     *time.Time
	RemindAt      OptionalTime
	RemindOnTime  *bool
	Recurrence    *Recurrence
	RecurrenceEnd OptionalTime
}

// TouchesReminders reports whether the patch supplies any time-relevant field.
func (p EventPatch) TouchesReminders() bool {
	return p.EventTime != nil || p.RemindAt.Set || p.RemindOnTime != nil
}

// IsEmpty reports whether the patch supplies no field at all.
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.EventTime == nil &&
		!p.RemindAt.Set && p.RemindOnTime == nil && p.Recurrence == nil && !p.RecurrenceEnd.Set
}

// Filter selects a projection of the event list.
type Filter string

const (
	FilterToday     Filter = "today"
	FilterUpcoming  Filter = "upcoming"
	FilterCompleted Filter = "completed"
	FilterAll       Filter = "all"
)

// ParseFilter accepts the filter names; empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterToday, FilterUpcoming, FilterCompleted, FilterAll:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter: %q", s)
}
