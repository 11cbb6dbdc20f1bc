package model

import (
	"testing"
	"time"
)

func TestParseRecurrence(t *testing.T) {
	tests := []struct {
		in      string
		want    Recurrence
		wantErr bool
	}{
		{"", RecurrenceNone, false},
		{"none", RecurrenceNone, false},
		{"daily", RecurrenceDaily, false},
		{"weekly", RecurrenceWeekly, false},
		{"monthly", RecurrenceMonthly, false},
		{"yearly", "", true},
		{"DAILY", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRecurrence(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRecurrence(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRecurrence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFilter(t *testing.T) {
	for _, in := range []string{"today", "upcoming", "completed", "all"} {
		if _, err := ParseFilter(in); err != nil {
			t.Errorf("ParseFilter(%q): %v", in, err)
		}
	}
	if f, err := ParseFilter(""); err != nil || f != FilterAll {
		t.Errorf("ParseFilter(\"\") = %q, %v; want all", f, err)
	}
	if _, err := ParseFilter("tomorrow"); err == nil {
		t.Error("ParseFilter(tomorrow) should error")
	}
}

func TestPatchTouchesReminders(t *testing.T) {
	now := time.Now()
	on := false
	title := "x"

	tests := []struct {
		name  string
		patch EventPatch
		want  bool
	}{
		{"empty", EventPatch{}, false},
		{"title only", EventPatch{Title: &title}, false},
		{"recurrence end", EventPatch{RecurrenceEnd: OptionalTime{Set: true}}, false},
		{"event time", EventPatch{EventTime: &now}, true},
		{"clear remind_at", EventPatch{RemindAt: OptionalTime{Set: true}}, true},
		{"remind_on_time", EventPatch{RemindOnTime: &on}, true},
	}
	for _, tt := range tests {
		if got := tt.patch.TouchesReminders(); got != tt.want {
			t.Errorf("%s: TouchesReminders() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(EventPatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if (EventPatch{RecurrenceEnd: OptionalTime{Set: true}}).IsEmpty() {
		t.Error("patch clearing recurrence_end should not be empty")
	}
}
