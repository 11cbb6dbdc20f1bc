package clock

import (
	"testing"
	"time"
)

func d(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestAddDays(t *testing.T) {
	got := AddDays(d(2024, 2, 28, 9), 1)
	if !got.Equal(d(2024, 2, 29, 9)) {
		t.Errorf("AddDays leap = %v", got)
	}
	got = AddDays(d(2024, 12, 31, 9), 1)
	if !got.Equal(d(2025, 1, 1, 9)) {
		t.Errorf("AddDays year end = %v", got)
	}
}

func TestAddWeeks(t *testing.T) {
	got := AddWeeks(d(2024, 1, 29, 9), 1)
	if !got.Equal(d(2024, 2, 5, 9)) {
		t.Errorf("AddWeeks = %v, want 2024-02-05 09:00", got)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"mid month", d(2024, 1, 15, 10), 1, d(2024, 2, 15, 10)},
		{"jan 31 leap year", d(2024, 1, 31, 10), 1, d(2024, 2, 29, 10)},
		{"jan 31 common year", d(2025, 1, 31, 10), 1, d(2025, 2, 28, 10)},
		{"mar 31 to apr", d(2025, 3, 31, 10), 1, d(2025, 4, 30, 10)},
		{"dec to jan", d(2024, 12, 31, 23), 1, d(2025, 1, 31, 23)},
		{"two months", d(2025, 12, 31, 8), 2, d(2026, 2, 28, 8)},
	}
	for _, tt := range tests {
		got := AddMonths(tt.in, tt.n)
		if !got.Equal(tt.want) {
			t.Errorf("%s: AddMonths(%v, %d) = %v, want %v", tt.name, tt.in, tt.n, got, tt.want)
		}
	}
}

func TestAddMonthsKeepsNanoseconds(t *testing.T) {
	in := time.Date(2024, 5, 10, 9, 30, 15, 500, time.UTC)
	got := AddMonths(in, 1)
	if got.Nanosecond() != 500 || got.Second() != 15 || got.Minute() != 30 {
		t.Errorf("AddMonths lost time of day: %v", got)
	}
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(d(2024, 1, 8, 15), time.UTC)
	if !start.Equal(d(2024, 1, 8, 0)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(d(2024, 1, 9, 0).Add(-time.Nanosecond)) {
		t.Errorf("end = %v", end)
	}
}

func TestFake(t *testing.T) {
	f := NewFake(d(2024, 1, 1, 0))
	f.Advance(time.Hour)
	if !f.Now().Equal(d(2024, 1, 1, 1)) {
		t.Errorf("Now after Advance = %v", f.Now())
	}
	f.Set(d(2025, 1, 1, 0))
	if !f.Now().Equal(d(2025, 1, 1, 0)) {
		t.Errorf("Now after Set = %v", f.Now())
	}
}
