package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/database"
	"github.com/dukerupert/desklist/internal/lifecycle"
	"github.com/dukerupert/desklist/internal/model"
	"github.com/dukerupert/desklist/internal/store"
)

type recordingSink struct {
	mu  sync.Mutex
	got []model.DueReminder
	err error
}

func (s *recordingSink) Deliver(_ context.Context, r model.DueReminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, r)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type fixture struct {
	manager   *lifecycle.Manager
	reminders *store.ReminderStore
	clock     *clock.Fake
	sink      *recordingSink
	d         *Dispatcher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFake(time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC))
	reminders := store.NewReminderStore(db)
	sink := &recordingSink{}
	return &fixture{
		manager:   lifecycle.NewManager(db, clk, nil, slog.Default()),
		reminders: reminders,
		clock:     clk,
		sink:      sink,
		d:         NewDispatcher(reminders, clk, "@every 1s", slog.Default(), sink, LogSink{Logger: slog.Default()}),
	}
}

func ts(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func (f *fixture) standup(t *testing.T) string {
	t.Helper()
	remindAt := ts("2024-01-08T08:45:00Z")
	id, err := f.manager.Create(context.Background(), model.NewEvent{
		Title:        "Standup",
		EventTime:    ts("2024-01-08T09:00:00Z"),
		RemindAt:     &remindAt,
		RemindOnTime: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return id
}

func TestTickFiresOnlyDueReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.standup(t)

	n, err := f.d.Tick(ctx)
	if err != nil || n != 0 {
		t.Fatalf("tick before due = %d, %v", n, err)
	}

	f.clock.Set(ts("2024-01-08T08:50:00Z"))
	n, err = f.d.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n != 1 || f.sink.count() != 1 {
		t.Fatalf("fired %d, delivered %d; want 1, 1", n, f.sink.count())
	}
	if f.sink.got[0].Type != model.ReminderAdvance || f.sink.got[0].Title != "Standup" {
		t.Errorf("delivered = %+v", f.sink.got[0])
	}

	// Fired entries are never delivered again.
	n, _ = f.d.Tick(ctx)
	if n != 0 || f.sink.count() != 1 {
		t.Errorf("second tick fired %d, delivered %d", n, f.sink.count())
	}

	f.clock.Set(ts("2024-01-08T09:00:00Z"))
	n, _ = f.d.Tick(ctx)
	if n != 1 {
		t.Errorf("on_time tick fired %d, want 1", n)
	}

	entries, _ := f.reminders.ListByEvent(ctx, id)
	for _, e := range entries {
		if !e.Fired {
			t.Errorf("entry %d should be fired", e.ID)
		}
	}
}

func TestTickSkipsCompletedEvents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.standup(t)

	if _, err := f.manager.ToggleComplete(ctx, id); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.clock.Set(ts("2024-01-08T10:00:00Z"))

	n, err := f.d.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n != 0 || f.sink.count() != 0 {
		t.Errorf("completed event reminders were delivered: %d", n)
	}
}

func TestTickRetriesFailedDelivery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.standup(t)
	f.clock.Set(ts("2024-01-08T09:00:00Z"))

	f.sink.err = errors.New("sink down")
	n, err := f.d.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n != 0 {
		t.Errorf("fired %d with failing sink, want 0", n)
	}

	f.sink.err = nil
	n, _ = f.d.Tick(ctx)
	if n != 2 {
		t.Errorf("retry fired %d, want 2", n)
	}
}

type racingQueue struct {
	Queue
	before func()
}

func (q racingQueue) MarkFired(ctx context.Context, id int64) (bool, error) {
	q.before()
	return q.Queue.MarkFired(ctx, id)
}

func TestTickDoesNotResurrectDeletedEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.standup(t)
	f.clock.Set(ts("2024-01-08T09:00:00Z"))

	var once sync.Once
	q := racingQueue{Queue: f.reminders, before: func() {
		once.Do(func() {
			if err := f.manager.Delete(ctx, id); err != nil {
				t.Errorf("delete: %v", err)
			}
		})
	}}
	d := NewDispatcher(q, f.clock, "@every 1s", slog.Default(), f.sink)

	n, err := d.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if n != 0 {
		t.Errorf("fired %d entries of a deleted event", n)
	}
	entries, _ := f.reminders.ListByEvent(ctx, id)
	if len(entries) != 0 {
		t.Errorf("%d entries resurrected", len(entries))
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	f := setup(t)
	d := NewDispatcher(f.reminders, f.clock, "every now and then", slog.Default())
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected schedule parse error")
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	f := setup(t)
	f.standup(t)
	f.clock.Set(ts("2024-01-08T09:00:00Z"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.d.Stop()

	if err := f.d.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if f.sink.count() != 2 {
		t.Errorf("delivered %d reminders on schedule, want 2", f.sink.count())
	}
}
