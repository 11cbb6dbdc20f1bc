// Package lifecycle owns every write to events and the reminder queue. Each
// operation runs in a single transaction and is serialized per event id.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/model"
	"github.com/dukerupert/desklist/internal/recurrence"
	"github.com/dukerupert/desklist/internal/reminder"
	"github.com/dukerupert/desklist/internal/store"
)

// Change actions passed to a Notifier.
const (
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionCompleted   = "completed"
	ActionUncompleted = "uncompleted"
	ActionDeleted     = "deleted"
)

// Notifier is told about committed changes. It must not block.
type Notifier interface {
	EventChanged(action string, e *model.Event)
}

type Manager struct {
	db       *sql.DB
	clock    clock.Clock
	newID    func() string
	locks    *keyLocks
	notifier Notifier
	logger   *slog.Logger
}

// NewManager creates a lifecycle manager. notifier may be nil.
func NewManager(db *sql.DB, clk clock.Clock, notifier Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		db:       db,
		clock:    clk,
		newID:    uuid.NewString,
		locks:    newKeyLocks(),
		notifier: notifier,
		logger:   logger,
	}
}

// ToggleResult is the outcome of ToggleComplete. Spawned is set when
// completing a recurring event produced its next occurrence.
type ToggleResult struct {
	Event   *model.Event `json:"event"`
	Spawned *model.Event `json:"spawned,omitempty"`
}

// txStores binds both stores to one transaction.
type txStores struct {
	events    *store.EventStore
	reminders *store.ReminderStore
}

func (m *Manager) inTx(ctx context.Context, fn func(s txStores) error) error {
	err := store.RunInTx(ctx, m.db, func(tx *sql.Tx) error {
		return fn(txStores{
			events:    store.NewEventStore(tx),
			reminders: store.NewReminderStore(tx),
		})
	})
	if errors.Is(err, store.ErrCommit) {
		return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
	}
	return err
}

func (m *Manager) notify(action string, e *model.Event) {
	if m.notifier != nil && e != nil {
		m.notifier.EventChanged(action, e)
	}
}

// Create inserts a new event and its reminders and returns the new id.
func (m *Manager) Create(ctx context.Context, in model.NewEvent) (string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", invalid("title", "is required")
	}
	if in.EventTime.IsZero() {
		return "", invalid("event_time", "is required")
	}
	rec, err := model.ParseRecurrence(string(in.Recurrence))
	if err != nil {
		return "", invalid("recurrence", err.Error())
	}

	now := m.clock.Now()
	e := &model.Event{
		ID:            m.newID(),
		Title:         title,
		Description:   in.Description,
		EventTime:     in.EventTime,
		RemindAt:      in.RemindAt,
		RemindOnTime:  in.RemindOnTime,
		Recurrence:    rec,
		RecurrenceEnd: in.RecurrenceEnd,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	unlock := m.locks.Lock(e.ID)
	defer unlock()

	var queued int
	err = m.inTx(ctx, func(s txStores) error {
		var err error
		queued, err = m.insertWithReminders(ctx, s, e)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}

	m.logger.Info("event created", "id", e.ID, "event_time", e.EventTime, "reminders", queued)
	m.notify(ActionCreated, e)
	return e.ID, nil
}

func (m *Manager) insertWithReminders(ctx context.Context, s txStores, e *model.Event) (int, error) {
	if err := s.events.Insert(ctx, e); err != nil {
		return 0, err
	}
	drafts := reminder.ForEvent(e)
	if err := s.reminders.InsertAll(ctx, drafts); err != nil {
		return 0, err
	}
	return len(drafts), nil
}

// Get returns the event or ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*model.Event, error) {
	e, err := store.NewEventStore(m.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// List is the read-only query surface over events.
func (m *Manager) List(ctx context.Context, filter model.Filter, loc *time.Location) ([]model.Event, error) {
	if _, err := model.ParseFilter(string(filter)); err != nil {
		return nil, invalid("filter", err.Error())
	}
	return store.NewEventStore(m.db).List(ctx, filter, m.clock.Now(), loc)
}

// Reminders returns every queue entry of an event, fired or not.
func (m *Manager) Reminders(ctx context.Context, id string) ([]model.ReminderEntry, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return store.NewReminderStore(m.db).ListByEvent(ctx, id)
}

// Update applies a partial change. When the patch supplies event_time,
// remind_at or remind_on_time, every unfired entry of the event is replaced
// by a fresh set generated from the updated row. Fired entries are kept.
func (m *Manager) Update(ctx context.Context, id string, patch model.EventPatch) (*model.Event, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, invalid("title", "must not be empty")
		}
		patch.Title = &t
	}
	if patch.EventTime != nil && patch.EventTime.IsZero() {
		return nil, invalid("event_time", "must not be zero")
	}
	if patch.Recurrence != nil {
		rec, err := model.ParseRecurrence(string(*patch.Recurrence))
		if err != nil {
			return nil, invalid("recurrence", err.Error())
		}
		patch.Recurrence = &rec
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	var updated *model.Event
	var purged int64
	var queued int
	err := m.inTx(ctx, func(s txStores) error {
		existing, err := s.events.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}

		if err := s.events.Update(ctx, id, patch, m.clock.Now()); err != nil {
			return err
		}

		updated, err = s.events.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrNotFound
		}

		if !patch.TouchesReminders() {
			return nil
		}
		if purged, err = s.reminders.DeleteUnfired(ctx, id); err != nil {
			return err
		}
		drafts := reminder.ForEvent(updated)
		queued = len(drafts)
		return s.reminders.InsertAll(ctx, drafts)
	})
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if patch.TouchesReminders() {
		m.logger.Info("event reminders regenerated", "id", id, "purged", purged, "queued", queued)
	} else {
		m.logger.Debug("event updated", "id", id)
	}
	m.notify(ActionUpdated, updated)
	return updated, nil
}

// ToggleComplete flips the completed flag. Completing a recurring event
// inserts its next occurrence when one exists at or before recurrence_end.
// Marking a completed event active again does not remove a spawned occurrence.
func (m *Manager) ToggleComplete(ctx context.Context, id string) (*ToggleResult, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	var res ToggleResult
	err := m.inTx(ctx, func(s txStores) error {
		e, err := s.events.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrNotFound
		}

		now := m.clock.Now()
		e.Completed = !e.Completed
		e.UpdatedAt = now
		if err := s.events.SetCompleted(ctx, id, e.Completed, now); err != nil {
			return err
		}
		res.Event = e

		if !e.Completed {
			return nil
		}
		next, ok := recurrence.NextWithin(e.EventTime, e.Recurrence, e.RecurrenceEnd)
		if !ok {
			return nil
		}

		spawned := &model.Event{
			ID:            m.newID(),
			Title:         e.Title,
			Description:   e.Description,
			EventTime:     next,
			RemindAt:      e.RemindAt,
			RemindOnTime:  e.RemindOnTime,
			Recurrence:    e.Recurrence,
			RecurrenceEnd: e.RecurrenceEnd,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := m.insertWithReminders(ctx, s, spawned); err != nil {
			return err
		}
		res.Spawned = spawned
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggle event: %w", err)
	}

	if res.Event.Completed {
		m.logger.Info("event completed", "id", id)
		m.notify(ActionCompleted, res.Event)
	} else {
		m.logger.Info("event reopened", "id", id)
		m.notify(ActionUncompleted, res.Event)
	}
	if res.Spawned != nil {
		m.logger.Info("next occurrence created", "id", res.Spawned.ID, "from", id, "event_time", res.Spawned.EventTime)
		m.notify(ActionCreated, res.Spawned)
	}
	return &res, nil
}

// Delete removes every queue entry of the event, then the event itself.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	var deleted *model.Event
	var purged int64
	err := m.inTx(ctx, func(s txStores) error {
		e, err := s.events.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrNotFound
		}
		deleted = e

		if purged, err = s.reminders.DeleteAll(ctx, id); err != nil {
			return err
		}
		return s.events.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	m.logger.Info("event deleted", "id", id, "reminders", purged)
	m.notify(ActionDeleted, deleted)
	return nil
}
