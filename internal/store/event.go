package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/model"
)

type EventStore struct {
	db DBTX
}

func NewEventStore(db DBTX) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, title, description, event_time, completed, remind_at, remind_on_time, recurrence, recurrence_end, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var eventTime, createdAt, updatedAt string
	var remindAt, recurrenceEnd sql.NullString
	var completed, remindOnTime int
	var recurrence string

	err := scanner.Scan(
		&e.ID, &e.Title, &e.Description, &eventTime, &completed, &remindAt,
		&remindOnTime, &recurrence, &recurrenceEnd, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Completed = completed != 0
	e.RemindOnTime = remindOnTime != 0
	e.Recurrence = model.Recurrence(recurrence)

	if e.EventTime, err = parseTime(eventTime); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if e.RemindAt, err = parseNullTime(remindAt); err != nil {
		return nil, err
	}
	if e.RecurrenceEnd, err = parseNullTime(recurrenceEnd); err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert writes a fully populated event row. The caller assigns the id and timestamps.
func (s *EventStore) Insert(ctx context.Context, e *model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, formatTime(e.EventTime), boolToInt(e.Completed),
		formatNullTime(e.RemindAt), boolToInt(e.RemindOnTime), string(e.Recurrence),
		formatNullTime(e.RecurrenceEnd), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when no event has the id.
func (s *EventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

type assignment struct {
	col string
	val any
}

// Update applies the supplied fields of patch plus updated_at.
func (s *EventStore) Update(ctx context.Context, id string, patch model.EventPatch, updatedAt time.Time) error {
	var set []assignment
	if patch.Title != nil {
		set = append(set, assignment{"title", *patch.Title})
	}
	if patch.Description != nil {
		set = append(set, assignment{"description", *patch.Description})
	}
	if patch.EventTime != nil {
		set = append(set, assignment{"event_time", formatTime(*patch.EventTime)})
	}
	if patch.RemindAt.Set {
		set = append(set, assignment{"remind_at", formatNullTime(patch.RemindAt.Time)})
	}
	if patch.RemindOnTime != nil {
		set = append(set, assignment{"remind_on_time", boolToInt(*patch.RemindOnTime)})
	}
	if patch.Recurrence != nil {
		set = append(set, assignment{"recurrence", string(*patch.Recurrence)})
	}
	if patch.RecurrenceEnd.Set {
		set = append(set, assignment{"recurrence_end", formatNullTime(patch.RecurrenceEnd.Time)})
	}
	set = append(set, assignment{"updated_at", formatTime(updatedAt)})

	cols := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)
	for _, a := range set {
		cols = append(cols, a.col+" = ?")
		args = append(args, a.val)
	}
	args = append(args, id)

	_, err := s.db.ExecContext(ctx, `UPDATE events SET `+strings.Join(cols, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (s *EventStore) SetCompleted(ctx context.Context, id string, completed bool, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET completed = ?, updated_at = ? WHERE id = ?`,
		boolToInt(completed), formatTime(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// List returns the projection selected by filter. now and loc define "today"
// and "upcoming".
func (s *EventStore) List(ctx context.Context, filter model.Filter, now time.Time, loc *time.Location) ([]model.Event, error) {
	var query string
	var args []any

	switch filter {
	case model.FilterToday:
		start, end := clock.DayBounds(now, loc)
		query = `SELECT ` + eventCols + ` FROM events
			WHERE event_time >= ? AND event_time <= ? AND completed = 0
			ORDER BY event_time ASC`
		args = []any{formatTime(start), formatTime(end)}
	case model.FilterUpcoming:
		query = `SELECT ` + eventCols + ` FROM events
			WHERE event_time > ? AND completed = 0
			ORDER BY event_time ASC`
		args = []any{formatTime(now)}
	case model.FilterCompleted:
		query = `SELECT ` + eventCols + ` FROM events WHERE completed = 1 ORDER BY updated_at DESC`
	case model.FilterAll:
		query = `SELECT ` + eventCols + ` FROM events ORDER BY event_time ASC`
	default:
		return nil, fmt.Errorf("list events: unknown filter %q", filter)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
