package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/desklist/internal/model"
)

type ReminderStore struct {
	db DBTX
}

func NewReminderStore(db DBTX) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `id, event_id, fire_at, fired, type`

func scanReminder(scanner interface{ Scan(...any) error }, extra ...any) (*model.ReminderEntry, error) {
	var r model.ReminderEntry
	var fireAt, typ string
	var fired int

	dest := append([]any{&r.ID, &r.EventID, &fireAt, &fired, &typ}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	t, err := parseTime(fireAt)
	if err != nil {
		return nil, err
	}
	r.FireAt = t
	r.Fired = fired != 0
	r.Type = model.ReminderType(typ)
	return &r, nil
}

// Insert persists a draft as an unfired entry and returns its id.
func (s *ReminderStore) Insert(ctx context.Context, d model.ReminderDraft) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_queue (event_id, fire_at, fired, type) VALUES (?, ?, 0, ?)`,
		d.EventID, formatTime(d.FireAt), string(d.Type),
	)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// InsertAll persists drafts in order.
func (s *ReminderStore) InsertAll(ctx context.Context, drafts []model.ReminderDraft) error {
	for _, d := range drafts {
		if _, err := s.Insert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// DeleteUnfired removes the pending entries of an event, leaving fired ones.
func (s *ReminderStore) DeleteUnfired(ctx context.Context, eventID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminder_queue WHERE event_id = ? AND fired = 0`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete unfired reminders: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAll removes every entry of an event, fired or not.
func (s *ReminderStore) DeleteAll(ctx context.Context, eventID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminder_queue WHERE event_id = ?`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete reminders: %w", err)
	}
	return result.RowsAffected()
}

func (s *ReminderStore) GetByID(ctx context.Context, id int64) (*model.ReminderEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderCols+` FROM reminder_queue WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) ListByEvent(ctx context.Context, eventID string) ([]model.ReminderEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminder_queue WHERE event_id = ? ORDER BY id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var entries []model.ReminderEntry
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		entries = append(entries, *r)
	}
	return entries, rows.Err()
}

// ListDue returns unfired entries with fire_at at or before at whose event is
// still active, oldest first.
func (s *ReminderStore) ListDue(ctx context.Context, at time.Time) ([]model.DueReminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rq.id, rq.event_id, rq.fire_at, rq.fired, rq.type, e.title, e.event_time
		 FROM reminder_queue rq
		 JOIN events e ON rq.event_id = e.id
		 WHERE rq.fired = 0 AND rq.fire_at <= ? AND e.completed = 0
		 ORDER BY rq.fire_at ASC, rq.id ASC`,
		formatTime(at),
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var due []model.DueReminder
	for rows.Next() {
		var title, eventTime string
		r, err := scanReminder(rows, &title, &eventTime)
		if err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		et, err := parseTime(eventTime)
		if err != nil {
			return nil, err
		}
		due = append(due, model.DueReminder{ReminderEntry: *r, Title: title, EventTime: et})
	}
	return due, rows.Err()
}

// MarkFired flips fired from false to true. It reports false when the entry
// was already fired or no longer exists.
func (s *ReminderStore) MarkFired(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE reminder_queue SET fired = 1 WHERE id = ? AND fired = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder fired: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
