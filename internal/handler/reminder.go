package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/model"
)

type reminderQueue interface {
	ListDue(ctx context.Context, at time.Time) ([]model.DueReminder, error)
	GetByID(ctx context.Context, id int64) (*model.ReminderEntry, error)
	MarkFired(ctx context.Context, id int64) (bool, error)
}

// ReminderHandler is the delivery feed for external notifiers: a list of due
// entries plus a fire acknowledgement.
type ReminderHandler struct {
	queue  reminderQueue
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
}

func NewReminderHandler(q reminderQueue, clk clock.Clock, loc *time.Location, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{queue: q, clock: clk, loc: loc, logger: logger}
}

// Due lists unfired entries due at ?at= (default now).
func (h *ReminderHandler) Due(w http.ResponseWriter, r *http.Request) {
	at := h.clock.Now()
	if s := r.URL.Query().Get("at"); s != "" {
		t, err := parseTime(s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at: "+err.Error())
			return
		}
		at = t
	}

	due, err := h.queue.ListDue(r.Context(), at)
	if err != nil {
		h.logger.Error("list due reminders failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list due reminders")
		return
	}
	if due == nil {
		due = []model.DueReminder{}
	}
	writeJSON(w, http.StatusOK, due)
}

// Fired acknowledges delivery. Acknowledging twice is harmless; changed
// reports whether this call flipped the flag.
func (h *ReminderHandler) Fired(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	changed, err := h.queue.MarkFired(r.Context(), id)
	if err != nil {
		h.logger.Error("mark reminder fired failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark reminder fired")
		return
	}
	if !changed {
		entry, err := h.queue.GetByID(r.Context(), id)
		if err != nil {
			h.logger.Error("get reminder failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get reminder")
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
	}
	h.logger.Debug("reminder acknowledged", "id", id, "changed", changed)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "fired": true, "changed": changed})
}
