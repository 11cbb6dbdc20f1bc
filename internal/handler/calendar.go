package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/ics"
	"github.com/dukerupert/desklist/internal/lifecycle"
	"github.com/dukerupert/desklist/internal/model"
)

type CalendarHandler struct {
	manager *lifecycle.Manager
	clock   clock.Clock
	loc     *time.Location
	logger  *slog.Logger
}

func NewCalendarHandler(m *lifecycle.Manager, clk clock.Clock, loc *time.Location, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{manager: m, clock: clk, loc: loc, logger: logger}
}

// Export serves every active event as an iCalendar feed.
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	events, err := h.manager.List(r.Context(), model.FilterAll, h.loc)
	if err != nil {
		writeLifecycleError(w, h.logger, "list events", err)
		return
	}

	active := make([]model.Event, 0, len(events))
	reminders := make(map[string][]model.ReminderEntry)
	for _, e := range events {
		if e.Completed {
			continue
		}
		entries, err := h.manager.Reminders(r.Context(), e.ID)
		if err != nil {
			// Deleted between the list and this read.
			if errors.Is(err, lifecycle.ErrNotFound) {
				continue
			}
			writeLifecycleError(w, h.logger, "list reminders", err)
			return
		}
		active = append(active, e)
		reminders[e.ID] = entries
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="desklist.ics"`)
	w.Write([]byte(ics.Export(active, reminders, h.clock.Now())))
}
