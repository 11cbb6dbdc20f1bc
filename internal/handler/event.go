package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/desklist/internal/lifecycle"
	"github.com/dukerupert/desklist/internal/model"
	"github.com/dukerupert/desklist/internal/recurrence"
)

type EventHandler struct {
	manager *lifecycle.Manager
	loc     *time.Location
	logger  *slog.Logger
}

// NewEventHandler creates the events API. loc bounds the "today" filter and
// interprets datetime-local input.
func NewEventHandler(m *lifecycle.Manager, loc *time.Location, logger *slog.Logger) *EventHandler {
	return &EventHandler{manager: m, loc: loc, logger: logger}
}

// eventView adds a readable recurrence summary to an event.
type eventView struct {
	model.Event
	RecurrenceText string `json:"recurrence_text"`
}

func viewOf(e *model.Event) *eventView {
	if e == nil {
		return nil
	}
	return &eventView{Event: *e, RecurrenceText: recurrence.Describe(e.Recurrence, e.RecurrenceEnd)}
}

type createRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	EventTime     string  `json:"event_time"`
	RemindAt      *string `json:"remind_at"`
	RemindOnTime  *bool   `json:"remind_on_time"`
	Recurrence    string  `json:"recurrence"`
	RecurrenceEnd *string `json:"recurrence_end"`
}

func (h *EventHandler) optionalTime(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s, h.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &t, nil
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	in := model.NewEvent{
		Title:        req.Title,
		Description:  req.Description,
		RemindOnTime: true,
		Recurrence:   model.Recurrence(req.Recurrence),
	}
	if req.RemindOnTime != nil {
		in.RemindOnTime = *req.RemindOnTime
	}
	if req.EventTime != "" {
		t, err := parseTime(req.EventTime, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "event_time: "+err.Error())
			return
		}
		in.EventTime = t
	}
	var err error
	if in.RemindAt, err = h.optionalTime("remind_at", req.RemindAt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.RecurrenceEnd, err = h.optionalTime("recurrence_end", req.RecurrenceEnd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.manager.Create(r.Context(), in)
	if err != nil {
		writeLifecycleError(w, h.logger, "create event", err)
		return
	}
	e, err := h.manager.Get(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, h.logger, "get event", err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(e))
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = model.FilterAll
	}

	events, err := h.manager.List(r.Context(), filter, h.loc)
	if err != nil {
		writeLifecycleError(w, h.logger, "list events", err)
		return
	}
	views := make([]*eventView, 0, len(events))
	for i := range events {
		views = append(views, viewOf(&events[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLifecycleError(w, h.logger, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(e))
}

// Update applies a partial change. Absent keys are left alone; null clears
// remind_at and recurrence_end.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch, err := h.decodePatch(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	e, err := h.manager.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeLifecycleError(w, h.logger, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(e))
}

var nullJSON = []byte("null")

func (h *EventHandler) decodePatch(raw map[string]json.RawMessage) (model.EventPatch, error) {
	var p model.EventPatch
	for key, val := range raw {
		isNull := bytes.Equal(bytes.TrimSpace(val), nullJSON)
		switch key {
		case "title":
			if err := decodeRequired(key, val, isNull, &p.Title); err != nil {
				return p, err
			}
		case "description":
			if err := decodeRequired(key, val, isNull, &p.Description); err != nil {
				return p, err
			}
		case "remind_on_time":
			if err := decodeRequired(key, val, isNull, &p.RemindOnTime); err != nil {
				return p, err
			}
		case "recurrence":
			var s *string
			if err := decodeRequired(key, val, isNull, &s); err != nil {
				return p, err
			}
			rec := model.Recurrence(*s)
			p.Recurrence = &rec
		case "event_time":
			var s *string
			if err := decodeRequired(key, val, isNull, &s); err != nil {
				return p, err
			}
			t, err := parseTime(*s, h.loc)
			if err != nil {
				return p, fmt.Errorf("event_time: %w", err)
			}
			p.EventTime = &t
		case "remind_at":
			opt, err := h.decodeNullableTime(key, val, isNull)
			if err != nil {
				return p, err
			}
			p.RemindAt = opt
		case "recurrence_end":
			opt, err := h.decodeNullableTime(key, val, isNull)
			if err != nil {
				return p, err
			}
			p.RecurrenceEnd = opt
		default:
			return p, fmt.Errorf("unknown field %q", key)
		}
	}
	return p, nil
}

// decodeRequired decodes val into dst, a pointer to a pointer field.
func decodeRequired[T any](key string, val json.RawMessage, isNull bool, dst **T) error {
	if isNull {
		return fmt.Errorf("%s must not be null", key)
	}
	v := new(T)
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("%s: invalid value", key)
	}
	*dst = v
	return nil
}

func (h *EventHandler) decodeNullableTime(key string, val json.RawMessage, isNull bool) (model.OptionalTime, error) {
	if isNull {
		return model.OptionalTime{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return model.OptionalTime{}, fmt.Errorf("%s: invalid value", key)
	}
	if s == "" {
		return model.OptionalTime{Set: true}, nil
	}
	t, err := parseTime(s, h.loc)
	if err != nil {
		return model.OptionalTime{}, fmt.Errorf("%s: %w", key, err)
	}
	return model.OptionalTime{Set: true, Time: &t}, nil
}

type toggleResponse struct {
	Event   *eventView `json:"event"`
	Spawned *eventView `json:"spawned,omitempty"`
}

func (h *EventHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.ToggleComplete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLifecycleError(w, h.logger, "toggle event", err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Event: viewOf(res.Event), Spawned: viewOf(res.Spawned)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeLifecycleError(w, h.logger, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	entries, err := h.manager.Reminders(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLifecycleError(w, h.logger, "list reminders", err)
		return
	}
	if entries == nil {
		entries = []model.ReminderEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
