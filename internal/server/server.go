package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/config"
	"github.com/dukerupert/desklist/internal/dispatch"
	"github.com/dukerupert/desklist/internal/handler"
	"github.com/dukerupert/desklist/internal/lifecycle"
	"github.com/dukerupert/desklist/internal/middleware"
	"github.com/dukerupert/desklist/internal/store"
	ws "github.com/dukerupert/desklist/internal/websocket"
)

// Failed token checks allowed per client address before it is locked out.
const (
	authFailureLimit  = 10
	authFailureWindow = time.Minute
)

type Server struct {
	db         *sql.DB
	hub        *ws.Hub
	manager    *lifecycle.Manager
	dispatcher *dispatch.Dispatcher
	eventH     *handler.EventHandler
	reminderH  *handler.ReminderHandler
	calendarH  *handler.CalendarHandler
	themeH     *handler.ThemeHandler
	tokenHash  string
	origins    []string
	limiter    *middleware.FailureLimiter
	logger     *slog.Logger
}

// New wires the lifecycle manager, dispatcher and HTTP handlers around db.
// The websocket hub is both the manager's notifier and a dispatch sink.
func New(db *sql.DB, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	manager := lifecycle.NewManager(db, clk, hub, logger.With("component", "lifecycle"))
	reminderStore := store.NewReminderStore(db)

	dispatchLogger := logger.With("component", "dispatch")
	dispatcher := dispatch.NewDispatcher(reminderStore, clk, cfg.DispatchSchedule, dispatchLogger,
		hub, dispatch.LogSink{Logger: dispatchLogger})

	return &Server{
		db:         db,
		hub:        hub,
		manager:    manager,
		dispatcher: dispatcher,
		eventH:     handler.NewEventHandler(manager, loc, logger.With("component", "events")),
		reminderH:  handler.NewReminderHandler(reminderStore, clk, loc, logger.With("component", "reminders")),
		calendarH:  handler.NewCalendarHandler(manager, clk, loc, logger.With("component", "calendar")),
		themeH:     handler.NewThemeHandler(cfg.Theme),
		tokenHash:  cfg.APITokenHash,
		origins:    cfg.AllowedOrigins,
		limiter:    middleware.NewFailureLimiter(authFailureLimit, authFailureWindow),
		logger:     logger,
	}, nil
}

// Dispatcher returns the reminder dispatcher so the caller can start it.
func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Manager returns the event lifecycle manager.
func (s *Server) Manager() *lifecycle.Manager {
	return s.manager
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	auth := middleware.RequireToken(s.tokenHash, s.limiter, s.logger.With("component", "auth"))
	outerMux.Handle("/", auth(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "clients": s.hub.ClientCount()})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Events
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PATCH /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/toggle", s.eventH.Toggle)
	mux.HandleFunc("GET /api/events/{id}/reminders", s.eventH.Reminders)

	// Delivery feed
	mux.HandleFunc("GET /api/reminders/due", s.reminderH.Due)
	mux.HandleFunc("POST /api/reminders/{id}/fired", s.reminderH.Fired)

	mux.HandleFunc("GET /api/calendar.ics", s.calendarH.Export)
	mux.HandleFunc("GET /api/theme", s.themeH.Get)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins, s.logger.With("component", "websocket")))
}
