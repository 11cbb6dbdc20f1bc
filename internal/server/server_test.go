package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/config"
	"github.com/dukerupert/desklist/internal/database"
	"github.com/dukerupert/desklist/internal/model"
	websocket "github.com/dukerupert/desklist/internal/websocket"
)

func setupServer(t *testing.T, mutate func(*config.Config)) (*Server, *clock.Fake) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}
	clk := clock.NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	srv, err := New(db, cfg, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, clk
}

func TestNewRejectsBadTimezone(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := config.DefaultConfig()
	cfg.Timezone = "Nowhere/Special"
	if _, err := New(db, cfg, clock.System{}, slog.Default()); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("tok"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := setupServer(t, func(c *config.Config) { c.APITokenHash = string(hash) })
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/events", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health should stay public: status = %d", rec.Code)
	}
}

// A reminder created over HTTP reaches a websocket client once the
// dispatcher ticks past its fire time.
func TestEndToEndReminderFired(t *testing.T) {
	srv, clk := setupServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for srv.Hub().ClientCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("client never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	body := `{"title":"Stretch","event_time":"2024-01-01T12:30:00Z"}`
	resp, err := http.Post(ts.URL+"/api/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	msg := readMessage(t, ctx, conn)
	if msg.Type != "event_created" {
		t.Fatalf("first message = %+v, want event_created", msg)
	}

	clk.Advance(time.Hour)
	n, err := srv.Dispatcher().Tick(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Tick = %d, %v; want 1", n, err)
	}

	msg = readMessage(t, ctx, conn)
	if msg.Type != "reminder_fired" || msg.Extra["title"] != "Stretch" {
		t.Errorf("second message = %+v, want reminder_fired for Stretch", msg)
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *ws.Conn) websocket.Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

// Events written through the exposed manager are served by the same router.
func TestManagerSharesRouterState(t *testing.T) {
	srv, _ := setupServer(t, nil)

	id, err := srv.Manager().Create(context.Background(), model.NewEvent{
		Title:        "Water plants",
		EventTime:    time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		RemindOnTime: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/events/"+id+"/reminders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var entries []model.ReminderEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != model.ReminderOnTime {
		t.Errorf("reminders = %+v, want one on_time entry", entries)
	}
}
