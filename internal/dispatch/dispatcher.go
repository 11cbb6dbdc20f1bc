// Package dispatch delivers due reminders and records them as fired.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/desklist/internal/clock"
	"github.com/dukerupert/desklist/internal/model"
)

// Queue is the part of the reminder queue the dispatcher reads and acknowledges.
type Queue interface {
	ListDue(ctx context.Context, at time.Time) ([]model.DueReminder, error)
	MarkFired(ctx context.Context, id int64) (bool, error)
}

// Sink receives each due reminder once per successful tick.
type Sink interface {
	Deliver(ctx context.Context, r model.DueReminder) error
}

// Dispatcher polls the queue on a cron schedule.
type Dispatcher struct {
	mu       sync.Mutex // serializes ticks
	queue    Queue
	sinks    []Sink
	clock    clock.Clock
	schedule string
	logger   *slog.Logger

	cronMu sync.Mutex
	cron   *cron.Cron
}

func NewDispatcher(queue Queue, clk clock.Clock, schedule string, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		sinks:    sinks,
		clock:    clk,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules ticks until Stop is called or ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.cronMu.Lock()
	defer d.cronMu.Unlock()
	if d.cron != nil {
		return errors.New("dispatcher already started")
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(d.logger.Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	_, err := c.AddFunc(d.schedule, func() {
		if _, err := d.Tick(ctx); err != nil {
			d.logger.Error("dispatch tick", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", d.schedule, err)
	}

	c.Start()
	d.cron = c
	d.logger.Info("dispatcher started", "schedule", d.schedule)

	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running tick to finish.
func (d *Dispatcher) Stop() {
	d.cronMu.Lock()
	c := d.cron
	d.cron = nil
	d.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		d.logger.Info("dispatcher stopped")
	}
}

// Tick delivers every reminder due now and returns how many were marked fired.
// A reminder whose delivery fails stays unfired and is retried next tick.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	due, err := d.queue.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due: %w", err)
	}

	fired := 0
	for _, r := range due {
		if err := d.deliver(ctx, r); err != nil {
			d.logger.Warn("reminder delivery failed", "reminder_id", r.ID, "event_id", r.EventID, "error", err)
			continue
		}

		ok, err := d.queue.MarkFired(ctx, r.ID)
		if err != nil {
			return fired, fmt.Errorf("mark fired %d: %w", r.ID, err)
		}
		if !ok {
			// Deleted or acknowledged elsewhere since ListDue.
			d.logger.Debug("reminder already gone", "reminder_id", r.ID)
			continue
		}
		fired++
	}

	if fired > 0 {
		d.logger.Info("reminders fired", "count", fired)
	}
	return fired, nil
}

func (d *Dispatcher) deliver(ctx context.Context, r model.DueReminder) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each due reminder to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(_ context.Context, r model.DueReminder) error {
	s.Logger.Info("reminder",
		"event_id", r.EventID,
		"title", r.Title,
		"type", string(r.Type),
		"fire_at", r.FireAt,
		"event_time", r.EventTime,
	)
	return nil
}
