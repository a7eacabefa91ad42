// Package refresh keeps a laid-out board of today's schedule up to date
// for kiosk displays.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"courtboard/internal/layout"
	appLog "courtboard/internal/log"
	"courtboard/internal/model"
	"courtboard/internal/schedule"
)

// ScheduleBuilder produces the schedule of one date. *schedule.Aggregator
// implements it.
type ScheduleBuilder interface {
	DaySchedule(ctx context.Context, date string) (model.DaySchedule, error)
}

type Option func(*Refresher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// Refresher re-runs the aggregation for today on a cron schedule and
// publishes the resulting board. Runs may overlap; a run that finishes
// after a newer one has been published is discarded.
type Refresher struct {
	builder ScheduleBuilder
	grid    layout.Grid
	courts  []layout.Court
	loc     *time.Location
	spec    string
	now     func() time.Time

	mu        sync.RWMutex
	gen       uint64
	published uint64
	latest    *layout.Board
}

// New validates spec (standard cron syntax or a descriptor such as
// "@every 60s") and returns an idle Refresher.
func New(builder ScheduleBuilder, grid layout.Grid, courts []layout.Court, loc *time.Location, spec string, opts ...Option) (*Refresher, error) {
	if builder == nil {
		return nil, errors.New("refresh: schedule builder is nil")
	}
	if loc == nil {
		return nil, errors.New("refresh: location is nil")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}

	r := &Refresher{
		builder: builder,
		grid:    grid,
		courts:  courts,
		loc:     loc,
		spec:    spec,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Latest returns the most recently published board.
func (r *Refresher) Latest() (layout.Board, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return layout.Board{}, false
	}
	return *r.latest, true
}

// RefreshNow runs one refresh cycle for the current venue date. The board
// is returned even when a newer cycle already published and this one was
// discarded.
func (r *Refresher) RefreshNow(ctx context.Context) (layout.Board, error) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	started := r.now().In(r.loc)
	date := schedule.Today(started, r.loc)

	s, err := r.builder.DaySchedule(ctx, date)
	if err != nil {
		return layout.Board{}, fmt.Errorf("refresh %s: %w", date, err)
	}
	board := layout.Compute(s, r.grid, r.courts, started)

	if !r.publish(gen, board) {
		appLog.Debug("refresh superseded; result discarded", "generation", gen, "date", date)
		return board, nil
	}
	appLog.Info("board refreshed",
		"generation", gen,
		"date", date,
		"events", len(s.Events),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return board, nil
}

func (r *Refresher) publish(gen uint64, board layout.Board) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen < r.published {
		return false
	}
	r.published = gen
	r.latest = &board
	return true
}

// Run refreshes once immediately, then on every cron tick until ctx is
// canceled. It waits for running jobs before returning.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(cronLogger{}),
	)
	if _, err := c.AddFunc(r.spec, func() { r.runJob(ctx) }); err != nil {
		return fmt.Errorf("refresh: schedule job: %w", err)
	}

	appLog.Info("refresher started", "schedule", r.spec, "timezone", r.loc.String())
	var initial sync.WaitGroup
	initial.Add(1)
	go func() {
		defer initial.Done()
		r.runJob(ctx)
	}()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	initial.Wait()
	appLog.Info("refresher stopped")
	return nil
}

func (r *Refresher) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RefreshNow(ctx); err != nil {
		appLog.Error("board refresh failed", err)
	}
}

// cronLogger routes cron's internal logging into the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
