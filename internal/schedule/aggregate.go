package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "courtboard/internal/log"
	"courtboard/internal/model"
	"courtboard/internal/source"
)

const (
	untitled = "(No title)"

	defaultFetchTimeout = 15 * time.Second
)

// Source is one upstream calendar feed.
type Source interface {
	Events(ctx context.Context, w model.Window) ([]model.RawEvent, error)
}

// Binding ties a Source to exactly one court and its fallback color.
type Binding struct {
	CourtID       int
	FallbackColor string
	Source        Source
}

// Aggregator builds a DaySchedule by querying every bound source
// concurrently.
type Aggregator struct {
	bindings   []Binding
	classifier *Classifier
	loc        *time.Location
	timeout    time.Duration
}

// NewAggregator constructs an Aggregator. loc is the venue timezone;
// timeout bounds each source fetch (0 selects a default).
func NewAggregator(bindings []Binding, classifier *Classifier, loc *time.Location, timeout time.Duration) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Aggregator{
		bindings:   bindings,
		classifier: classifier,
		loc:        loc,
		timeout:    timeout,
	}
}

// Location returns the venue timezone the aggregator formats into.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// DaySchedule fetches and normalizes every source for date (YYYY-MM-DD).
// The only error is ErrInvalidDate; source failures are logged and
// contribute no events. Events keep source declaration order.
func (a *Aggregator) DaySchedule(ctx context.Context, date string) (model.DaySchedule, error) {
	day, err := ParseDate(date, a.loc)
	if err != nil {
		return model.DaySchedule{}, err
	}
	window, err := QueryWindow(date)
	if err != nil {
		return model.DaySchedule{}, err
	}

	// Each goroutine owns one slot; nothing else is shared.
	results := make([][]model.CalendarEvent, len(a.bindings))

	var g errgroup.Group
	for i, b := range a.bindings {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, b, day, window)
			return nil
		})
	}
	_ = g.Wait()

	events := make([]model.CalendarEvent, 0)
	for _, r := range results {
		events = append(events, r...)
	}

	return model.DaySchedule{Date: date, Events: events}, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, b Binding, day time.Time, w model.Window) []model.CalendarEvent {
	if b.Source == nil {
		appLog.Warn("court has no source; skipping", "court", b.CourtID)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := b.Source.Events(ctx, w)
	if err != nil {
		if errors.Is(err, source.ErrNotConfigured) || errors.Is(err, source.ErrMissingCredential) {
			appLog.Info("court source skipped", "court", b.CourtID, "reason", err.Error())
		} else {
			appLog.Error("court source fetch failed", err, "court", b.CourtID)
		}
		return nil
	}

	out := make([]model.CalendarEvent, 0, len(raw))
	for _, ev := range raw {
		out = append(out, a.toCalendarEvent(ev, b, day))
	}
	appLog.Debug("court source fetched", "court", b.CourtID, "events", len(out))
	return out
}

func (a *Aggregator) toCalendarEvent(ev model.RawEvent, b Binding, day time.Time) model.CalendarEvent {
	span := Normalize(day, ev.Start, ev.End, a.loc)

	id := ev.ID
	if id == "" {
		id = SyntheticID(day.Format(DateLayout), b.CourtID, span.StartAt)
	}
	title := ev.Summary
	if title == "" {
		title = untitled
	}

	return model.CalendarEvent{
		ID:        id,
		Title:     title,
		CourtID:   b.CourtID,
		StartTime: span.Start,
		EndTime:   span.End,
		ColorHex:  a.classifier.Color(ev.Description, b.FallbackColor),
	}
}

// SyntheticID builds an id for upstream events that carry none. It only
// depends on stable inputs so repeated aggregations agree.
func SyntheticID(date string, courtID int, start time.Time) string {
	return fmt.Sprintf("%s-court%d-%s", date, courtID, start.UTC().Format("2006-01-02T15:04:05.000Z"))
}
