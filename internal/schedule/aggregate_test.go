package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtboard/internal/model"
	"courtboard/internal/source"
)

type fakeSource struct {
	events []model.RawEvent
	err    error
	delay  time.Duration

	calls   atomic.Int32
	windows chan model.Window
}

func (f *fakeSource) Events(ctx context.Context, w model.Window) ([]model.RawEvent, error) {
	f.calls.Add(1)
	if f.windows != nil {
		f.windows <- w
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.events, f.err
}

func timed(id, summary, desc, start, end string) model.RawEvent {
	return model.RawEvent{
		ID:          id,
		Summary:     summary,
		Description: desc,
		Start:       &model.EventTime{DateTime: start},
		End:         &model.EventTime{DateTime: end},
	}
}

func testClassifier() *Classifier {
	return NewClassifier([]Rule{
		{Phrase: "coach booking", Color: "#c084fc"},
		{Phrase: "normal group", Color: "#6366f1"},
	})
}

func TestAggregator_DaySchedule(t *testing.T) {
	loc := bangkok(t)

	court1 := &fakeSource{events: []model.RawEvent{
		timed("a", "Coach Sarah", "Coach Booking", "2025-09-23T07:00:00+07:00", "2025-09-23T08:30:00+07:00"),
	}}
	court2 := &fakeSource{err: &source.StatusError{Code: 403, Status: "403 Forbidden"}}
	court3 := &fakeSource{delay: 20 * time.Millisecond, events: []model.RawEvent{
		timed("b", "Club night", "normal group", "2025-09-23T18:00:00+07:00", "2025-09-23T20:00:00+07:00"),
		timed("c", "Ladder", "", "2025-09-23T20:00:00+07:00", "2025-09-23T21:00:00+07:00"),
	}}

	agg := NewAggregator([]Binding{
		{CourtID: 1, FallbackColor: "#c084fc", Source: court1},
		{CourtID: 2, FallbackColor: "#6366f1", Source: court2},
		{CourtID: 3, FallbackColor: "#2ce080ff", Source: court3},
	}, testClassifier(), loc, time.Second)

	got, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-23", got.Date)

	want := []model.CalendarEvent{
		{ID: "a", Title: "Coach Sarah", CourtID: 1, StartTime: "07:00", EndTime: "08:30", ColorHex: "#c084fc"},
		{ID: "b", Title: "Club night", CourtID: 3, StartTime: "18:00", EndTime: "20:00", ColorHex: "#6366f1"},
		{ID: "c", Title: "Ladder", CourtID: 3, StartTime: "20:00", EndTime: "21:00", ColorHex: "#2ce080ff"},
	}
	assert.Equal(t, want, got.Events)

	again, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestAggregator_QueryWindow(t *testing.T) {
	src := &fakeSource{windows: make(chan model.Window, 1)}
	agg := NewAggregator([]Binding{{CourtID: 1, Source: src}}, nil, bangkok(t), time.Second)

	_, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)

	w := <-src.windows
	assert.Equal(t, time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC), w.Min)
	assert.Equal(t, time.Date(2025, 9, 23, 23, 59, 59, 0, time.UTC), w.Max)
}

func TestAggregator_NoSources(t *testing.T) {
	agg := NewAggregator(nil, testClassifier(), bangkok(t), 0)

	got, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	require.NotNil(t, got.Events)
	assert.Empty(t, got.Events)
}

func TestAggregator_AllFailing(t *testing.T) {
	agg := NewAggregator([]Binding{
		{CourtID: 1, Source: &fakeSource{err: source.ErrNotConfigured}},
		{CourtID: 2, Source: &fakeSource{err: source.ErrMissingCredential}},
		{CourtID: 3, Source: &fakeSource{err: errors.New("connection refused")}},
		{CourtID: 4},
	}, nil, bangkok(t), time.Second)

	got, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	require.NotNil(t, got.Events)
	assert.Empty(t, got.Events)
}

func TestAggregator_Timeout(t *testing.T) {
	slow := &fakeSource{delay: time.Second, events: []model.RawEvent{
		timed("slow", "Slow", "", "2025-09-23T07:00:00+07:00", "2025-09-23T08:00:00+07:00"),
	}}
	fast := &fakeSource{events: []model.RawEvent{
		timed("fast", "Fast", "", "2025-09-23T09:00:00+07:00", "2025-09-23T10:00:00+07:00"),
	}}
	agg := NewAggregator([]Binding{
		{CourtID: 1, Source: slow},
		{CourtID: 2, Source: fast},
	}, nil, bangkok(t), 20*time.Millisecond)

	got, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "fast", got.Events[0].ID)
}

func TestAggregator_InvalidDate(t *testing.T) {
	src := &fakeSource{}
	agg := NewAggregator([]Binding{{CourtID: 1, Source: src}}, nil, bangkok(t), time.Second)

	_, err := agg.DaySchedule(context.Background(), "23/09/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.Zero(t, src.calls.Load())
}

func TestAggregator_Defaults(t *testing.T) {
	loc := bangkok(t)
	src := &fakeSource{events: []model.RawEvent{
		{Start: &model.EventTime{DateTime: "2025-09-23T07:00:00+07:00"}, End: &model.EventTime{DateTime: "2025-09-23T08:00:00+07:00"}},
		{Summary: "Resurfacing", Start: &model.EventTime{Date: "2025-09-23"}, End: &model.EventTime{Date: "2025-09-24"}},
	}}
	agg := NewAggregator([]Binding{{CourtID: 2, FallbackColor: "#6366f1", Source: src}}, testClassifier(), loc, time.Second)

	first, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	require.Len(t, first.Events, 2)

	untitledEv := first.Events[0]
	assert.Equal(t, "(No title)", untitledEv.Title)
	assert.Equal(t, "2025-09-23-court2-2025-09-23T00:00:00.000Z", untitledEv.ID)
	assert.Equal(t, "#6366f1", untitledEv.ColorHex)

	allDay := first.Events[1]
	assert.Equal(t, "00:00", allDay.StartTime)
	assert.Equal(t, "23:59", allDay.EndTime)
	assert.Equal(t, "2025-09-23-court2-2025-09-22T17:00:00.000Z", allDay.ID)

	second, err := agg.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	assert.Equal(t, first.Events, second.Events)
}

func TestSyntheticID(t *testing.T) {
	start := time.Date(2025, 9, 23, 7, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	assert.Equal(t, "2025-09-23-court1-2025-09-23T00:00:00.000Z", SyntheticID("2025-09-23", 1, start))
}
