package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"

	"courtboard/internal/model"
)

// GoogleCalendar reads one calendar through the Google Calendar v3
// events.list endpoint using an API key.
type GoogleCalendar struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	calendarID string
}

// NewGoogleCalendar returns a client for calendarID. baseURL is the
// Calendar API root, e.g. https://www.googleapis.com/calendar/v3. Empty
// apiKey or calendarID make Events fail fast with ErrMissingCredential /
// ErrNotConfigured.
func NewGoogleCalendar(client *http.Client, baseURL, apiKey, calendarID string) *GoogleCalendar {
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleCalendar{
		client:     client,
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/",
		apiKey:     apiKey,
		calendarID: calendarID,
	}
}

// Events lists the single (recurrence-expanded) events of the calendar
// inside w, ordered by start time. All result pages are read.
func (g *GoogleCalendar) Events(ctx context.Context, w model.Window) ([]model.RawEvent, error) {
	if g.calendarID == "" {
		return nil, ErrNotConfigured
	}
	if g.apiKey == "" {
		return nil, ErrMissingCredential
	}

	svc, err := g.service(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	call := svc.Events.List(g.calendarID).
		TimeMin(w.Min.UTC().Format(time.RFC3339)).
		TimeMax(w.Max.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	out := make([]model.RawEvent, 0)
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			out = append(out, rawEvent(item))
		}
		return nil
	})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &StatusError{
				Code:   gerr.Code,
				Status: fmt.Sprintf("%d %s", gerr.Code, http.StatusText(gerr.Code)),
			}
		}
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	return out, nil
}

// service builds a Calendar client on the shared HTTP client. The API key
// rides on the transport because a caller-supplied client bypasses the
// library's own credential handling.
func (g *GoogleCalendar) service(ctx context.Context) (*calendar.Service, error) {
	hc := &http.Client{
		Timeout:   g.client.Timeout,
		Transport: &transport.APIKey{Key: g.apiKey, Transport: g.client.Transport},
	}
	return calendar.NewService(ctx,
		option.WithHTTPClient(hc),
		option.WithEndpoint(g.endpoint),
	)
}

func rawEvent(e *calendar.Event) model.RawEvent {
	return model.RawEvent{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start:       eventTime(e.Start),
		End:         eventTime(e.End),
	}
}

func eventTime(t *calendar.EventDateTime) *model.EventTime {
	if t == nil || (t.Date == "" && t.DateTime == "") {
		return nil
	}
	return &model.EventTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}
