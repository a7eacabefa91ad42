package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	appLog "courtboard/internal/log"
	"courtboard/internal/model"
	"courtboard/internal/source"
)

// maxBodyBytes caps the size of a single feed download.
const maxBodyBytes = 8 << 20

// Feed reads one iCalendar subscription and serves its occurrences for a
// query window. It implements schedule.Source.
type Feed struct {
	// ID is used for logging only.
	ID     string
	URL    string
	client *http.Client
	venue  *time.Location
}

// NewFeed returns a Feed for url. Floating times in the feed are read in
// venue. An empty url makes Events return source.ErrNotConfigured.
func NewFeed(client *http.Client, id, url string, venue *time.Location) *Feed {
	if client == nil {
		client = http.DefaultClient
	}
	if venue == nil {
		venue = time.UTC
	}
	return &Feed{ID: id, URL: url, client: client, venue: venue}
}

// Events downloads the feed, expands recurrences inside w and returns
// single occurrences ordered by start time.
func (f *Feed) Events(ctx context.Context, w model.Window) ([]model.RawEvent, error) {
	if f.URL == "" {
		return nil, source.ErrNotConfigured
	}

	body, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseICS(f.ID, body, f.venue)
	if err != nil {
		return nil, err
	}

	res, err := ExpandOccurrences(parsed, ExpandConfig{RangeStart: w.Min, RangeEnd: w.Max})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(res.Occurrences, func(i, j int) bool {
		return res.Occurrences[i].Start.Before(res.Occurrences[j].Start)
	})

	out := make([]model.RawEvent, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		out = append(out, occ.RawEvent())
	}
	return out, nil
}

func (f *Feed) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Debug("ics fetch start", "id", f.ID, "url", redactURL(f.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if err := source.CheckStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("feed exceeds size limit")
	}

	appLog.Debug("ics fetch success", "id", f.ID, "url", redactURL(f.URL), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// RawEvent converts an occurrence into the upstream-neutral record the
// normalizer consumes: date-only markers for all-day occurrences and
// RFC3339 timestamps otherwise.
func (o Occurrence) RawEvent() model.RawEvent {
	ev := model.RawEvent{
		ID:          o.UID,
		Summary:     o.Summary,
		Description: o.Description,
		Location:    o.Location,
	}
	if o.Recurring {
		ev.ID = o.UID + "_" + o.Start.UTC().Format("20060102T150405Z")
	}

	if o.AllDay {
		ev.Start = &model.EventTime{Date: o.Start.Format("2006-01-02")}
		if !o.End.IsZero() {
			ev.End = &model.EventTime{Date: o.End.Format("2006-01-02")}
		}
		return ev
	}

	ev.Start = &model.EventTime{DateTime: o.Start.Format(time.RFC3339)}
	if !o.End.IsZero() {
		ev.End = &model.EventTime{DateTime: o.End.Format(time.RFC3339)}
	}
	return ev
}

// redactURL hides sensitive parts of a feed URL for logging purposes.
// Example:
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
