package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"courtboard/internal/model"
)

const (
	DateLayout  = "2006-01-02"
	clockLayout = "15:04"

	allDayStart = "00:00"
	allDayEnd   = "23:59"
)

// ErrInvalidDate is returned for a date parameter that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDate validates a YYYY-MM-DD string and returns midnight of that
// date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return d, nil
}

// Today returns the current venue-local date as YYYY-MM-DD.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// QueryWindow returns the UTC day range [D 00:00:00Z, D 23:59:59Z] used
// to bound upstream queries. It is a query parameter only and has nothing
// to do with the display timezone.
func QueryWindow(date string) (model.Window, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return model.Window{}, err
	}
	return model.Window{
		Min: d,
		Max: d.Add(23*time.Hour + 59*time.Minute + 59*time.Second),
	}, nil
}

// Span is a normalized event time range.
type Span struct {
	Start  string // "HH:MM" venue-local
	End    string // "HH:MM" venue-local
	AllDay bool
	// StartAt is the instant the start maps to; it seeds synthesized ids.
	StartAt time.Time
}

// Normalize converts upstream start/end fields into a venue-local
// "HH:MM" pair for the given day.
//
// A date-only value on either endpoint marks the event all-day
// (00:00-23:59). A missing or unparsable timestamp falls back to the
// start (or end) of day.
func Normalize(day time.Time, start, end *model.EventTime, loc *time.Location) Span {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, loc)

	if isDateOnly(start) || isDateOnly(end) {
		return Span{Start: allDayStart, End: allDayEnd, AllDay: true, StartAt: dayStart}
	}

	s, ok := parseInstant(start)
	if !ok {
		s = dayStart
	}
	e, ok := parseInstant(end)
	if !ok {
		e = dayEnd
	}
	return Span{
		Start:   s.In(loc).Format(clockLayout),
		End:     e.In(loc).Format(clockLayout),
		StartAt: s,
	}
}

func isDateOnly(t *model.EventTime) bool {
	return t != nil && t.Date != ""
}

func parseInstant(t *model.EventTime) (time.Time, bool) {
	if t == nil || t.DateTime == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, t.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
