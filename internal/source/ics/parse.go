package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "courtboard/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	SourceID string

	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	// Start/End carry the event's own timezone; floating values are read
	// in the venue zone. All-day values are anchored at UTC midnight of
	// their calendar date. End is zero when neither DTEND nor DURATION is
	// present.
	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides a recurring instance
}

// ParseICS parses a single feed payload into a list of ParsedEvent.
// Date-times without TZID or a UTC suffix are read in venue, never in
// the host zone. VEVENTs that cannot be parsed are logged and skipped.
func ParseICS(sourceID string, body []byte, venue *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	if venue == nil {
		venue = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(sourceID, comp, venue)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", sourceID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", sourceID, "event_count", len(events))
	return events, nil
}

func parseVEvent(sourceID string, ve *ical.VEvent, venue *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{SourceID: sourceID}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := propTime(dtStartProp, venue)
	if err != nil {
		return out, err
	}

	var end time.Time
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		if end, err = propTime(p, venue); err != nil {
			return out, err
		}
	} else if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		dur, err := parseDuration(p.Value)
		if err != nil {
			return out, err
		}
		end = start.Add(dur)
	}

	// VALUE=DATE or no 'T' in the value -> all-day.
	allDay := !strings.Contains(dtStartProp.Value, "T")
	if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	out.AllDay = allDay

	if allDay {
		start = dateAnchor(start)
		if !end.IsZero() {
			end = dateAnchor(end)
		}
	}
	out.Start = start
	out.End = end

	// EXDATE and RECURRENCE-ID without TZID follow DTSTART's zone.
	valueLoc := propLocation(dtStartProp.ICalParameters, venue)

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p.ICalParameters, valueLoc)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				if allDay {
					t = dateAnchor(t)
				}
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		loc := propLocation(ridProp.ICalParameters, valueLoc)
		if t, err := parseICSTime(ridProp.Value, loc); err == nil {
			if allDay {
				t = dateAnchor(t)
			}
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// dateAnchor keeps the calendar date of t and moves it to UTC midnight,
// so all-day values compare consistently against UTC query windows.
func dateAnchor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// propTime reads a DTSTART/DTEND style property. TZID wins when it names
// a loadable zone, otherwise floating values fall back to venue.
func propTime(p *ical.IANAProperty, venue *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, propLocation(p.ICalParameters, venue))
}

func propLocation(params map[string][]string, def *time.Location) *time.Location {
	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime parses a basic ICS date/date-time string. Floating values
// are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}

// parseDuration reads an RFC 5545 dur-value such as PT1H30M, P1D or
// -PT15M.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(v, "-"):
		sign = -1
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") || len(v) < 3 {
		return 0, fmt.Errorf("invalid DURATION %q", v)
	}

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v[1:] {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid DURATION %q", v)
			}
			inTime = true
			continue
		}

		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid DURATION %q", v)
		}
		num = ""

		var unit time.Duration
		switch {
		case r == 'W' && !inTime:
			unit = 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			unit = 24 * time.Hour
		case r == 'H' && inTime:
			unit = time.Hour
		case r == 'M' && inTime:
			unit = time.Minute
		case r == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid DURATION %q", v)
		}
		total += time.Duration(n) * unit
	}
	if num != "" {
		return 0, fmt.Errorf("invalid DURATION %q", v)
	}
	return sign * total, nil
}
