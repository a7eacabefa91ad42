package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "courtboard/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// Occurrence is a single concrete instance of an event after recurrence
// expansion.
type Occurrence struct {
	SourceID string
	UID      string

	Summary     string
	Description string
	Location    string

	AllDay bool
	// Recurring is set for instances generated from an RRULE.
	Recurring bool

	Start time.Time
	End   time.Time
}

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid runaway expansions.
	// If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands parsed events into the occurrences that
// intersect the configured range. It handles single events, RRULE
// recurrence, EXDATE removal, RECURRENCE-ID overrides and all-day
// semantics. Occurrence times keep the event's own timezone.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order
	// so output is deterministic.
	var order []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	seen := make(map[string]bool)
	for _, ev := range events {
		if !seen[ev.UID] {
			seen[ev.UID] = true
			order = append(order, ev.UID)
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		ov := overridesByUID[uid]
		consumed := make([]bool, len(ov))
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, consumed, cfg)
			if hitCap {
				truncated = true
			}
			result.Occurrences = append(result.Occurrences, occ...)
		}

		// Overrides not matched to an expanded instance were moved in from
		// outside the window or have no base event. They stand on their
		// own span.
		for i, o := range ov {
			if consumed[i] || !overlaps(o.Start, o.End, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			result.Occurrences = append(result.Occurrences, makeOccurrence(o, o.Start, o.End, true))
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, consumed []bool, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, cfg), false
	}
	return expandRecurringEvent(ev, overrides, consumed, cfg)
}

func expandSingleEvent(ev ParsedEvent, cfg ExpandConfig) []Occurrence {
	if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []Occurrence{makeOccurrence(ev, ev.Start, ev.End, false)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, consumed []bool, cfg ExpandConfig) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := duration(ev)

	// Widen the lower bound by the event duration so an instance that
	// started before the window but is still running is included.
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)

		baseEv := ev
		if i, ok := findOverrideForStart(overrides, occStart); ok {
			consumed[i] = true
			o := overrides[i]
			baseEv = o
			occStart = o.Start
			occEnd = o.End
		}

		if !overlaps(occStart, occEnd, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeOccurrence(baseEv, occStart, occEnd, true))
	}

	return out, hitCap
}

// duration returns the event length; all-day events without DTEND last
// one day, timed events without DTEND are instantaneous.
func duration(ev ParsedEvent) time.Duration {
	if ev.End.IsZero() {
		if ev.AllDay {
			return 24 * time.Hour
		}
		return 0
	}
	return ev.End.Sub(ev.Start)
}

// findOverrideForStart returns the index of the override whose
// RECURRENCE-ID matches baseStart exactly.
func findOverrideForStart(overrides []ParsedEvent, baseStart time.Time) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(baseStart) {
			return i, true
		}
	}
	return -1, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, recurring bool) Occurrence {
	return Occurrence{
		SourceID:    ev.SourceID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Recurring:   recurring,
		Start:       start,
		End:         end,
	}
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd]. A
// zero aEnd is treated as an instant at aStart.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.IsZero() || !aEnd.After(aStart) {
		return !aStart.Before(bStart) && !aStart.After(bEnd)
	}
	return aEnd.After(bStart) && !aStart.After(bEnd)
}
