package model

import "time"

// EventTime is one endpoint of an upstream event. Exactly one of Date
// (all-day marker, "2006-01-02") or DateTime (RFC3339 timestamp) is
// normally set; both may be empty when the upstream omitted the field.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// RawEvent is an upstream event record before normalization. Every
// source (Google Calendar, ICS feed) produces this shape.
type RawEvent struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       *EventTime `json:"start,omitempty"`
	End         *EventTime `json:"end,omitempty"`
}

// CalendarEvent is one scheduled occupation of one court, as served to
// the presentation layer. StartTime/EndTime are "HH:MM" wall-clock in
// the venue timezone.
type CalendarEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CourtID   int    `json:"courtId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	ColorHex  string `json:"colorHex"`
}

// DaySchedule is every event of one venue-local date across all courts.
type DaySchedule struct {
	Date   string          `json:"date"`
	Events []CalendarEvent `json:"events"`
}

// Window is the instant range used to bound an upstream query.
type Window struct {
	Min time.Time
	Max time.Time
}

// Contains reports whether t lies in [Min, Max].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Min) && !t.After(w.Max)
}
