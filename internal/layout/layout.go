// Package layout places a day's events on the hour grid of the board.
// Every function here is pure: the result depends only on the schedule,
// the grid, the court list and the supplied clock reading.
package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	appLog "courtboard/internal/log"
	"courtboard/internal/model"
)

const dateLayout = "2006-01-02"

// Grid is the visible part of the day: hour labels from top to bottom and
// the height of one hour in display units.
type Grid struct {
	Hours      []string
	HourHeight float64
}

// NewGrid builds a Grid with one label per hour from first to last
// inclusive.
func NewGrid(first, last string, hourHeight float64) (Grid, error) {
	hours, err := HourLabels(first, last)
	if err != nil {
		return Grid{}, err
	}
	if hourHeight <= 0 {
		return Grid{}, fmt.Errorf("hour height must be positive, got %v", hourHeight)
	}
	return Grid{Hours: hours, HourHeight: hourHeight}, nil
}

// HourLabels returns "HH:00" labels stepping one hour from first to last.
// Minutes of first and last are ignored.
func HourLabels(first, last string) ([]string, error) {
	from, ok := clockMinutes(first)
	if !ok {
		return nil, fmt.Errorf("invalid hour %q", first)
	}
	to, ok := clockMinutes(last)
	if !ok {
		return nil, fmt.Errorf("invalid hour %q", last)
	}
	if from/60 >= to/60 {
		return nil, errors.New("first hour must be before last hour")
	}
	labels := make([]string, 0, to/60-from/60+1)
	for h := from / 60; h <= to/60; h++ {
		labels = append(labels, fmt.Sprintf("%02d:00", h))
	}
	return labels, nil
}

// startMinutes is the minute-of-day of the grid top.
func (g Grid) startMinutes() int {
	if len(g.Hours) == 0 {
		return 0
	}
	m, _ := clockMinutes(g.Hours[0])
	return m
}

// VisibleMinutes is the span between the first and the last hour label.
func (g Grid) VisibleMinutes() int {
	if len(g.Hours) < 2 {
		return 0
	}
	last, _ := clockMinutes(g.Hours[len(g.Hours)-1])
	return last - g.startMinutes()
}

func (g Grid) units(minutes int) float64 {
	return float64(minutes) / 60 * g.HourHeight
}

// Court is one board column.
type Court struct {
	ID   int
	Name string
}

// Block is an event positioned inside its court column.
type Block struct {
	Event         model.CalendarEvent `json:"event"`
	Top           float64             `json:"top"`
	Height        float64             `json:"height"`
	TimeRange     string              `json:"timeRange"`
	DurationLabel string              `json:"durationLabel,omitempty"`
	IsPast        bool                `json:"isPast"`
}

type Column struct {
	CourtID int     `json:"courtId"`
	Name    string  `json:"name"`
	Blocks  []Block `json:"blocks"`
}

// Board is the fully laid-out schedule of one date.
type Board struct {
	Date            string   `json:"date"`
	Hours           []string `json:"hours"`
	HourHeight      float64  `json:"hourHeight"`
	IsToday         bool     `json:"isToday"`
	PastShadeHeight float64  `json:"pastShadeHeight"`
	Columns         []Column `json:"columns"`
	GeneratedAt     string   `json:"generatedAt"`
}

// Compute lays out schedule on grid with one column per court. now must
// already be expressed in the venue timezone; it decides whether the
// schedule is today and which blocks are past.
//
// Events are positioned independently; overlapping events of one court
// simply overlap. Events of courts missing from courts are dropped.
func Compute(schedule model.DaySchedule, grid Grid, courts []Court, now time.Time) Board {
	isToday := schedule.Date == now.Format(dateLayout)
	nowMin := now.Hour()*60 + now.Minute()
	gridStart := grid.startMinutes()

	board := Board{
		Date:        schedule.Date,
		Hours:       grid.Hours,
		HourHeight:  grid.HourHeight,
		IsToday:     isToday,
		Columns:     make([]Column, 0, len(courts)),
		GeneratedAt: now.Format(time.RFC3339),
	}
	if board.Hours == nil {
		board.Hours = []string{}
	}
	if isToday {
		shade := min(max(0, nowMin-gridStart), grid.VisibleMinutes())
		board.PastShadeHeight = grid.units(shade)
	}

	index := make(map[int]int, len(courts))
	for i, c := range courts {
		index[c.ID] = i
		board.Columns = append(board.Columns, Column{CourtID: c.ID, Name: c.Name, Blocks: []Block{}})
	}

	for _, ev := range schedule.Events {
		col, ok := index[ev.CourtID]
		if !ok {
			appLog.Debug("event for unknown court dropped", "id", ev.ID, "court", ev.CourtID)
			continue
		}
		startMin, ok1 := clockMinutes(ev.StartTime)
		endMin, ok2 := clockMinutes(ev.EndTime)
		if !ok1 || !ok2 {
			appLog.Warn("event with malformed time dropped", "id", ev.ID, "start", ev.StartTime, "end", ev.EndTime)
			continue
		}

		dur := endMin - startMin
		board.Columns[col].Blocks = append(board.Columns[col].Blocks, Block{
			Event:         ev,
			Top:           grid.units(startMin - gridStart),
			Height:        grid.units(max(0, dur)),
			TimeRange:     ev.StartTime + " - " + ev.EndTime,
			DurationLabel: DurationLabel(dur),
			IsPast:        isToday && endMin <= nowMin,
		})
	}

	return board
}

// DurationLabel renders minutes rounded to the nearest half hour, e.g.
// "1.5h". It returns "" for non-positive durations.
func DurationLabel(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	half := math.Round(float64(minutes)/60*2) / 2
	return strconv.FormatFloat(half, 'f', -1, 64) + "h"
}

// clockMinutes parses "HH:MM" into minutes since midnight.
func clockMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
