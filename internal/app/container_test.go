package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtboard/internal/config"
	"courtboard/internal/layout"
	"courtboard/internal/model"
)

const court1JSON = `{"items":[
	{"id":"g1","summary":"Coach Sarah","description":"Coach Booking","start":{"dateTime":"2025-09-23T07:00:00+07:00"},"end":{"dateTime":"2025-09-23T08:30:00+07:00"}},
	{"summary":"Maintenance","start":{"date":"2025-09-23"},"end":{"date":"2025-09-24"}}
]}`

var court3ICS = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//courtboard//test//EN",
	"BEGIN:VEVENT",
	"UID:club-night",
	"DTSTART:20250923T110000Z",
	"DTEND:20250923T130000Z",
	"SUMMARY:Club night",
	"DESCRIPTION:Normal Group",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/calendar/v3/calendars/court1@example.com/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(court1JSON))
	})
	mux.HandleFunc("/calendar/v3/calendars/court2@example.com/events", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	mux.HandleFunc("/feeds/court3.ics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(court3ICS))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Google.APIKey = "test-key"
	cfg.Google.BaseURL = baseURL + "/calendar/v3"
	cfg.Courts[0].CalendarID = "court1@example.com"
	cfg.Courts[1].CalendarID = "court2@example.com"
	cfg.Courts[2].Kind = config.KindICS
	cfg.Courts[2].URL = baseURL + "/feeds/court3.ics"
	return cfg
}

// 02:00Z is 09:00 in Bangkok.
func fixedClock() time.Time { return time.Date(2025, 9, 23, 2, 0, 0, 0, time.UTC) }

func TestNewContainer_Aggregation(t *testing.T) {
	srv := upstream(t)
	cfg := testConfig(srv.URL)
	require.NoError(t, cfg.Validate())

	c, err := NewContainer(cfg, WithHTTPClient(srv.Client()), WithClock(fixedClock))
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", c.Location.String())
	require.Len(t, c.Bindings, 3)

	day, err := c.Aggregator.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)

	want := []model.CalendarEvent{
		{ID: "g1", Title: "Coach Sarah", CourtID: 1, StartTime: "07:00", EndTime: "08:30", ColorHex: "#c084fc"},
		{ID: "2025-09-23-court1-2025-09-22T17:00:00.000Z", Title: "Maintenance", CourtID: 1, StartTime: "00:00", EndTime: "23:59", ColorHex: "#c084fc"},
		{ID: "club-night", Title: "Club night", CourtID: 3, StartTime: "18:00", EndTime: "20:00", ColorHex: "#6366f1"},
	}
	assert.Equal(t, want, day.Events)
}

func TestNewContainer_RefreshAndServe(t *testing.T) {
	srv := upstream(t)
	c, err := NewContainer(testConfig(srv.URL), WithHTTPClient(srv.Client()), WithClock(fixedClock))
	require.NoError(t, err)

	_, err = c.Refresher.RefreshNow(context.Background())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	c.Server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var board layout.Board
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &board))
	assert.Equal(t, "2025-09-23", board.Date)
	assert.True(t, board.IsToday)
	// Two hours below the grid top.
	assert.Equal(t, float64(128), board.PastShadeHeight)

	require.Len(t, board.Columns, 3)
	require.Len(t, board.Columns[0].Blocks, 2)
	assert.True(t, board.Columns[0].Blocks[0].IsPast)
	assert.False(t, board.Columns[0].Blocks[1].IsPast)
	assert.Empty(t, board.Columns[1].Blocks)
	require.Len(t, board.Columns[2].Blocks, 1)
	assert.Equal(t, float64(704), board.Columns[2].Blocks[0].Top)
	assert.Equal(t, "2h", board.Columns[2].Blocks[0].DurationLabel)
}

func TestNewContainer_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err := NewContainer(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.RefreshCron = "sometimes"
	_, err = NewContainer(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Courts[0].Kind = "caldav"
	_, err = NewContainer(cfg)
	assert.Error(t, err)
}

func TestNewContainer_UnconfiguredSources(t *testing.T) {
	c, err := NewContainer(config.DefaultConfig(), WithClock(fixedClock))
	require.NoError(t, err)

	day, err := c.Aggregator.DaySchedule(context.Background(), "2025-09-23")
	require.NoError(t, err)
	assert.Empty(t, day.Events)
	assert.NotNil(t, day.Events)
}
