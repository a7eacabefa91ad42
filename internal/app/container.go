// Package app wires configuration into the running components.
package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"courtboard/internal/config"
	"courtboard/internal/layout"
	appLog "courtboard/internal/log"
	"courtboard/internal/refresh"
	"courtboard/internal/schedule"
	"courtboard/internal/source"
	"courtboard/internal/source/ics"
	"courtboard/internal/web"
)

// Container holds all application dependencies.
type Container struct {
	Config     *config.Config
	Location   *time.Location
	HTTPClient *http.Client
	Bindings   []schedule.Binding
	Classifier *schedule.Classifier
	Aggregator *schedule.Aggregator
	Grid       layout.Grid
	Courts     []layout.Court
	Refresher  *refresh.Refresher
	Server     *web.Server
}

// Option customizes container construction, mostly for tests.
type Option func(*options)

type options struct {
	client *http.Client
	now    func() time.Time
}

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithClock replaces time.Now for the refresher and the HTTP layer.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewContainer initializes and wires up all dependencies from cfg. cfg
// must already be normalized and validated.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	client := o.client
	if client == nil {
		client = source.NewHTTPClient(cfg.Timeout())
	}

	bindings := make([]schedule.Binding, 0, len(cfg.Courts))
	for _, ct := range cfg.Courts {
		src, err := newSource(cfg, ct, client, loc)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, schedule.Binding{
			CourtID:       ct.ID,
			FallbackColor: ct.FallbackColor,
			Source:        src,
		})
		appLog.Debug("court bound", "court", ct.ID, "kind", ct.Kind)
	}

	rules := make([]schedule.Rule, 0, len(cfg.Classify))
	for _, r := range cfg.Classify {
		rules = append(rules, schedule.Rule{Phrase: r.Phrase, Color: r.Color})
	}
	classifier := schedule.NewClassifier(rules)

	aggregator := schedule.NewAggregator(bindings, classifier, loc, cfg.Timeout())

	grid, err := layout.NewGrid(cfg.Grid.FirstHour, cfg.Grid.LastHour, cfg.Grid.HourHeight)
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	courts := web.Courts(cfg.Courts)

	refresher, err := refresh.New(aggregator, grid, courts, loc, cfg.RefreshCron, refresh.WithClock(o.now))
	if err != nil {
		return nil, err
	}

	server := web.NewServer(cfg, web.Deps{
		Schedules: aggregator,
		Board:     refresher,
		Grid:      grid,
		Location:  loc,
		Now:       o.now,
	})

	return &Container{
		Config:     cfg,
		Location:   loc,
		HTTPClient: client,
		Bindings:   bindings,
		Classifier: classifier,
		Aggregator: aggregator,
		Grid:       grid,
		Courts:     courts,
		Refresher:  refresher,
		Server:     server,
	}, nil
}

func newSource(cfg *config.Config, ct config.CourtConfig, client *http.Client, loc *time.Location) (schedule.Source, error) {
	switch ct.Kind {
	case config.KindGoogle, "":
		return source.NewGoogleCalendar(client, cfg.Google.BaseURL, cfg.Google.APIKey, ct.CalendarID), nil
	case config.KindICS:
		return ics.NewFeed(client, "court-"+strconv.Itoa(ct.ID), ct.URL, loc), nil
	default:
		return nil, fmt.Errorf("court %d: unknown source kind %q", ct.ID, ct.Kind)
	}
}
