package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Source kinds understood by the court wiring.
const (
	KindGoogle = "gcal"
	KindICS    = "ics"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Asia/Bangkok"
	defaultRefresh      = "@every 60s"
	defaultFetchTimeout = "15s"
	defaultFirstHour    = "07:00"
	defaultLastHour     = "23:00"
	defaultHourHeight   = 64
	defaultGoogleBase   = "https://www.googleapis.com/calendar/v3"
	defaultFallback     = "#6366f1"
)

var (
	hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)
	hhmmRe     = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// CourtConfig binds one court column to exactly one upstream calendar.
type CourtConfig struct {
	// ID is the court number reported as courtId in the API.
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// Kind selects the upstream: "gcal" (default) or "ics".
	Kind string `yaml:"kind" json:"kind"`
	// CalendarID is the Google Calendar id (kind gcal).
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// URL is the iCalendar feed (kind ics).
	URL string `yaml:"url" json:"url"`
	// FallbackColor is used when no classify rule matches.
	FallbackColor string `yaml:"fallback_color" json:"fallback_color"`
}

// ClassifyRule maps a description phrase (case-insensitive) to a color.
// Label names the booking type in the board legend and defaults to Phrase.
type ClassifyRule struct {
	Phrase string `yaml:"phrase" json:"phrase"`
	Color  string `yaml:"color" json:"color"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
}

// GridConfig describes the visible hour range of the board.
type GridConfig struct {
	FirstHour  string  `yaml:"first_hour" json:"first_hour"`
	LastHour   string  `yaml:"last_hour" json:"last_hour"`
	HourHeight float64 `yaml:"hour_height" json:"hour_height"`
}

// GoogleConfig holds Google Calendar API access settings.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key" json:"-"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone of the venue. All wall-clock output uses it.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron drives the board refresher, e.g. "@every 60s".
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeout bounds a single upstream request, e.g. "15s".
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`

	Grid     GridConfig     `yaml:"grid" json:"grid"`
	Google   GoogleConfig   `yaml:"google" json:"google"`
	Courts   []CourtConfig  `yaml:"courts" json:"courts"`
	Classify []ClassifyRule `yaml:"classify" json:"classify"`
	Log      LogConfig      `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultCourts is the three-court layout of the venue.
func DefaultCourts() []CourtConfig {
	return []CourtConfig{
		{ID: 1, Name: "Court 1", Kind: KindGoogle, FallbackColor: "#c084fc"},
		{ID: 2, Name: "Court 2", Kind: KindGoogle, FallbackColor: "#6366f1"},
		{ID: 3, Name: "Court 3", Kind: KindGoogle, FallbackColor: "#2ce080ff"},
	}
}

// DefaultClassifyRules tags coaching and group sessions.
func DefaultClassifyRules() []ClassifyRule {
	return []ClassifyRule{
		{Phrase: "coach booking", Color: "#c084fc", Label: "Coach Booking"},
		{Phrase: "normal group", Color: "#6366f1", Label: "Normal Group"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		RefreshCron:  defaultRefresh,
		FetchTimeout: defaultFetchTimeout,
		Grid: GridConfig{
			FirstHour:  defaultFirstHour,
			LastHour:   defaultLastHour,
			HourHeight: defaultHourHeight,
		},
		Google:   GoogleConfig{BaseURL: defaultGoogleBase},
		Courts:   DefaultCourts(),
		Classify: DefaultClassifyRules(),
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if d, err := time.ParseDuration(c.FetchTimeout); err != nil || d <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if !hhmmRe.MatchString(c.Grid.FirstHour) {
		c.Grid.FirstHour = defaultFirstHour
	}
	if !hhmmRe.MatchString(c.Grid.LastHour) {
		c.Grid.LastHour = defaultLastHour
	}
	if c.Grid.HourHeight <= 0 {
		c.Grid.HourHeight = defaultHourHeight
	}
	if c.Google.BaseURL == "" {
		c.Google.BaseURL = defaultGoogleBase
	}
	if c.Courts == nil {
		c.Courts = DefaultCourts()
	}
	for i := range c.Courts {
		ct := &c.Courts[i]
		if ct.Kind == "" {
			ct.Kind = KindGoogle
		}
		if ct.Name == "" {
			ct.Name = fmt.Sprintf("Court %d", ct.ID)
		}
		if !hexColorRe.MatchString(ct.FallbackColor) {
			ct.FallbackColor = defaultFallback
		}
	}
	// nil means "unset"; an explicit empty list disables classification.
	if c.Classify == nil {
		c.Classify = DefaultClassifyRules()
	}
	for i := range c.Classify {
		if c.Classify[i].Label == "" {
			c.Classify[i].Label = c.Classify[i].Phrase
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Grid.FirstHour >= c.Grid.LastHour {
		return fmt.Errorf("grid: first_hour %s must be before last_hour %s", c.Grid.FirstHour, c.Grid.LastHour)
	}
	seen := make(map[int]struct{}, len(c.Courts))
	for _, ct := range c.Courts {
		if _, dup := seen[ct.ID]; dup {
			return fmt.Errorf("courts: duplicate id %d", ct.ID)
		}
		seen[ct.ID] = struct{}{}
		switch ct.Kind {
		case KindGoogle, KindICS:
		default:
			return fmt.Errorf("courts: court %d has unknown kind %q", ct.ID, ct.Kind)
		}
	}
	for _, r := range c.Classify {
		if r.Phrase == "" || !hexColorRe.MatchString(r.Color) {
			return fmt.Errorf("classify: invalid rule %q -> %q", r.Phrase, r.Color)
		}
	}
	return nil
}

// Location resolves the venue timezone. It never falls back to the host
// timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Timeout returns the parsed per-request upstream timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultFetchTimeout)
	}
	return d
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded and normalized.
//
// Environment overrides are applied separately by ApplyEnv.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".courtboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
