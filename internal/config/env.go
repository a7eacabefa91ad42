package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey   = "GCAL_API_KEY"
	EnvLogLevel = "LOG_LEVEL"
)

// CalendarEnvKey returns the variable holding the calendar id of the
// court at index i: GCAL_CAL_ID, GCAL_CAL2_ID, GCAL_CAL3_ID, ...
func CalendarEnvKey(i int) string {
	if i == 0 {
		return "GCAL_CAL_ID"
	}
	return fmt.Sprintf("GCAL_CAL%d_ID", i+1)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays secrets and per-court calendar ids from the
// environment onto c. It returns the names of the variables applied.
func (c *Config) ApplyEnv(getenv func(string) string) []string {
	if getenv == nil {
		getenv = os.Getenv
	}
	var applied []string

	if v := getenv(EnvAPIKey); v != "" {
		c.Google.APIKey = v
		applied = append(applied, EnvAPIKey)
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
		applied = append(applied, EnvLogLevel)
	}
	for i := range c.Courts {
		key := CalendarEnvKey(i)
		if v := getenv(key); v != "" {
			c.Courts[i].CalendarID = v
			applied = append(applied, key)
		}
	}
	return applied
}
