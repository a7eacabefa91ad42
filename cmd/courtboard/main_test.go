package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtboard/internal/config"
	"courtboard/internal/layout"
	"courtboard/internal/schedule"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvAPIKey, config.EnvLogLevel, config.CalendarEnvKey(0), config.CalendarEnvKey(1), config.CalendarEnvKey(2)} {
		t.Setenv(key, "")
	}
}

func TestRunOnce(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	var out bytes.Buffer
	err := run(flagConfig{
		configPath: filepath.Join(dir, "config.yaml"),
		envPath:    filepath.Join(dir, "missing.env"),
		once:       true,
		date:       "2025-09-23",
	}, &out)
	require.NoError(t, err)

	var board layout.Board
	require.NoError(t, json.Unmarshal(out.Bytes(), &board))
	assert.Equal(t, "2025-09-23", board.Date)
	assert.Len(t, board.Hours, 17)
	require.Len(t, board.Columns, 3)
	for _, col := range board.Columns {
		assert.Empty(t, col.Blocks)
	}

	// First run writes the default config.
	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}

func TestRunOnce_InvalidDate(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	err := run(flagConfig{
		configPath: filepath.Join(dir, "config.yaml"),
		once:       true,
		date:       "tomorrow",
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)
}

func TestRun_InvalidConfig(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o600))

	err := run(flagConfig{configPath: path, once: true}, &bytes.Buffer{})
	assert.Error(t, err)
}
