package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestConfigure_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", LevelInfo)
	t.Cleanup(func() { Configure(nil, "text", LevelInfo) })

	Debug("hidden")
	Error("fetch failed", errors.New("boom"), "court", 2)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "fetch failed", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["err"])
	assert.EqualValues(t, 2, rec["court"])
}

func TestSetLevel_EnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "text", LevelInfo)
	t.Cleanup(func() { Configure(nil, "text", LevelInfo) })

	Debug("first")
	assert.Empty(t, buf.String())

	SetLevel(LevelDebug)
	Debug("second", "k", "v")
	assert.Contains(t, buf.String(), "msg=second")
	assert.Contains(t, buf.String(), "k=v")
}
