package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"critical", zerolog.FatalLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Debugf("dropped %d", 1)
	l.Infof("dropped %d", 2)
	l.Warnf("kept %d", 3)
	l.Errorf("kept %d", 4)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "kept 3", recs[0]["message"])
	assert.Equal(t, "warn", recs[0]["level"])
	assert.Equal(t, "error", recs[1]["level"])
}

func TestCriticalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)
	l.Criticalf("no sources")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "fatal", recs[0]["level"])
}

func TestComponentSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, zerolog.InfoLevel)
	child := root.Component("ingest").With("modality", "lidar")

	child.Debugf("hidden")
	require.NoError(t, root.SetLevel("debug"))
	child.Debugf("visible")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "ingest", recs[0]["component"])
	assert.Equal(t, "lidar", recs[0]["modality"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Infof("nothing")
	l.Criticalf("nothing")
	assert.Nil(t, l.Component("x"))
	assert.NoError(t, l.Close())
	assert.NoError(t, l.SetLevel("debug"))
}

func TestNewWritesSessionFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: "info", Dir: dir})
	require.NoError(t, err)
	l.Infof("hello")
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "liframe-"))
}
