package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerTeesToFileAndLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.txt")
	l, err := New(Options{Path: path, Level: "debug"})
	require.NoError(t, err)

	l.Debug("node settled", zap.String("state", "high"))
	l.Log("cmd mode -set auto")
	require.NoError(t, l.Close())

	lines := l.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "node settled")
	assert.Contains(t, lines[0], `"state": "high"`)
	assert.Contains(t, lines[1], "cmd mode -set auto")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fileLines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, fileLines, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(fileLines[1]), &entry))
	assert.Equal(t, "cmd mode -set auto", entry["msg"])
	assert.Equal(t, "console", entry["source"])
}

func TestLevelFilters(t *testing.T) {
	l, err := New(Options{Path: "-", Level: "warn"})
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown")
	assert.Len(t, l.Lines(), 1)
	assert.NoError(t, l.Close())

	_, err = New(Options{Path: "-", Level: "loud"})
	assert.Error(t, err)
}

func TestEchoCopiesConsoleLines(t *testing.T) {
	var buf strings.Builder
	l, err := New(Options{Path: "-", Echo: &buf})
	require.NoError(t, err)
	l.Info("frame", zap.Int("high", 3))
	require.NoError(t, l.Close())
	assert.Contains(t, buf.String(), "frame")
	assert.Contains(t, buf.String(), `"high": 3`)
}

func TestRingKeepsNewest(t *testing.T) {
	l, err := New(Options{Path: "-", MaxLines: 3})
	require.NoError(t, err)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		l.Info(s)
	}
	lines := l.Lines()
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "c"))
	assert.True(t, strings.HasSuffix(lines[2], "e"))
}
