package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a config pointing at a temp log file
	dir := t.TempDir()
	cfg := Config{
		Level:     "debug",
		FilePath:  filepath.Join(dir, "carrel.log"),
		MaxSizeMB: 1,
		MaxFiles:  2,
	}

	// When: logging a structured record
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("query served", slog.String("intent", "definition"), slog.Int("results", 5))
	cleanup()

	// Then: the file contains JSON with the attributes
	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"query served"`)
	assert.Contains(t, string(data), `"intent":"definition"`)
}

func TestSetup_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Level: "warn", FilePath: filepath.Join(dir, "carrel.log"), MaxSizeMB: 1, MaxFiles: 1}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("invisible")
	logger.Warn("visible")
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "invisible")
	assert.Contains(t, string(data), "visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carrel.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	// Force the threshold low so a couple of writes trigger rotation
	w.maxSize = 64

	line := bytes.Repeat([]byte("x"), 48)
	for i := 0; i < 4; i++ {
		_, err := w.Write(append(line, '\n'))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, matches, "expected at least one rotated file")

	_, err = os.Stat(path)
	assert.NoError(t, err, "active log file should still exist")
}

func TestRotatingWriter_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carrel.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.maxSize = 32

	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte(strings.Repeat("y", 30) + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}
