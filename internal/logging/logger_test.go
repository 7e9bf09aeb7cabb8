package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWritesPlainLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, LevelDebug, false))

	Get(CategoryIndex).Info("indexed %d files", 3)
	Close()

	data, err := os.ReadFile(filepath.Join(dir, ".beadloom", "logs", "index.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "indexed 3 files")
	assert.Contains(t, string(data), "[INFO]")
}

func TestGetWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, LevelDebug, true))

	Get(CategorySync).Warn("drift detected on %s", "pkg/x")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, ".beadloom", "logs", "sync.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"WARN"`)
	assert.Contains(t, string(data), "drift detected on pkg/x")
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, LevelWarn, false))

	Get(CategoryDocs).Debug("should not appear")
	Get(CategoryDocs).Error("should appear")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, ".beadloom", "logs", "docs.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestGetIsIdempotentPerCategory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, LevelDebug, false))

	a := Get(CategoryGraph)
	b := Get(CategoryGraph)
	assert.Same(t, a, b)
	Close()
}
