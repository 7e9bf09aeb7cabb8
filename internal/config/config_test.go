package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.ElementsMatch(t, DefaultLanguages, cfg.Languages)
	assert.Equal(t, []string{"."}, cfg.ScanPaths)
	assert.Equal(t, "docs", cfg.DocsDir)
	assert.NotNil(t, cfg.DocsAudit.ExtraFacts)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguages, cfg.Languages)
	assert.Equal(t, dir, cfg.Root)
}

func TestLoadOverlaysDeclaredSections(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".beadloom"), 0o755))
	contents := []byte(`
languages: [go, python]
scan_paths: [src, lib]
docs_audit:
  exclude_paths: [CHANGELOG.md]
  extra_facts:
    api_version: "3"
`)
	require.NoError(t, os.WriteFile(ConfigPath(dir), contents, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python"}, cfg.Languages)
	assert.Equal(t, []string{"src", "lib"}, cfg.ScanPaths)
	assert.Equal(t, []string{"CHANGELOG.md"}, cfg.DocsAudit.ExcludePaths)
	assert.Equal(t, "3", cfg.DocsAudit.ExtraFacts["api_version"])
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".beadloom"), 0o755))
	require.NoError(t, os.WriteFile(ConfigPath(dir), []byte("languages: [go\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Root = dir
	cfg.ScanPaths = []string{"app"}

	require.NoError(t, Save(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, loaded.ScanPaths)
}
