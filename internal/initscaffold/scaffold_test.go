package initscaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguageFindsGoMod(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644))
	assert.Equal(t, "go", DetectLanguage(root))
}

func TestDetectLanguageReturnsEmptyWhenNoMarker(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "", DetectLanguage(root))
}

func TestBootstrapWritesConfigAndSeedShard(t *testing.T) {
	root := t.TempDir()
	result, err := Bootstrap(root, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NodesSeeded)

	_, err = os.Stat(filepath.Join(root, ".beadloom", "config.yml"))
	require.NoError(t, err)
	data, err := os.ReadFile(result.GraphShardPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "domain:")
}

func TestBootstrapMonolithPresetClassifiesConventionalDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "api"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "models"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "unrelated"), 0o755))

	result, err := Bootstrap(root, "monolith", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.NodesSeeded) // root domain + api + models

	data, err := os.ReadFile(result.GraphShardPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "feature:api")
	assert.Contains(t, content, "feature:models")
	assert.NotContains(t, content, "unrelated")
}

func TestBootstrapUnknownPresetReturnsError(t *testing.T) {
	root := t.TempDir()
	_, err := Bootstrap(root, "nonexistent", nil)
	assert.Error(t, err)
}

func TestImportGraphCopiesShardsFromAnotherProject(t *testing.T) {
	srcRoot := t.TempDir()
	srcGraphDir := filepath.Join(srcRoot, ".beadloom", "_graph")
	require.NoError(t, os.MkdirAll(srcGraphDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcGraphDir, "services.yml"), []byte("nodes: []\n"), 0o644))

	dstRoot := t.TempDir()
	n, err := ImportGraph(dstRoot, srcRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(dstRoot, ".beadloom", "_graph", "services.yml"))
	require.NoError(t, err)
}

func TestImportGraphSkipsExistingShards(t *testing.T) {
	srcRoot := t.TempDir()
	srcGraphDir := filepath.Join(srcRoot, ".beadloom", "_graph")
	require.NoError(t, os.MkdirAll(srcGraphDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcGraphDir, "services.yml"), []byte("nodes: []\n"), 0o644))

	dstRoot := t.TempDir()
	dstGraphDir := filepath.Join(dstRoot, ".beadloom", "_graph")
	require.NoError(t, os.MkdirAll(dstGraphDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dstGraphDir, "services.yml"), []byte("nodes: [existing]\n"), 0o644))

	n, err := ImportGraph(dstRoot, srcRoot)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	data, err := os.ReadFile(filepath.Join(dstGraphDir, "services.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "existing")
}
