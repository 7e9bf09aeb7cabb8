package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/config"
	"beadloom/internal/logging"
	"beadloom/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	require.NoError(t, logging.Initialize(t.TempDir(), logging.LevelError, false))
	s, err := store.Open(filepath.Join(t.TempDir(), "beadloom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".beadloom", "_graph"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "auth"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, ".beadloom", "_graph", "nodes.yml"), []byte(`
nodes:
  - ref_id: root
    kind: domain
    summary: Project root
    source: "."
  - ref_id: svc:auth
    kind: service
    summary: Auth service
    source: src/auth
    docs: ["docs/auth.md"]
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "auth.md"), []byte(`# Auth

## Specification

Users authenticate with a token.
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "auth", "handler.go"), []byte(`package auth

func Login() {}
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "auth", "handler_test.go"), []byte(`package auth

func TestLogin() {}
`), 0o644))

	return root
}

func TestReindexFullPopulatesDocsAndCode(t *testing.T) {
	s := testStore(t)
	root := setupProject(t)
	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.ScanPaths = []string{"src"}

	ctx := context.Background()
	result, err := Reindex(ctx, s, root, cfg, "", true)
	require.NoError(t, err)
	assert.True(t, result.Full)
	assert.Equal(t, 2, result.NodesLoaded)
	assert.Equal(t, 1, result.DocsIndexed)
	assert.Equal(t, 2, result.FilesIndexed)

	doc, err := store.GetDocByPath(ctx, s.Q(), "docs/auth.md")
	require.NoError(t, err)
	assert.Equal(t, "svc:auth", doc.RefID)

	tokens, err := store.SymbolTokensForFile(ctx, s.Q(), "src/auth/handler.go")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "Login", tokens[0].Name)

	node, err := store.GetNode(ctx, s.Q(), "svc:auth")
	require.NoError(t, err)
	tests, ok := node.Extra["tests"].([]interface{})
	require.True(t, ok)
	require.Len(t, tests, 1)
	assert.Equal(t, "src/auth/handler_test.go", tests[0])

	_, ok, err = s.MetaGet("schema_version")
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := store.GetFileIndexEntry(ctx, s.Q(), store.ParserFingerprintKey)
	require.NoError(t, err)
	assert.Equal(t, ComputeFingerprint(), entry.Hash)
}

func TestReindexIncrementalNoChangesReportsUnchanged(t *testing.T) {
	s := testStore(t)
	root := setupProject(t)
	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.ScanPaths = []string{"src"}

	ctx := context.Background()
	_, err := Reindex(ctx, s, root, cfg, "", true)
	require.NoError(t, err)

	result, err := Reindex(ctx, s, root, cfg, "", false)
	require.NoError(t, err)
	assert.True(t, result.Unchanged)
}

func TestReindexIncrementalPicksUpChangedFile(t *testing.T) {
	s := testStore(t)
	root := setupProject(t)
	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.ScanPaths = []string{"src"}

	ctx := context.Background()
	_, err := Reindex(ctx, s, root, cfg, "", true)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "auth", "handler.go"), []byte(`package auth

func Login() {}

func Logout() {}
`), 0o644))

	result, err := Reindex(ctx, s, root, cfg, "", false)
	require.NoError(t, err)
	assert.False(t, result.Unchanged)
	assert.Equal(t, 1, result.FilesIndexed)

	tokens, err := store.SymbolTokensForFile(ctx, s.Q(), "src/auth/handler.go")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestReindexIncrementalForcedFullOnFingerprintChange(t *testing.T) {
	s := testStore(t)
	root := setupProject(t)
	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.ScanPaths = []string{"src"}

	ctx := context.Background()
	_, err := Reindex(ctx, s, root, cfg, "", true)
	require.NoError(t, err)

	require.NoError(t, store.UpsertFileIndexEntry(ctx, s.Q(), store.FileIndexEntry{
		Path: store.ParserFingerprintKey,
		Hash: "stale-fingerprint",
	}))

	result, err := Reindex(ctx, s, root, cfg, "", false)
	require.NoError(t, err)
	assert.True(t, result.Full)
}

func TestReindexCustomDocsDirOverride(t *testing.T) {
	s := testStore(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".beadloom", "_graph"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "handbook"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "handbook", "overview.md"), []byte("# Overview\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.ScanPaths = []string{"src"}

	ctx := context.Background()
	result, err := Reindex(ctx, s, root, cfg, "handbook", true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocsIndexed)

	_, err = store.GetDocByPath(ctx, s.Q(), "handbook/overview.md")
	require.NoError(t, err)
}
