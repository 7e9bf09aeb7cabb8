package code

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/store"
)

func TestCollectSourceFilesOnlySupportedExtensionsInOrder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.go"), []byte("package x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "sub", "c.rs"), []byte("fn f() {}\n"), 0o644))

	files, err := CollectSourceFiles(root, []string{"."}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join("src", "a.py"),
		filepath.Join("src", "b.go"),
		filepath.Join("src", "sub", "c.rs"),
	}, files)
}

func TestCollectSourceFilesHonorsSkipPredicate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.go"), []byte("package x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "vendor", "b.go"), []byte("package x\n"), 0o644))

	skip := func(rel string, isDir bool) bool {
		return rel == filepath.Join("src", "vendor")
	}

	files, err := CollectSourceFiles(root, []string{"."}, skip)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("src", "a.go")}, files)
}

func TestIndexFilePersistsSymbolsAndImports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	content := []byte(`package demo

import "example.com/widget/auth"

func Handle() {}
`)
	tokens, err := IndexFile(ctx, s.Q(), "src/demo/handler.go", content)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "Handle", tokens[0].Name)

	got, err := store.SymbolTokensForFile(ctx, s.Q(), "src/demo/handler.go")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	var importPath string
	require.NoError(t, s.Q().QueryRowContext(ctx,
		`SELECT import_path FROM code_imports WHERE file_path = ?`, "src/demo/handler.go").Scan(&importPath))
	assert.Equal(t, "example.com/widget/auth", importPath)
}
