package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func writeShard(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadUpsertsNodesAndEdges(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "a.yml", `
nodes:
  - ref_id: domain:auth
    kind: domain
    summary: Authentication domain
  - ref_id: svc:auth
    kind: service
    summary: Auth service
    source: services/auth/
    tags: [critical]
edges:
  - src: svc:auth
    dst: domain:auth
    kind: part_of
`)

	s := testStore(t)
	result, err := Load(context.Background(), s, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NodesLoaded)
	assert.Equal(t, 1, result.EdgesLoaded)
	assert.Empty(t, result.Errors)

	n, err := store.GetNode(context.Background(), s.Q(), "svc:auth")
	require.NoError(t, err)
	assert.Equal(t, "services/auth/", n.Source)
}

func TestLoadFlagsDuplicateRefIDAsError(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "a.yml", "nodes:\n  - ref_id: svc:x\n    kind: service\n")
	writeShard(t, dir, "b.yml", "nodes:\n  - ref_id: svc:x\n    kind: service\n")

	s := testStore(t)
	result, err := Load(context.Background(), s, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NodesLoaded)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "duplicate ref_id")
}

func TestLoadWarnsOnEdgeToMissingNode(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "a.yml", `
nodes:
  - ref_id: svc:x
    kind: service
edges:
  - src: svc:x
    dst: svc:ghost
    kind: depends_on
`)

	s := testStore(t)
	result, err := Load(context.Background(), s, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, result.EdgesLoaded)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "svc:ghost")
}

func TestLoadMissingDirIsNotAnError(t *testing.T) {
	s := testStore(t)
	result, err := Load(context.Background(), s, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.NodesLoaded)
}

func TestLoadPreservesUnknownKeysUnderExtra(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "a.yml", `
nodes:
  - ref_id: svc:x
    kind: service
    summary: x
    framework: fastapi
`)

	s := testStore(t)
	_, err := Load(context.Background(), s, dir)
	require.NoError(t, err)

	n, err := store.GetNode(context.Background(), s.Q(), "svc:x")
	require.NoError(t, err)
	assert.Equal(t, "fastapi", n.Extra["framework"])
}
