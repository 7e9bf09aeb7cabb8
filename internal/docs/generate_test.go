package docs

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

func TestGenerateStubsSkipsNodesWithExistingDocs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:billing", Kind: store.KindService, Summary: "Billing"}))
	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	_, err := store.UpsertDoc(ctx, q, store.Doc{Path: "docs/auth.md", Kind: store.DocKindService, RefID: "svc:auth", ContentHash: "h"})
	require.NoError(t, err)

	written, err := GenerateStubs(ctx, s, root, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"svc:billing"}, written)

	data, err := os.ReadFile(filepath.Join(root, "docs", "svc-billing.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "svc:billing")
	assert.Contains(t, string(data), "Billing")
}

func TestGenerateStubsRegistersDocInStore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:billing", Kind: store.KindService, Summary: "Billing"}))

	_, err := GenerateStubs(ctx, s, root, "docs")
	require.NoError(t, err)

	docs, err := store.ListAllDocs(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "svc:billing", docs[0].RefID)
}

func TestGenerateStubsNoopWhenAllNodesDocumented(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	_, err := store.UpsertDoc(ctx, q, store.Doc{Path: "docs/auth.md", Kind: store.DocKindService, RefID: "svc:auth", ContentHash: "h"})
	require.NoError(t, err)

	written, err := GenerateStubs(ctx, s, root, "docs")
	require.NoError(t, err)
	assert.Empty(t, written)
}
