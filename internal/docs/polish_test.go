package docs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/store"
)

func TestPolishAppendsExtraSectionsToStub(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:billing", Kind: store.KindService, Summary: "Billing",
		Extra: map[string]interface{}{
			"routes":   []interface{}{"POST /charges", "GET /invoices"},
			"activity": "12 commits in the last 30 days",
			"tests":    []interface{}{"billing_test.go"},
		},
	}))

	written, err := GenerateStubs(ctx, s, root, "docs")
	require.NoError(t, err)
	require.Equal(t, []string{"svc:billing"}, written)

	result, err := Polish(ctx, s, root, "docs")
	require.NoError(t, err)
	require.Equal(t, []string{"docs/svc-billing.md"}, result.Polished)
	assert.Empty(t, result.Skipped)

	data, err := os.ReadFile(filepath.Join(root, "docs", "svc-billing.md"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "## Routes")
	assert.Contains(t, content, "POST /charges")
	assert.Contains(t, content, "## Activity")
	assert.Contains(t, content, "## Tests")
	assert.Contains(t, content, "billing_test.go")
}

func TestPolishSkipsDocsWithoutExtraData(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	_, err := GenerateStubs(ctx, s, root, "docs")
	require.NoError(t, err)

	result, err := Polish(ctx, s, root, "docs")
	require.NoError(t, err)
	assert.Empty(t, result.Polished)
	assert.Empty(t, result.Skipped)
}

func TestPolishSkipsAlreadyEditedDoc(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:billing", Kind: store.KindService, Summary: "Billing",
		Extra: map[string]interface{}{"routes": "POST /charges"},
	}))
	_, err := GenerateStubs(ctx, s, root, "docs")
	require.NoError(t, err)

	path := filepath.Join(root, "docs", "svc-billing.md")
	require.NoError(t, os.WriteFile(path, []byte("# svc:billing\n\nHand-written content.\n"), 0o644))

	result, err := Polish(ctx, s, root, "docs")
	require.NoError(t, err)
	assert.Empty(t, result.Polished)
	assert.Equal(t, []string{"docs/svc-billing.md"}, result.Skipped)
}
