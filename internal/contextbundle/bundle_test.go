package contextbundle

import (
	"context"
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

// seedGraph builds: root -(part_of)- svc:auth -(depends_on)- svc:billing
// -(touches_code)- entity:invoice, with one doc/chunk on svc:auth and one
// symbol annotated to svc:auth.
func seedGraph(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	q := s.Q()

	nodes := []store.Node{
		{RefID: "root", Kind: store.KindDomain, Summary: "Project root", Source: "."},
		{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth service", Source: "src/auth"},
		{RefID: "svc:billing", Kind: store.KindService, Summary: "Billing service", Source: "src/billing"},
		{RefID: "entity:invoice", Kind: store.KindEntity, Summary: "Invoice entity"},
	}
	for _, n := range nodes {
		require.NoError(t, store.UpsertNode(ctx, q, n))
	}

	edges := []store.Edge{
		{SrcRefID: "svc:auth", DstRefID: "root", Kind: store.EdgeKindPartOf},
		{SrcRefID: "svc:auth", DstRefID: "svc:billing", Kind: store.EdgeKindDependsOn},
		{SrcRefID: "svc:billing", DstRefID: "entity:invoice", Kind: store.EdgeKindTouchesCode},
	}
	for _, e := range edges {
		require.NoError(t, store.UpsertEdge(ctx, q, e))
	}

	docID, err := store.UpsertDoc(ctx, q, store.Doc{
		Path: "docs/auth.md", Kind: store.DocKindService, RefID: "svc:auth", ContentHash: "h1",
	})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceChunksForDoc(ctx, q, docID, []store.Chunk{
		{ChunkIndex: 0, Heading: "Specification", Section: store.SectionSpec, Body: "Users authenticate with a token.", NodeRefID: "svc:auth"},
	}))

	require.NoError(t, store.ReplaceSymbolsForFile(ctx, q, "src/auth/handler.go", []store.CodeSymbol{
		{SymbolName: "Login", Kind: store.SymbolFunction, LineStart: 1, LineEnd: 3, Annotations: map[string]string{"service": "svc:auth"}},
	}))
}

func TestBuildBFSRespectsDepthAndPriority(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	bundle, err := Build(context.Background(), s, []string{"svc:auth"}, Options{Depth: 1})
	require.NoError(t, err)

	var refIDs []string
	for _, n := range bundle.Graph.Nodes {
		refIDs = append(refIDs, n.RefID)
	}
	assert.ElementsMatch(t, []string{"svc:auth", "root", "svc:billing"}, refIDs)
	assert.NotContains(t, refIDs, "entity:invoice")
}

func TestBuildBFSExpandsToDepth2(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	bundle, err := Build(context.Background(), s, []string{"svc:auth"}, Options{Depth: 2})
	require.NoError(t, err)

	var refIDs []string
	for _, n := range bundle.Graph.Nodes {
		refIDs = append(refIDs, n.RefID)
	}
	assert.ElementsMatch(t, []string{"svc:auth", "root", "svc:billing", "entity:invoice"}, refIDs)
}

func TestBuildMaxNodesCapsTraversal(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	bundle, err := Build(context.Background(), s, []string{"svc:auth"}, Options{Depth: 2, MaxNodes: 2})
	require.NoError(t, err)
	assert.Len(t, bundle.Graph.Nodes, 2)
}

func TestBuildCollectsChunksAndSymbols(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	bundle, err := Build(context.Background(), s, []string{"svc:auth"}, Options{Depth: 0})
	require.NoError(t, err)

	require.Len(t, bundle.TextChunks, 1)
	assert.Equal(t, "docs/auth.md", bundle.TextChunks[0].DocPath)
	assert.Equal(t, "spec", bundle.TextChunks[0].Section)

	require.Len(t, bundle.CodeSymbols, 1)
	assert.Equal(t, "Login", bundle.CodeSymbols[0].SymbolName)
}

func TestBuildFocusFieldsIncludeAuxiliaryExtras(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	n, err := store.GetNode(ctx, s.Q(), "svc:auth")
	require.NoError(t, err)
	n.Extra["activity"] = map[string]interface{}{"commits_30d": float64(4)}
	require.NoError(t, store.UpsertNode(ctx, s.Q(), *n))

	bundle, err := Build(ctx, s, []string{"svc:auth"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "svc:auth", bundle.Focus.RefID)
	require.NotNil(t, bundle.Focus.Activity)
}

func TestBuildUnknownRefIDReturnsSuggestions(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	_, err := Build(context.Background(), s, []string{"svc:auht"}, Options{})
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Suggestions, "svc:auth")
}

func TestBuildConstraintsIncludesApplicableRules(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	require.NoError(t, store.ReplaceRules(ctx, s.Q(), []store.Rule{
		{
			Name:     "no-billing-to-auth",
			RuleType: store.RuleTypeDeny,
			Severity: store.SeverityError,
			RuleJSON: `{"from":{"ref_id":"svc:billing"},"to":{"ref_id":"svc:auth"}}`,
			Enabled:  true,
		},
		{
			Name:     "unrelated-rule",
			RuleType: store.RuleTypeDeny,
			Severity: store.SeverityWarning,
			RuleJSON: `{"from":{"ref_id":"does-not-exist"},"to":{"ref_id":"also-missing"}}`,
			Enabled:  true,
		},
	}))

	bundle, err := Build(ctx, s, []string{"svc:auth"}, Options{Depth: 1})
	require.NoError(t, err)

	var names []string
	for _, c := range bundle.Constraints {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "no-billing-to-auth")
	assert.NotContains(t, names, "unrelated-rule")
}

func TestBuildSyncStatusReportsStaleDocs(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	require.NoError(t, store.UpsertSyncStateRow(ctx, s.Q(), store.SyncState{
		DocPath: "docs/auth.md", CodePath: "src/auth/handler.go", RefID: "svc:auth",
		CodeHashAtSync: "c1", DocHashAtSync: "d1", Status: store.SyncStale, SymbolsHash: "s1",
	}))

	bundle, err := Build(ctx, s, []string{"svc:auth"}, Options{Depth: 0})
	require.NoError(t, err)
	require.Len(t, bundle.SyncStatus.StaleDocs, 1)
	assert.Equal(t, "docs/auth.md", bundle.SyncStatus.StaleDocs[0].DocPath)
}
