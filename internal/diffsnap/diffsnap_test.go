package diffsnap

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

func seedGraph(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:billing", Kind: store.KindService, Summary: "Billing",
		Extra: map[string]interface{}{"tags": []string{"core"}},
	}))
	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	require.NoError(t, store.UpsertEdge(ctx, q, store.Edge{SrcRefID: "svc:billing", DstRefID: "svc:auth", Kind: store.EdgeKindDependsOn}))
}

func TestCapturePersistsSnapshot(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	snap, err := Capture(context.Background(), s, "baseline")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "baseline", snap.Label)

	fetched, err := store.GetSnapshot(context.Background(), s.Q(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.NodesJSON, fetched.NodesJSON)
	assert.Equal(t, snap.EdgesJSON, fetched.EdgesJSON)
}

func TestDiffAgainstLiveDetectsAddedNode(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	snap, err := Capture(ctx, s, "baseline")
	require.NoError(t, err)

	require.NoError(t, store.UpsertNode(ctx, s.Q(), store.Node{RefID: "svc:payments", Kind: store.KindService, Summary: "Payments"}))

	diff, err := DiffAgainstLive(ctx, s, snap.ID)
	require.NoError(t, err)
	require.Len(t, diff.Nodes, 1)
	assert.Equal(t, "svc:payments", diff.Nodes[0].RefID)
	assert.Equal(t, "added", diff.Nodes[0].ChangeType)
}

func TestDiffAgainstLiveDetectsRemovedEdge(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	snap, err := Capture(ctx, s, "baseline")
	require.NoError(t, err)

	require.NoError(t, store.DeleteEdge(ctx, s.Q(), store.Edge{SrcRefID: "svc:billing", DstRefID: "svc:auth", Kind: store.EdgeKindDependsOn}))

	diff, err := DiffAgainstLive(ctx, s, snap.ID)
	require.NoError(t, err)
	require.Len(t, diff.Edges, 1)
	assert.Equal(t, "removed", diff.Edges[0].ChangeType)
	assert.Equal(t, "svc:billing", diff.Edges[0].Src)
	assert.Equal(t, "svc:auth", diff.Edges[0].Dst)
}

func TestDiffAgainstLiveDetectsChangedSummaryAndTags(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	snap, err := Capture(ctx, s, "baseline")
	require.NoError(t, err)

	require.NoError(t, store.UpsertNode(ctx, s.Q(), store.Node{
		RefID: "svc:billing", Kind: store.KindService, Summary: "Billing v2",
		Extra: map[string]interface{}{"tags": []string{"core", "pci"}},
	}))

	diff, err := DiffAgainstLive(ctx, s, snap.ID)
	require.NoError(t, err)
	require.Len(t, diff.Nodes, 1)
	assert.Equal(t, "svc:billing", diff.Nodes[0].RefID)
	assert.Equal(t, "changed", diff.Nodes[0].ChangeType)
	assert.Equal(t, "Billing", diff.Nodes[0].OldSummary)
	assert.Equal(t, "Billing v2", diff.Nodes[0].NewSummary)
}

func TestDiffAgainstLiveNoChangesWhenIdentical(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	snap, err := Capture(ctx, s, "baseline")
	require.NoError(t, err)

	diff, err := DiffAgainstLive(ctx, s, snap.ID)
	require.NoError(t, err)
	assert.False(t, diff.HasChanges())
}

func TestDiffAgainstLiveComputesSymbolDelta(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	snap, err := Capture(ctx, s, "baseline")
	require.NoError(t, err)

	require.NoError(t, store.ReplaceSymbolsForFile(ctx, s.Q(), "src/billing/invoice.go", []store.CodeSymbol{
		{FilePath: "src/billing/invoice.go", SymbolName: "Charge", Kind: store.SymbolFunction, LineStart: 1, LineEnd: 10, FileHash: "h1"},
	}))

	diff, err := DiffAgainstLive(ctx, s, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, diff.SymbolsAdded)
	assert.Equal(t, 0, diff.SymbolsRemoved)
}

func TestDiffSnapshotsComparesTwoCaptures(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)
	ctx := context.Background()

	oldSnap, err := Capture(ctx, s, "v1")
	require.NoError(t, err)

	require.NoError(t, store.UpsertNode(ctx, s.Q(), store.Node{RefID: "svc:payments", Kind: store.KindService, Summary: "Payments"}))
	newSnap, err := Capture(ctx, s, "v2")
	require.NoError(t, err)

	diff, err := DiffSnapshots(ctx, s, oldSnap.ID, newSnap.ID)
	require.NoError(t, err)
	require.Len(t, diff.Nodes, 1)
	assert.Equal(t, "svc:payments", diff.Nodes[0].RefID)
	assert.Equal(t, "added", diff.Nodes[0].ChangeType)
	assert.Equal(t, "v1", diff.SinceLabel)
}
