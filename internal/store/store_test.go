package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beadloom.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.ensureSchema())
	require.NoError(t, s.ensureSchema())

	v, err := s.metaGetInt("schema_version")
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestUpsertNodeRejectsInvalidKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	err := UpsertNode(ctx, s.Q(), Node{RefID: "x", Kind: "bogus"})
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestUpsertAndGetNodeRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := Node{RefID: "svc:auth", Kind: KindService, Summary: "auth service", Source: "services/auth/", Extra: map[string]interface{}{"framework": "fastapi"}}
	require.NoError(t, UpsertNode(ctx, s.Q(), n))

	got, err := GetNode(ctx, s.Q(), "svc:auth")
	require.NoError(t, err)
	assert.Equal(t, "auth service", got.Summary)
	assert.Equal(t, "services/auth/", got.Source)
	assert.Equal(t, "fastapi", got.Extra["framework"])
}

func TestGetNodeMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := GetNode(context.Background(), s.Q(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEdgeRequiresExistingEndpoints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	err := UpsertEdge(ctx, s.Q(), Edge{SrcRefID: "a", DstRefID: "b", Kind: EdgeKindDependsOn})
	require.Error(t, err)
}

func TestEdgesTouchingOrdersByPriority(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"root", "child1", "child2", "child3"} {
		require.NoError(t, UpsertNode(ctx, s.Q(), Node{RefID: id, Kind: KindService}))
	}
	require.NoError(t, UpsertEdge(ctx, s.Q(), Edge{SrcRefID: "root", DstRefID: "child1", Kind: EdgeKindTouchesCode}))
	require.NoError(t, UpsertEdge(ctx, s.Q(), Edge{SrcRefID: "root", DstRefID: "child2", Kind: EdgeKindPartOf}))
	require.NoError(t, UpsertEdge(ctx, s.Q(), Edge{SrcRefID: "root", DstRefID: "child3", Kind: EdgeKindDependsOn}))

	out, _, err := EdgesTouching(ctx, s.Q(), "root")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, EdgeKindPartOf, out[0].Kind)
	assert.Equal(t, EdgeKindDependsOn, out[1].Kind)
	assert.Equal(t, EdgeKindTouchesCode, out[2].Kind)
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, UpsertNode(ctx, s.Q(), Node{RefID: "a", Kind: KindService}))
	require.NoError(t, UpsertNode(ctx, s.Q(), Node{RefID: "b", Kind: KindService}))
	require.NoError(t, UpsertEdge(ctx, s.Q(), Edge{SrcRefID: "a", DstRefID: "b", Kind: EdgeKindUses}))

	require.NoError(t, DeleteNode(ctx, s.Q(), "a"))

	edges, err := ListEdges(ctx, s.Q())
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSuggestRefIDsPrefersPrefixThenLevenshtein(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"svc:auth", "svc:authorization", "svc:billing", "svc:autht"} {
		require.NoError(t, UpsertNode(ctx, s.Q(), Node{RefID: id, Kind: KindService}))
	}

	out, err := SuggestRefIDs(ctx, s.Q(), "svc:auth")
	require.NoError(t, err)
	assert.Contains(t, out, "svc:auth")
	assert.NotContains(t, out, "svc:billing")
	assert.LessOrEqual(t, len(out), maxSuggestions)
}

func TestChunksForRefIDsOrdersBySectionThenIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, UpsertNode(ctx, s.Q(), Node{RefID: "svc:x", Kind: KindService}))
	docID, err := UpsertDoc(ctx, s.Q(), Doc{Path: "docs/x.md", Kind: DocKindService, RefID: "svc:x", ContentHash: "h"})
	require.NoError(t, err)

	chunks := []Chunk{
		{ChunkIndex: 1, Section: SectionTests, Body: "tests chunk", NodeRefID: "svc:x"},
		{ChunkIndex: 0, Section: SectionSpec, Body: "spec chunk", NodeRefID: "svc:x"},
		{ChunkIndex: 2, Section: SectionSpec, Body: "second spec chunk", NodeRefID: "svc:x"},
	}
	require.NoError(t, ReplaceChunksForDoc(ctx, s.Q(), docID, chunks))

	out, err := ChunksForRefIDs(ctx, s.Q(), []string{"svc:x"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, SectionSpec, out[0].Section)
	assert.Equal(t, 0, out[0].ChunkIndex)
	assert.Equal(t, SectionSpec, out[1].Section)
	assert.Equal(t, 2, out[1].ChunkIndex)
	assert.Equal(t, SectionTests, out[2].Section)
}

func TestMarkSyncedRewritesBaselineOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, UpsertNode(ctx, s.Q(), Node{RefID: "svc:x", Kind: KindService}))

	now := time.Now().Truncate(time.Second)
	require.NoError(t, UpsertSyncStateRow(ctx, s.Q(), SyncState{
		DocPath: "d.md", CodePath: "c.go", RefID: "svc:x",
		CodeHashAtSync: "old", DocHashAtSync: "old", SyncedAt: now, Status: SyncOK, SymbolsHash: "old",
	}))

	require.NoError(t, MarkSynced(ctx, s.Q(), "d.md", "c.go", "new-code", "new-doc", "new-symbols", now.Add(time.Hour)))

	got, err := GetSyncState(ctx, s.Q(), "d.md", "c.go")
	require.NoError(t, err)
	assert.Equal(t, "new-code", got.CodeHashAtSync)
	assert.Equal(t, "new-symbols", got.SymbolsHash)
	assert.Equal(t, SyncOK, got.Status)
}

func TestHashSymbolSetIsOrderIndependent(t *testing.T) {
	a := HashSymbolSet([]SymbolToken{{Name: "Foo", Kind: "function"}, {Name: "Bar", Kind: "type"}})
	b := HashSymbolSet([]SymbolToken{{Name: "Bar", Kind: "type"}, {Name: "Foo", Kind: "function"}})
	assert.Equal(t, a, b)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	boom := assertError("boom")
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := UpsertNode(ctx, tx, Node{RefID: "tx:a", Kind: KindService}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, getErr := GetNode(ctx, s.Q(), "tx:a")
	require.ErrorIs(t, getErr, ErrNotFound)
}

type assertError string

func (e assertError) Error() string { return string(e) }
