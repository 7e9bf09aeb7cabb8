package diffsnap

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShard(t *testing.T, root, name, content string) {
	t.Helper()
	dir := graphDir(root)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const billingShard = `
nodes:
  - ref_id: svc:billing
    kind: service
    summary: Billing
    tags: [core]
  - ref_id: svc:auth
    kind: service
    summary: Auth
edges:
  - src: svc:billing
    dst: svc:auth
    kind: depends_on
`

func TestDiffAgainstRefDetectsAddedNodeSinceCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		require.NoError(t, cmd.Run())
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	writeShard(t, repo, "services.yml", billingShard)
	run("add", ".")
	run("commit", "-m", "baseline graph", "--author", "Test User <test@example.com>")

	writeShard(t, repo, "payments.yml", `
nodes:
  - ref_id: svc:payments
    kind: service
    summary: Payments
edges: []
`)

	diff, err := DiffAgainstRef(context.Background(), repo, "HEAD")
	require.NoError(t, err)
	require.Len(t, diff.Nodes, 1)
	assert.Equal(t, "svc:payments", diff.Nodes[0].RefID)
	assert.Equal(t, "added", diff.Nodes[0].ChangeType)
	assert.Equal(t, "HEAD", diff.SinceLabel)
}

func TestDiffAgainstRefNoChangesWhenIdentical(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		require.NoError(t, cmd.Run())
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	writeShard(t, repo, "services.yml", billingShard)
	run("add", ".")
	run("commit", "-m", "baseline graph", "--author", "Test User <test@example.com>")

	diff, err := DiffAgainstRef(context.Background(), repo, "HEAD")
	require.NoError(t, err)
	assert.False(t, diff.HasChanges())
}

func TestDiffAgainstRefInvalidRefReturnsError(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := t.TempDir()
	cmd := exec.Command("git", "init")
	cmd.Dir = repo
	require.NoError(t, cmd.Run())

	_, err := DiffAgainstRef(context.Background(), repo, "does-not-exist")
	assert.Error(t, err)
}

func TestMergeYAMLShardParsesNodesAndEdges(t *testing.T) {
	doc := &graphDoc{nodes: map[string]nodeDoc{}, edges: map[edgeKey]bool{}}
	mergeYAMLShard(doc, []byte(billingShard))

	require.Contains(t, doc.nodes, "svc:billing")
	assert.Equal(t, []string{"core"}, doc.nodes["svc:billing"].Tags)
	assert.True(t, doc.edges[edgeKey{src: "svc:billing", dst: "svc:auth", kind: "depends_on"}])
}
