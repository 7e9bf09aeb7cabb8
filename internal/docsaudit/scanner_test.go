package docsaudit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

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

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanFileExtractsVersionMention(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "README.md", "Requires beadloom v1.2.3 or later.\n")

	mentions, err := ScanFile(path)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "version", mentions[0].FactName)
	assert.Equal(t, "v1.2.3", mentions[0].Value)
}

func TestScanFileMatchesCountKeywordInProximityWindow(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "README.md", "beadloom supports 12 programming languages out of the box.\n")

	mentions, err := ScanFile(path)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "language_count", mentions[0].FactName)
	assert.Equal(t, "12", mentions[0].Value)
}

func TestScanFileSkipsFencedCodeBlocks(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "README.md", "```\nsupports 9 languages\n```\n")

	mentions, err := ScanFile(path)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestScanFileMasksIsoDatesAndIssueIDs(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "README.md", "Released on 2024-01-15, fixes #1234 and JIRA-5678.\n")

	mentions, err := ScanFile(path)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestScanFileSkipsSmallNumbersForCountFacts(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "README.md", "Just 3 languages are supported today.\n")

	mentions, err := ScanFile(path)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestResolvePathsFindsMarkdownAndSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "hello\n")
	writeFile(t, root, "docs/guide.md", "hello\n")
	writeFile(t, root, "node_modules/pkg/README.md", "hello\n")
	writeFile(t, root, "CHANGELOG.md", "hello\n")

	paths, err := ResolvePaths(root, nil)
	require.NoError(t, err)

	var rels []string
	for _, p := range paths {
		rel, _ := filepath.Rel(root, p)
		rels = append(rels, rel)
	}
	assert.Contains(t, rels, "README.md")
	assert.Contains(t, rels, filepath.Join("docs", "guide.md"))
	assert.NotContains(t, rels, "CHANGELOG.md")
	for _, r := range rels {
		assert.NotContains(t, r, "node_modules")
	}
}

func TestResolvePathsHonorsExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/internal-notes.md", "hello\n")

	paths, err := ResolvePaths(root, []string{"docs/internal-notes.md"})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestAuditFlagsMismatchAgainstRegisteredFact(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	writeFile(t, root, "README.md", "beadloom supports 12 programming languages.\n")
	require.NoError(t, store.UpsertFact(ctx, q, store.Fact{Key: "language_count", Value: "7", Source: "index", UpdatedAt: time.Now()}))

	report, err := Audit(ctx, s, root)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "language_count", report.Mismatches[0].FactName)
	assert.Equal(t, "12", report.Mismatches[0].Value)
	assert.Equal(t, "7", report.Mismatches[0].RegisteredValue)
}

func TestAuditNoMismatchWhenFactsAgree(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()
	root := t.TempDir()

	writeFile(t, root, "README.md", "beadloom supports 12 programming languages.\n")
	require.NoError(t, store.UpsertFact(ctx, q, store.Fact{Key: "language_count", Value: "12", Source: "index", UpdatedAt: time.Now()}))

	report, err := Audit(ctx, s, root)
	require.NoError(t, err)
	assert.Empty(t, report.Mismatches)
}

func TestAuditIgnoresUnregisteredFacts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	root := t.TempDir()

	writeFile(t, root, "README.md", "beadloom supports 12 programming languages.\n")

	report, err := Audit(ctx, s, root)
	require.NoError(t, err)
	assert.Empty(t, report.Mismatches)
	assert.NotEmpty(t, report.Mentions)
}
