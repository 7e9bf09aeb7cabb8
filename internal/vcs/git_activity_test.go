package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGitLog = `abc123 2020-01-01T00:00:00+00:00 Alice
svc/auth/login.go

def456 2020-01-02T00:00:00+00:00 Bob
svc/billing/charge.go
`

func TestParseGitLogSplitsHeaderAndFiles(t *testing.T) {
	commits := parseGitLog(sampleGitLog)
	require.Len(t, commits, 2)
	assert.Equal(t, "abc123", commits[0].hash)
	assert.Equal(t, "Alice", commits[0].author)
	assert.Equal(t, []string{"svc/auth/login.go"}, commits[0].files)
	assert.Equal(t, "Bob", commits[1].author)
}

func TestParseGitLogEmptyOutput(t *testing.T) {
	assert.Empty(t, parseGitLog(""))
	assert.Empty(t, parseGitLog("   \n  "))
}

func TestClassifyActivityThresholds(t *testing.T) {
	assert.Equal(t, ActivityHot, classify(21, 21))
	assert.Equal(t, ActivityWarm, classify(5, 5))
	assert.Equal(t, ActivityWarm, classify(20, 20))
	assert.Equal(t, ActivityCold, classify(1, 1))
	assert.Equal(t, ActivityDormant, classify(0, 0))
	assert.Equal(t, ActivityCold, classify(0, 3))
}

func TestMapFileToNodePrefersLongestPrefix(t *testing.T) {
	dirs := map[string]string{
		"svc:root": "svc",
		"svc:auth": "svc/auth",
	}
	assert.Equal(t, "svc:auth", mapFileToNode("svc/auth/login.go", dirs))
	assert.Equal(t, "svc:root", mapFileToNode("svc/billing/charge.go", dirs))
	assert.Equal(t, "", mapFileToNode("unrelated/file.go", dirs))
}

func TestTopContributorsOrdersByCountThenName(t *testing.T) {
	counts := map[string]int{"Bob": 2, "Alice": 2, "Carl": 1}
	assert.Equal(t, []string{"Alice", "Bob", "Carl"}, topContributors(counts, 3))
	assert.Equal(t, []string{"Alice", "Bob"}, topContributors(counts, 2))
}

func TestAnalyzeOnRealGitRepo(t *testing.T) {
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

	require.NoError(t, os.MkdirAll(filepath.Join(repo, "svc", "auth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "svc", "auth", "login.go"), []byte("package auth\n"), 0o644))
	run("add", "svc/auth/login.go")
	run("commit", "-m", "add login", "--author", "Test User <test@example.com>")

	activity := Analyze(context.Background(), repo, map[string]string{"svc:auth": "svc/auth"})
	require.Contains(t, activity, "svc:auth")
	assert.Equal(t, 1, activity["svc:auth"].Commits30d)
	assert.Equal(t, ActivityCold, activity["svc:auth"].ActivityLevel)
	assert.Equal(t, []string{"Test User"}, activity["svc:auth"].TopContributors)
}

func TestAnalyzeNoSourceDirsIsNoop(t *testing.T) {
	activity := Analyze(context.Background(), t.TempDir(), map[string]string{})
	assert.Empty(t, activity)
}
