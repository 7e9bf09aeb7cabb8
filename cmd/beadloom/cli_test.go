package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	timeout = 5 * time.Second
	t.Cleanup(func() { workspace = "" })
	return ws
}

func TestInitCmdBootstrapCreatesStore(t *testing.T) {
	ws := setupWorkspace(t)

	initBootstrap = true
	initPreset = ""
	initImportDir = ""
	defer func() { initBootstrap = false }()

	if err := runInit(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".beadloom", "beadloom.db")); os.IsNotExist(err) {
		t.Error(".beadloom/beadloom.db was not created")
	}

	// Re-running should warn and return nil rather than fail.
	if err := runInit(&cobra.Command{}, nil); err != nil {
		t.Errorf("second runInit failed: %v", err)
	}
}

func TestReindexAndDoctorAndSearchRoundTrip(t *testing.T) {
	ws := setupWorkspace(t)

	initBootstrap = true
	defer func() { initBootstrap = false }()
	if err := runInit(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(ws, "main.go"), []byte("package main\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reindexFull = false
	reindexDocsDir = ""
	if err := runReindex(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runReindex failed: %v", err)
	}

	if err := runDoctor(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runDoctor failed: %v", err)
	}

	searchKind = ""
	searchLimit = 20
	searchJSON = false
	if err := runSearch(&cobra.Command{}, []string{"domain"}); err != nil {
		t.Fatalf("runSearch failed: %v", err)
	}
}

func TestDocsGenerateWritesStubsForSeededNodes(t *testing.T) {
	ws := setupWorkspace(t)

	initBootstrap = true
	defer func() { initBootstrap = false }()
	if err := runInit(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	docsDirFlag = ""
	if err := runDocsGenerate(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runDocsGenerate failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(ws, "docs"))
	if err != nil {
		t.Fatalf("reading docs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected at least one generated doc stub")
	}
}

func TestLintRunsCleanOnFreshProject(t *testing.T) {
	setupWorkspace(t)

	initBootstrap = true
	defer func() { initBootstrap = false }()
	if err := runInit(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	lintStrict = false
	lintNoReindex = false
	lintFormat = "rich"
	if err := runLint(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runLint failed on a fresh project with no rules: %v", err)
	}
}

func TestExitCodeForConfigErrorIsTwo(t *testing.T) {
	err := newConfigError("missing workspace")
	if code := exitCodeFor(err); code != exitConfigError {
		t.Errorf("exitCodeFor(configError) = %d, want %d", code, exitConfigError)
	}
}

func TestExitCodeForViolationsErrorIsOne(t *testing.T) {
	err := &violationsError{err: os.ErrInvalid}
	if code := exitCodeFor(err); code != exitViolations {
		t.Errorf("exitCodeFor(violationsError) = %d, want %d", code, exitViolations)
	}
}
