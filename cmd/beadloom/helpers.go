package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"beadloom/internal/config"
	"beadloom/internal/contextbundle"
	"beadloom/internal/index"
	"beadloom/internal/mcpserver"
	"beadloom/internal/store"
)

// Exit codes per spec §6: 0 success, 1 violations/CI gate, 2 config error.
const (
	exitOK          = 0
	exitViolations  = 1
	exitConfigError = 2
)

// configError marks an error that should exit 2 instead of the default 1.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func newConfigError(format string, args ...interface{}) error {
	return &configError{err: fmt.Errorf(format, args...)}
}

// violationsError marks an error that should exit 1 (rule violations or a
// CI gate failure). The command prints its formatted report before
// returning it; main then prints only this error's one-line summary.
type violationsError struct{ err error }

func (e *violationsError) Error() string { return e.err.Error() }
func (e *violationsError) Unwrap() error { return e.err }

// exitCodeFor maps a returned error to the process exit code (spec §6):
// 2 for a configError anywhere in its chain, 1 otherwise (violations, CI
// gate, or any other failure).
func exitCodeFor(err error) int {
	var cfgErr *configError
	if asConfigError(err, &cfgErr) {
		return exitConfigError
	}
	return exitViolations
}

func asConfigError(err error, target **configError) bool {
	for err != nil {
		if ce, ok := err.(*configError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// resolveWorkspace returns the project root: --workspace if set, otherwise
// the current directory, always as an absolute path.
func resolveWorkspace() (string, error) {
	if workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving current directory: %w", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolving workspace %s: %w", workspace, err)
	}
	return abs, nil
}

// storePath is the conventional location of the beadloom database.
func storePath(root string) string {
	return filepath.Join(root, ".beadloom", "beadloom.db")
}

// openProject resolves the workspace, loads its config, and opens its
// store. Every verb but init and mcp-serve's bootstrap path needs all
// three, so they share this one entry point.
func openProject() (root string, cfg *config.Config, st *store.Store, err error) {
	root, err = resolveWorkspace()
	if err != nil {
		return "", nil, nil, newConfigError("%v", err)
	}

	if _, statErr := os.Stat(storePath(root)); os.IsNotExist(statErr) {
		return "", nil, nil, newConfigError("beadloom is not initialized in %s — run `beadloom init` first", root)
	}

	cfg, err = config.Load(root)
	if err != nil {
		return "", nil, nil, newConfigError("%v", err)
	}

	st, err = store.Open(storePath(root))
	if err != nil {
		return "", nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return root, cfg, st, nil
}

// printJSON marshals v as indented JSON to stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// checkReindexFreshness compares the mtimes of every file under root
// (except beadloom.db) against the last reindex time and returns a warning
// string when newer files exist — component F's Build deliberately leaves Bundle.Warning unset, so
// the CLI fills it in for human-facing output (spec §4.F open question).
func checkReindexFreshness(ctx context.Context, st *store.Store, root string) string {
	lastReindex, ok, err := st.MetaGet("last_reindex_at")
	if err != nil || !ok {
		return ""
	}
	var newest string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if filepath.Base(path) == "beadloom.db" {
			return nil
		}
		if info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00") > newest {
			newest = info.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		return nil
	})
	if newest > lastReindex {
		return "project files changed since the last reindex; run `beadloom reindex` for fresh results"
	}
	return ""
}

// externalFacts computes the fact-registry entries only this package can
// derive: cli_command_count needs the cobra command tree and
// mcp_tool_count needs internal/mcpserver, and internal/index can import
// neither without a cycle (internal/mcpserver already imports
// internal/index).
func externalFacts() index.ExternalFacts {
	return index.ExternalFacts{
		"cli_command_count": strconv.Itoa(len(rootCmd.Commands())),
		"mcp_tool_count":     strconv.Itoa(len(mcpserver.Schemas())),
	}
}

// applyFreshnessWarning sets bundle.Warning in place when the project looks
// stale, without overriding a warning Build already set.
func applyFreshnessWarning(ctx context.Context, st *store.Store, root string, bundle *contextbundle.Bundle) {
	if bundle.Warning != "" {
		return
	}
	bundle.Warning = checkReindexFreshness(ctx, st, root)
}
