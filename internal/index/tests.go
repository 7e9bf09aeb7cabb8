package index

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"beadloom/internal/store"
)

// looksLikeTestFile applies spec §4.E's "naming convention" leg of test
// mapping across the supported languages: pytest's test_*.py/*_test.py,
// Go's *_test.go, JS/TS's *.test.ts/*.spec.ts, and JUnit's Test*.java.
func looksLikeTestFile(relPath string) bool {
	base := filepath.Base(relPath)
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.HasSuffix(base, "_test.py"):
		return true
	case strings.HasSuffix(base, ".test.ts") || strings.HasSuffix(base, ".test.js") ||
		strings.HasSuffix(base, ".spec.ts") || strings.HasSuffix(base, ".spec.js"):
		return true
	case strings.HasPrefix(base, "Test") && strings.HasSuffix(base, ".java"):
		return true
	case strings.HasSuffix(base, "_test.rs") || strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".rs"):
		return true
	}
	return false
}

// mapTestsToNodes implements spec §4.E's "tests are mapped by naming
// convention plus import analysis": a test file belongs to a node when it
// sits under that node's source directory, or when it imports (directly or
// via any resolved code_imports row) a module that resolves to that node.
// sourceDirs maps ref_id to the node's source path; allFiles is every
// source file CollectSourceFiles found, including test files.
func mapTestsToNodes(ctx context.Context, q store.Queryer, allFiles []string, sourceDirs map[string]string) (map[string][]string, error) {
	imports, err := store.AllResolvedImports(ctx, q)
	if err != nil {
		return nil, err
	}
	importsByFile := map[string][]string{}
	for _, imp := range imports {
		if imp.ResolvedRefID != "" {
			importsByFile[imp.FilePath] = append(importsByFile[imp.FilePath], imp.ResolvedRefID)
		}
	}

	result := map[string][]string{}
	for _, f := range allFiles {
		if !looksLikeTestFile(f) {
			continue
		}
		targets := map[string]bool{}
		if refID := mapFileToSourceDir(f, sourceDirs); refID != "" {
			targets[refID] = true
		}
		for _, refID := range importsByFile[f] {
			targets[refID] = true
		}
		for refID := range targets {
			result[refID] = append(result[refID], f)
		}
	}
	for refID := range result {
		sort.Strings(result[refID])
	}
	return result, nil
}

// mapFileToSourceDir returns the ref_id whose source directory is the
// longest prefix match of relPath, mirroring vcs.mapFileToNode's semantics
// for the indexing driver's own file-to-node bucketing needs.
func mapFileToSourceDir(relPath string, sourceDirs map[string]string) string {
	relPath = strings.TrimPrefix(relPath, "./")
	best, bestLen := "", 0
	for refID, src := range sourceDirs {
		src = strings.TrimSuffix(strings.TrimPrefix(src, "./"), "/")
		if src == "" {
			continue
		}
		if (relPath == src || strings.HasPrefix(relPath, src+"/")) && len(src) > bestLen {
			best, bestLen = refID, len(src)
		}
	}
	return best
}
