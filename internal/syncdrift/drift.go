// Package syncdrift implements beadloom's three-layer drift engine
// (component G): hash drift against recorded sync-state baselines, source
// directory coverage, and doc-mention coverage. A node/doc pair is stale
// if any layer flags it.
package syncdrift

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"beadloom/internal/code"
	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// conventionalNonCode names files that never carry node-relevant logic and
// are excluded from source-directory coverage (spec §4.G Layer 2).
var conventionalNonCode = map[string]bool{
	"__init__.py": true,
	"conftest.py": true,
	"__main__.py": true,
}

// DriftEntry is one flagged condition from any of the three layers. Reason
// is set on every entry; the other fields are populated per-layer: CodePath
// for hash drift, MissingModules for module-mention coverage,
// UntrackedFiles for source coverage.
type DriftEntry struct {
	RefID          string   `json:"ref_id"`
	DocPath        string   `json:"doc_path"`
	CodePath       string   `json:"code_path,omitempty"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
	MissingModules []string `json:"missing_modules,omitempty"`
	UntrackedFiles []string `json:"untracked_files,omitempty"`
}

// Check runs all three drift layers against the current store state and
// returns the aggregate list of flagged entries.
func Check(ctx context.Context, st *store.Store, root string) ([]DriftEntry, error) {
	log := logging.Get(logging.CategorySync)
	q := st.Q()

	var out []DriftEntry

	hashEntries, err := checkHashDrift(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("checking hash drift: %w", err)
	}
	out = append(out, hashEntries...)

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	docsByRefID, err := docsLinkedToNodes(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if n.Source == "" || n.Source == "." {
			continue
		}
		docPaths, ok := docsByRefID[n.RefID]
		if !ok || len(docPaths) == 0 {
			continue
		}

		files, err := sourceDirFiles(root, n.Source)
		if err != nil {
			return nil, fmt.Errorf("listing source files for %s: %w", n.RefID, err)
		}

		untracked, err := coverageGaps(ctx, q, n.RefID, files)
		if err != nil {
			return nil, fmt.Errorf("checking coverage for %s: %w", n.RefID, err)
		}

		for _, docPath := range docPaths {
			if len(untracked) > 0 {
				out = append(out, DriftEntry{
					RefID: n.RefID, DocPath: docPath, Status: "stale",
					Reason: "untracked_files", UntrackedFiles: untracked,
				})
			}

			missing, err := missingModuleMentions(root, docPath, files)
			if err != nil {
				return nil, fmt.Errorf("checking module mentions for %s: %w", docPath, err)
			}
			if len(missing) > 0 {
				out = append(out, DriftEntry{
					RefID: n.RefID, DocPath: docPath, Status: "stale",
					Reason: "missing_module_mentions", MissingModules: missing,
				})
			}
		}
	}

	log.Debug("drift check: %d entries flagged", len(out))
	return out, nil
}

// checkHashDrift implements Layer 1: for every existing sync-state row,
// compare its recorded symbols_hash to the ref_id's current symbol-set
// digest. It never mutates code_hash_at_sync/doc_hash_at_sync — those are
// rewritten only by an explicit mark-synced operation.
func checkHashDrift(ctx context.Context, q store.Queryer) ([]DriftEntry, error) {
	rows, err := store.ListAllSyncState(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []DriftEntry
	for _, r := range rows {
		tokens, err := store.SymbolTokensForRefID(ctx, q, r.RefID)
		if err != nil {
			return nil, err
		}
		current := store.HashSymbolSet(tokens)
		if current != r.SymbolsHash {
			out = append(out, DriftEntry{
				RefID: r.RefID, DocPath: r.DocPath, CodePath: r.CodePath,
				Status: "stale", Reason: "symbols_changed",
			})
		}
	}
	return out, nil
}

// docsLinkedToNodes maps a ref_id to every doc path whose docs.ref_id
// points to it, for Layer 2/3's "has at least one linked doc" condition.
func docsLinkedToNodes(ctx context.Context, q store.Queryer) (map[string][]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT path, ref_id FROM docs WHERE ref_id IS NOT NULL ORDER BY ref_id, path`)
	if err != nil {
		return nil, fmt.Errorf("listing linked docs: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var path, refID string
		if err := rows.Scan(&path, &refID); err != nil {
			return nil, err
		}
		out[refID] = append(out[refID], path)
	}
	return out, rows.Err()
}

// sourceDirFiles enumerates root-relative source files (by supported
// extension) under a node's source directory, excluding conventional
// non-code filenames.
func sourceDirFiles(root, sourceDir string) ([]string, error) {
	skip := func(rel string, isDir bool) bool {
		if isDir {
			return rel == ".git" || rel == ".beadloom"
		}
		return conventionalNonCode[filepath.Base(rel)]
	}
	files, err := code.CollectSourceFiles(root, []string{sourceDir}, skip)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// coverageGaps implements Layer 2: a source file is "untracked" unless it
// is referenced either by a sync-state row's code_path or by a
// code_symbols.file_path annotated with refID.
func coverageGaps(ctx context.Context, q store.Queryer, refID string, files []string) ([]string, error) {
	known := map[string]bool{}

	syncRows, err := store.ListSyncStateForRefID(ctx, q, refID)
	if err != nil {
		return nil, err
	}
	for _, r := range syncRows {
		known[r.CodePath] = true
	}

	symbols, err := store.SymbolsAnnotatedWith(ctx, q, []string{refID})
	if err != nil {
		return nil, err
	}
	for _, s := range symbols {
		known[s.FilePath] = true
	}

	var untracked []string
	for _, f := range files {
		if !known[f] {
			untracked = append(untracked, f)
		}
	}
	return untracked, nil
}

// missingModuleMentions implements Layer 3: module-name stems under the
// source directory (filenames without extension) that do not appear
// case-insensitively anywhere in the linked doc's content.
func missingModuleMentions(root, docPath string, files []string) ([]string, error) {
	content, err := os.ReadFile(filepath.Join(root, docPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", docPath, err)
	}
	lowerContent := strings.ToLower(string(content))

	seen := map[string]bool{}
	var missing []string
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		if stem == "" || seen[stem] {
			continue
		}
		seen[stem] = true
		if !strings.Contains(lowerContent, strings.ToLower(stem)) {
			missing = append(missing, stem)
		}
	}
	sort.Strings(missing)
	return missing, nil
}
