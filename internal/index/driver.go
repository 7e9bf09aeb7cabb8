// Package index implements beadloom's indexing driver (component E): the
// full/incremental reindex orchestration that ties the graph loader (B),
// doc chunker (C), and code analyzer (D) together, and recomputes the
// auxiliary node fields (routes, git activity, test mapping, deep config)
// that only make sense once the rest of the store has been rebuilt.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"beadloom/internal/code"
	"beadloom/internal/config"
	"beadloom/internal/docs"
	"beadloom/internal/graph"
	"beadloom/internal/logging"
	"beadloom/internal/store"
	"beadloom/internal/vcs"
)

// Result summarizes one reindex pass, returned to the CLI and MCP `sync_check`
// / `get_status` callers.
type Result struct {
	Full         bool
	Unchanged    bool
	NodesLoaded  int
	EdgesLoaded  int
	Warnings     []string
	Errors       []string
	DocsIndexed  int
	FilesIndexed int
	FilesDeleted int
}

// Reindex runs a full or incremental reindex of the project at root,
// per spec §4.E. docsDir overrides cfg.DocsDir when non-empty (the CLI's
// `--docs-dir PATH` flag).
func Reindex(ctx context.Context, st *store.Store, root string, cfg *config.Config, docsDir string, full bool) (*Result, error) {
	log := logging.Get(logging.CategoryIndex)

	if docsDir == "" {
		docsDir = cfg.DocsDir
	}
	if docsDir == "" {
		docsDir = config.DefaultDocsDir
	}

	q := st.Q()

	if !full {
		changed, _, err := fingerprintChanged(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("checking parser fingerprint: %w", err)
		}
		if changed {
			log.Info("parser fingerprint changed, upgrading to full reindex")
			full = true
		}
	}

	skip := buildSkip(root)

	var result *Result
	var err error
	if full {
		result, err = fullReindex(ctx, st, root, cfg, docsDir, skip)
	} else {
		result, err = incrementalReindex(ctx, st, root, cfg, docsDir, skip)
	}
	if err != nil {
		return nil, err
	}

	if result.Unchanged {
		if err := st.MetaSet(store.MetaLastReindexAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("stamping last reindex time: %w", err)
		}
		return result, nil
	}

	if err := recomputeAuxiliary(ctx, st, root, cfg); err != nil {
		return nil, fmt.Errorf("recomputing auxiliary fields: %w", err)
	}
	if err := store.RebuildSearchIndex(ctx, q); err != nil {
		return nil, fmt.Errorf("rebuilding search index: %w", err)
	}
	if err := st.MetaSet(store.MetaLastReindexAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("stamping last reindex time: %w", err)
	}

	return result, nil
}

// buildSkip returns a predicate that excludes .beadloom/ (the control
// directory) and anything the project's root .gitignore matches.
func buildSkip(root string) func(rel string, isDir bool) bool {
	gi, _ := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	return func(rel string, isDir bool) bool {
		if rel == ".beadloom" || strings.HasPrefix(rel, ".beadloom"+string(filepath.Separator)) {
			return true
		}
		if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
			return true
		}
		if gi != nil && gi.MatchesPath(rel) {
			return true
		}
		return false
	}
}

func fullReindex(ctx context.Context, st *store.Store, root string, cfg *config.Config, docsDir string, skip func(string, bool) bool) (*Result, error) {
	log := logging.Get(logging.CategoryIndex)
	q := st.Q()

	if err := st.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.TruncateChunks(ctx, tx); err != nil {
			return err
		}
		if err := store.TruncateDocs(ctx, tx); err != nil {
			return err
		}
		if err := store.TruncateSymbols(ctx, tx); err != nil {
			return err
		}
		if err := store.TruncateImports(ctx, tx); err != nil {
			return err
		}
		return store.TruncateFileIndex(ctx, tx)
	}); err != nil {
		return nil, fmt.Errorf("truncating derived tables: %w", err)
	}

	loadResult, err := graph.Load(ctx, st, graph.GraphDir(root))
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	docsIndexed, err := indexAllDocs(ctx, q, root, docsDir)
	if err != nil {
		return nil, fmt.Errorf("indexing docs: %w", err)
	}

	files, err := code.CollectSourceFiles(root, cfg.ScanPaths, skip)
	if err != nil {
		return nil, fmt.Errorf("collecting source files: %w", err)
	}
	for _, f := range files {
		if err := indexOneCodeFile(ctx, q, root, f); err != nil {
			return nil, err
		}
	}

	fingerprint := ComputeFingerprint()
	if err := storeFingerprint(ctx, q, fingerprint); err != nil {
		return nil, fmt.Errorf("storing parser fingerprint: %w", err)
	}

	log.Info("full reindex: %d nodes, %d edges, %d docs, %d files", loadResult.NodesLoaded, loadResult.EdgesLoaded, docsIndexed, len(files))

	return &Result{
		Full:         true,
		NodesLoaded:  loadResult.NodesLoaded,
		EdgesLoaded:  loadResult.EdgesLoaded,
		Warnings:     loadResult.Warnings,
		Errors:       loadResult.Errors,
		DocsIndexed:  docsIndexed,
		FilesIndexed: len(files),
	}, nil
}

func incrementalReindex(ctx context.Context, st *store.Store, root string, cfg *config.Config, docsDir string, skip func(string, bool) bool) (*Result, error) {
	log := logging.Get(logging.CategoryIndex)
	q := st.Q()

	loadResult, err := graph.Load(ctx, st, graph.GraphDir(root))
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	docFiles, err := collectDocFiles(root, docsDir)
	if err != nil {
		return nil, fmt.Errorf("collecting docs: %w", err)
	}
	codeFiles, err := code.CollectSourceFiles(root, cfg.ScanPaths, skip)
	if err != nil {
		return nil, fmt.Errorf("collecting source files: %w", err)
	}

	tracked, err := store.ListFileIndex(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing file index: %w", err)
	}
	trackedHash := map[string]string{}
	for _, e := range tracked {
		if e.Path != store.ParserFingerprintKey {
			trackedHash[e.Path] = e.Hash
		}
	}

	current := map[string]bool{}
	for _, f := range docFiles {
		current[f] = true
	}
	for _, f := range codeFiles {
		current[f] = true
	}

	changedDocs, changedCode := 0, 0
	deleted := 0

	for _, f := range docFiles {
		content, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			continue
		}
		hash := store.HashBytes(content)
		if trackedHash[f] == hash {
			continue
		}
		if err := indexOneDocFile(ctx, q, root, f); err != nil {
			return nil, err
		}
		if err := store.UpsertFileIndexEntry(ctx, q, store.FileIndexEntry{Path: f, Hash: hash}); err != nil {
			return nil, err
		}
		changedDocs++
	}

	for _, f := range codeFiles {
		content, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			continue
		}
		hash := store.HashBytes(content)
		if trackedHash[f] == hash {
			continue
		}
		if err := indexOneCodeFile(ctx, q, root, f); err != nil {
			return nil, err
		}
		if err := store.UpsertFileIndexEntry(ctx, q, store.FileIndexEntry{Path: f, Hash: hash}); err != nil {
			return nil, err
		}
		changedCode++
	}

	for path := range trackedHash {
		if current[path] {
			continue
		}
		if err := removeDeletedFile(ctx, q, root, path, docsDir); err != nil {
			return nil, err
		}
		deleted++
	}

	if changedDocs == 0 && changedCode == 0 && deleted == 0 {
		log.Info("incremental reindex: nothing changed")
		return &Result{Full: false, Unchanged: true, NodesLoaded: loadResult.NodesLoaded, EdgesLoaded: loadResult.EdgesLoaded, Warnings: loadResult.Warnings, Errors: loadResult.Errors}, nil
	}

	log.Info("incremental reindex: %d docs changed, %d files changed, %d deleted", changedDocs, changedCode, deleted)
	return &Result{
		Full:         false,
		NodesLoaded:  loadResult.NodesLoaded,
		EdgesLoaded:  loadResult.EdgesLoaded,
		Warnings:     loadResult.Warnings,
		Errors:       loadResult.Errors,
		DocsIndexed:  changedDocs,
		FilesIndexed: changedCode,
		FilesDeleted: deleted,
	}, nil
}

func removeDeletedFile(ctx context.Context, q store.Queryer, root, relPath, docsDir string) error {
	if strings.HasPrefix(relPath, docsDir+"/") || relPath == docsDir {
		if err := store.DeleteDoc(ctx, q, relPath); err != nil {
			return fmt.Errorf("removing deleted doc %s: %w", relPath, err)
		}
	} else {
		if err := store.DeleteSymbolsForFile(ctx, q, relPath); err != nil {
			return fmt.Errorf("removing symbols for deleted file %s: %w", relPath, err)
		}
		if err := store.DeleteImportsForFile(ctx, q, relPath); err != nil {
			return fmt.Errorf("removing imports for deleted file %s: %w", relPath, err)
		}
	}
	return store.DeleteFileIndexEntry(ctx, q, relPath)
}

// collectDocFiles walks docsDir under root for Markdown files, root-relative.
func collectDocFiles(root, docsDir string) ([]string, error) {
	base := filepath.Join(root, docsDir)
	info, err := os.Stat(base)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []string
	err = filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func indexAllDocs(ctx context.Context, q store.Queryer, root, docsDir string) (int, error) {
	files, err := collectDocFiles(root, docsDir)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := indexOneDocFile(ctx, q, root, f); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

// indexOneDocFile chunks a single Markdown file and persists its doc row
// plus replaced chunk set, linking to whatever node (if any) declares it
// under its `docs:` list in the graph, and updates its tracked hash.
func indexOneDocFile(ctx context.Context, q store.Queryer, root, relPath string) error {
	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return fmt.Errorf("reading %s: %w", relPath, err)
	}

	refID, nodeKind, err := docRefID(ctx, q, relPath)
	if err != nil {
		return err
	}

	docID, err := store.UpsertDoc(ctx, q, store.Doc{
		Path:        relPath,
		Kind:        docKind(relPath, nodeKind),
		RefID:       refID,
		ContentHash: store.HashBytes(content),
	})
	if err != nil {
		return fmt.Errorf("upserting doc %s: %w", relPath, err)
	}

	chunks := docs.Chunk(string(content))
	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = store.Chunk{
			ChunkIndex: c.ChunkIndex,
			Heading:    c.Heading,
			Section:    c.Section,
			Body:       c.Body,
			NodeRefID:  refID,
		}
	}
	if err := store.ReplaceChunksForDoc(ctx, q, docID, storeChunks); err != nil {
		return fmt.Errorf("replacing chunks for %s: %w", relPath, err)
	}
	return store.UpsertFileIndexEntry(ctx, q, store.FileIndexEntry{Path: relPath, Hash: store.HashBytes(content)})
}

// docRefID finds the ref_id and kind (if any) of the node whose
// graph-declared `docs:` list names relPath.
func docRefID(ctx context.Context, q store.Queryer, relPath string) (refID string, kind store.NodeKind, err error) {
	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return "", "", err
	}
	for _, n := range nodes {
		raw, ok := n.Extra["docs"]
		if !ok {
			continue
		}
		for _, d := range asStringSlice(raw) {
			if d == relPath {
				return n.RefID, n.Kind, nil
			}
		}
	}
	return "", "", nil
}

func asStringSlice(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// docKind classifies a doc by the node it's linked to, falling back to
// filename heuristics for unlinked docs (spec §3's doc kind vocabulary is
// a superset of node kinds, to cover architecture overviews not owned by
// any single node).
func docKind(relPath string, nodeKind store.NodeKind) store.DocKind {
	switch nodeKind {
	case store.KindDomain:
		return store.DocKindDomain
	case store.KindFeature:
		return store.DocKindFeature
	case store.KindService:
		return store.DocKindService
	case store.KindADR:
		return store.DocKindADR
	}

	lower := strings.ToLower(relPath)
	switch {
	case strings.Contains(lower, "adr"):
		return store.DocKindADR
	case strings.Contains(lower, "architecture"):
		return store.DocKindArchitecture
	}
	return store.DocKindOther
}

// indexOneCodeFile reads, extracts, and persists a single source file's
// symbols and imports, and updates its tracked hash, combining
// code.IndexFile with the driver's own file_index bookkeeping.
func indexOneCodeFile(ctx context.Context, q store.Queryer, root, relPath string) error {
	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return fmt.Errorf("reading %s: %w", relPath, err)
	}
	if _, err := code.IndexFile(ctx, q, relPath, content); err != nil {
		return fmt.Errorf("indexing %s: %w", relPath, err)
	}
	return store.UpsertFileIndexEntry(ctx, q, store.FileIndexEntry{Path: relPath, Hash: store.HashBytes(content)})
}
