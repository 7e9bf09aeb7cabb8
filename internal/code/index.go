package code

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// SupportedExtensions returns every file extension with a loadable
// grammar, used by the file-collection walk and by the indexing driver's
// parser fingerprint.
func SupportedExtensions() []string {
	var exts []string
	for ext, lc := range Registry() {
		if lc.Language() != nil {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// CollectSourceFiles walks root joined with each of scanPaths (the
// project's configured `scan_paths`, e.g. "." by default) and returns
// every file with a supported extension, as paths relative to root, in
// lexicographic order (spec §5 "Ordering guarantees"). skip, if non-nil,
// is called with a root-relative path and may return true to exclude a
// file or descend-skip a directory (used to honor .gitignore and the
// .beadloom/ control directory).
func CollectSourceFiles(root string, scanPaths []string, skip func(relPath string, isDir bool) bool) ([]string, error) {
	supported := map[string]bool{}
	for _, ext := range SupportedExtensions() {
		supported[ext] = true
	}

	seen := map[string]bool{}
	var files []string
	for _, scanPath := range scanPaths {
		base := filepath.Join(root, scanPath)
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			continue
		}
		err = filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			if skip != nil && skip(rel, info.IsDir()) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if supported[filepath.Ext(path)] && !seen[rel] {
				seen[rel] = true
				files = append(files, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", base, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// IndexFile extracts symbols and imports for a single file, resolves each
// import to a graph node, and persists both into the store (replacing any
// existing rows for path). It returns the file's symbol tokens, which
// callers use to update sync_state.symbols_hash.
func IndexFile(ctx context.Context, q store.Queryer, relPath string, content []byte) ([]store.SymbolToken, error) {
	log := logging.Get(logging.CategoryCode)

	hash := store.HashBytes(content)

	symbols, err := ExtractSymbols(relPath, content)
	if err != nil {
		return nil, err
	}

	storeSymbols := make([]store.CodeSymbol, len(symbols))
	tokens := make([]store.SymbolToken, len(symbols))
	for i, s := range symbols {
		storeSymbols[i] = store.CodeSymbol{
			FilePath:    relPath,
			SymbolName:  s.SymbolName,
			Kind:        s.Kind,
			LineStart:   s.LineStart,
			LineEnd:     s.LineEnd,
			Annotations: s.Annotations,
			FileHash:    hash,
		}
		tokens[i] = store.SymbolToken{Name: s.SymbolName, Kind: string(s.Kind)}
	}
	if err := store.ReplaceSymbolsForFile(ctx, q, relPath, storeSymbols); err != nil {
		return nil, err
	}

	imports, err := ExtractImports(relPath, content)
	if err != nil {
		return nil, err
	}

	storeImports := make([]store.CodeImport, len(imports))
	for i, imp := range imports {
		refID, err := ResolveImport(ctx, q, imp.ImportPath)
		if err != nil {
			return nil, fmt.Errorf("resolving import %s in %s: %w", imp.ImportPath, relPath, err)
		}
		storeImports[i] = store.CodeImport{
			FilePath:      relPath,
			LineNumber:    imp.LineNumber,
			ImportPath:    imp.ImportPath,
			ResolvedRefID: refID,
			FileHash:      hash,
		}
	}
	if err := store.ReplaceImportsForFile(ctx, q, relPath, storeImports); err != nil {
		return nil, err
	}

	log.Debug("indexed %s: %d symbols, %d imports", relPath, len(symbols), len(imports))
	return tokens, nil
}
