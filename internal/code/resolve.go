package code

import (
	"context"
	"strings"

	"beadloom/internal/store"
)

// sourceRootPrefixes are the conventional top-level source directories an
// import's dotted/slashed path may be rooted under, per the original
// resolver's src/lib/app/"" prefix table.
var sourceRootPrefixes = []string{"src/", "lib/", "app/", ""}

// annotationRefKinds are the annotation keys checked, in order, against a
// resolved file's recorded symbol annotations when mapping an import to a
// graph node.
var annotationRefKinds = []string{"domain", "service", "feature"}

// ResolveImport maps a raw import path to a graph node ref_id using the
// two-strategy algorithm spec §4.D describes:
//  1. Convert the import path to candidate file paths under the
//     conventional source roots, look up any code_symbols row recorded
//     for that file, and read its domain/service/feature annotation.
//  2. Fall back to matching the import path (as a directory path) against
//     nodes.source.
//
// Returns "" when neither strategy finds a match.
func ResolveImport(ctx context.Context, q store.Queryer, importPath string) (string, error) {
	for _, candidate := range candidateFilePaths(importPath) {
		ann, err := store.FirstSymbolAnnotations(ctx, q, candidate)
		if err != nil {
			return "", err
		}
		if ann == nil {
			continue
		}
		for _, kind := range annotationRefKinds {
			value, ok := ann[kind]
			if !ok {
				continue
			}
			refID := kind + ":" + value
			if _, err := store.GetNode(ctx, q, refID); err == nil {
				return refID, nil
			}
		}
	}

	dirPath := strings.ReplaceAll(importPath, ".", "/")
	for _, prefix := range sourceRootPrefixes {
		refID, err := store.RefIDBySource(ctx, q, prefix+dirPath)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return "", err
		}
		return refID, nil
	}

	return "", nil
}

// candidateFilePaths mirrors the original resolver's dotted-path expansion:
// a dotted or "::"/"."-joined import path is tried under every source
// root, both as a direct file and as a package __init__-style directory.
func candidateFilePaths(importPath string) []string {
	parts := strings.NewReplacer(".", "/", "::", "/").Replace(importPath)

	var out []string
	for _, prefix := range sourceRootPrefixes {
		out = append(out, prefix+parts+".py")
		out = append(out, prefix+parts+"/__init__.py")
		out = append(out, prefix+parts+".go")
		out = append(out, prefix+parts+".ts")
		out = append(out, prefix+parts+".rs")
	}
	return out
}
