package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"beadloom/internal/code"
	"beadloom/internal/config"
	"beadloom/internal/logging"
	"beadloom/internal/store"
	"beadloom/internal/vcs"
)

// recomputeAuxiliary implements the "after either mode" half of spec §4.E:
// per-node extra.routes, extra.activity, extra.tests, and (for the root
// node) extra.config. It re-derives these from the store's current state
// rather than the files just touched by this pass, since a file's route
// or test ownership can change even when the file itself didn't.
func recomputeAuxiliary(ctx context.Context, st *store.Store, root string, cfg *config.Config) error {
	log := logging.Get(logging.CategoryIndex)
	q := st.Q()

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return err
	}

	sourceDirs := map[string]string{}
	for _, n := range nodes {
		if n.Source != "" {
			sourceDirs[n.RefID] = n.Source
		}
	}

	skip := buildSkip(root)
	files, err := code.CollectSourceFiles(root, cfg.ScanPaths, skip)
	if err != nil {
		return fmt.Errorf("collecting source files for auxiliary fields: %w", err)
	}

	routesByNode := map[string][]Route{}
	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			continue
		}
		routes := ExtractRoutes(f, content)
		if len(routes) == 0 {
			continue
		}
		refID := mapFileToSourceDir(f, sourceDirs)
		if refID == "" {
			continue
		}
		routesByNode[refID] = append(routesByNode[refID], routes...)
	}

	activity := vcs.Analyze(ctx, root, sourceDirs)

	testsByNode, err := mapTestsToNodes(ctx, q, files, sourceDirs)
	if err != nil {
		return fmt.Errorf("mapping tests to nodes: %w", err)
	}

	deepConfig := DeepConfig(root)
	rootRefID := findRootRefID(nodes)

	filesByNode := map[string][]string{}
	for _, f := range files {
		refID := mapFileToSourceDir(f, sourceDirs)
		if refID == "" {
			continue
		}
		filesByNode[refID] = append(filesByNode[refID], f)
	}

	for _, n := range nodes {
		extra := n.Extra
		if extra == nil {
			extra = map[string]interface{}{}
		}

		summary := n.Summary
		if summary == "" {
			summary = leadingDocCommentFor(root, filesByNode[n.RefID])
		}

		if routes, ok := routesByNode[n.RefID]; ok {
			sortRoutes(routes)
			extra["routes"] = routes
		} else {
			delete(extra, "routes")
		}

		if a, ok := activity[n.RefID]; ok {
			extra["activity"] = a
		} else {
			delete(extra, "activity")
		}

		if tests, ok := testsByNode[n.RefID]; ok {
			extra["tests"] = tests
		} else {
			delete(extra, "tests")
		}

		if n.RefID == rootRefID && len(deepConfig) > 0 {
			extra["config"] = deepConfig
		}

		if err := store.UpsertNode(ctx, q, store.Node{
			RefID:   n.RefID,
			Kind:    n.Kind,
			Summary: summary,
			Source:  n.Source,
			Extra:   extra,
		}); err != nil {
			return fmt.Errorf("updating auxiliary fields for %s: %w", n.RefID, err)
		}
	}

	log.Debug("recomputed auxiliary fields for %d nodes", len(nodes))
	return nil
}

// findRootRefID picks the node spec §4.E's "root node" extra.config is
// attached to: a node explicitly named "root", or failing that the
// domain-kind node whose source is the project root itself.
func findRootRefID(nodes []store.Node) string {
	for _, n := range nodes {
		if n.RefID == "root" {
			return n.RefID
		}
	}
	for _, n := range nodes {
		if n.Kind == store.KindDomain && (n.Source == "." || n.Source == "") {
			return n.RefID
		}
	}
	return ""
}

// leadingDocCommentFor implements spec §4's "Contextual summaries"
// fallback: when a node has no YAML summary:, try the leading doc comment
// above the top-level symbol of each of its source files, in path order,
// and use the first one found.
func leadingDocCommentFor(root string, candidateFiles []string) string {
	sorted := append([]string(nil), candidateFiles...)
	sort.Strings(sorted)
	for _, f := range sorted {
		content, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			continue
		}
		doc, err := code.LeadingDocComment(f, content)
		if err != nil || doc == "" {
			continue
		}
		return doc
	}
	return ""
}

func sortRoutes(routes []Route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].File != routes[j].File {
			return routes[i].File < routes[j].File
		}
		if routes[i].Line != routes[j].Line {
			return routes[i].Line < routes[j].Line
		}
		return routes[i].Method < routes[j].Method
	})
}
