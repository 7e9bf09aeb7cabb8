package docs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// PolishResult reports which doc files were enriched and which were left
// alone because they carried no stub marker to replace.
type PolishResult struct {
	Polished []string
	Skipped  []string
}

// Polish enriches existing doc stubs with a node's Extra data (routes,
// activity, tests) so a generated skeleton reads as a real page instead
// of a bare TODO. Only files whose content still contains the
// "## Overview\n\nTODO:" marker GenerateStubs writes are touched — a doc
// a human has since edited is left alone.
func Polish(ctx context.Context, st *store.Store, root, docsDir string) (*PolishResult, error) {
	log := logging.Get(logging.CategoryDocs)
	q := st.Q()

	docs, err := store.ListAllDocs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing docs: %w", err)
	}
	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	byRefID := map[string]store.Node{}
	for _, n := range nodes {
		byRefID[n.RefID] = n
	}

	result := &PolishResult{}
	for _, d := range docs {
		if d.RefID == "" {
			continue
		}
		n, ok := byRefID[d.RefID]
		if !ok || len(n.Extra) == 0 {
			continue
		}

		absPath := filepath.Join(root, d.Path)
		data, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}
		content := string(data)
		if !strings.Contains(content, "## Overview\n\nTODO:") {
			result.Skipped = append(result.Skipped, d.Path)
			continue
		}

		polished := content + renderExtraSections(n)
		if err := os.WriteFile(absPath, []byte(polished), 0o644); err != nil {
			return nil, fmt.Errorf("writing polished doc %s: %w", absPath, err)
		}
		result.Polished = append(result.Polished, d.Path)
	}

	sort.Strings(result.Polished)
	sort.Strings(result.Skipped)
	log.Info("polished %d doc(s), skipped %d already-edited doc(s)", len(result.Polished), len(result.Skipped))
	return result, nil
}

// renderExtraSections builds the "Routes"/"Activity"/"Tests" sections a
// polished stub appends, pulled from whichever of those keys a node's
// Extra map carries. Each key may hold either a single string or a list
// of strings in the parsed YAML/JSON.
func renderExtraSections(n store.Node) string {
	var b strings.Builder
	writeListSection(&b, "Routes", n.Extra["routes"])
	writeListSection(&b, "Activity", n.Extra["activity"])
	writeListSection(&b, "Tests", n.Extra["tests"])
	return b.String()
}

func writeListSection(b *strings.Builder, title string, value interface{}) {
	items := toStringList(value)
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func toStringList(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	case []string:
		return v
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}
