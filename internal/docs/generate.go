package docs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// docKindForNode mirrors index.docKind's node-kind mapping (re-derived
// locally since that function is unexported to its own package).
func docKindForNode(kind store.NodeKind) store.DocKind {
	switch kind {
	case store.KindDomain:
		return store.DocKindDomain
	case store.KindFeature:
		return store.DocKindFeature
	case store.KindService:
		return store.DocKindService
	case store.KindADR:
		return store.DocKindADR
	default:
		return store.DocKindOther
	}
}

// GenerateStubs writes a Markdown doc skeleton under docsDir for every
// node that has no doc linked to it (the `docs generate` CLI verb / MCP
// `generate_docs` tool), and registers each stub's doc row in the store so
// the node counts as documented right away. No chunks are written and the
// search index is not rebuilt here. Returns the ref_ids a stub was written
// for.
func GenerateStubs(ctx context.Context, st *store.Store, root, docsDir string) ([]string, error) {
	log := logging.Get(logging.CategoryDocs)
	q := st.Q()

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	existingDocs, err := store.ListAllDocs(ctx, q)
	if err != nil {
		return nil, err
	}

	linked := map[string]bool{}
	for _, d := range existingDocs {
		if d.RefID != "" {
			linked[d.RefID] = true
		}
	}

	if docsDir == "" {
		docsDir = "docs"
	}
	absDocsDir := filepath.Join(root, docsDir)
	if err := os.MkdirAll(absDocsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating docs dir %s: %w", absDocsDir, err)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].RefID < nodes[j].RefID })

	var written []string
	for _, n := range nodes {
		if linked[n.RefID] {
			continue
		}

		fileName := stubFileName(n.RefID)
		relPath := filepath.Join(docsDir, fileName)
		absPath := filepath.Join(root, relPath)

		content := stubContent(n)
		if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing doc stub %s: %w", absPath, err)
		}

		hash := sha256.Sum256([]byte(content))
		if _, err := store.UpsertDoc(ctx, q, store.Doc{
			Path: relPath, Kind: docKindForNode(n.Kind), RefID: n.RefID,
			ContentHash: hex.EncodeToString(hash[:]),
		}); err != nil {
			return nil, fmt.Errorf("registering doc stub %s: %w", relPath, err)
		}

		written = append(written, n.RefID)
	}

	log.Info("generated %d doc stub(s) under %s", len(written), docsDir)
	return written, nil
}

func stubFileName(refID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, refID)
	return strings.ToLower(safe) + ".md"
}

func stubContent(n store.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.RefID)
	fmt.Fprintf(&b, "%s\n\n", n.Summary)
	b.WriteString("## Overview\n\nTODO: describe this ")
	b.WriteString(string(n.Kind))
	b.WriteString(".\n")
	return b.String()
}
