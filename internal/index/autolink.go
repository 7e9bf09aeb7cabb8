package index

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"beadloom/internal/store"
)

// refIDMentionRE matches beadloom ref_ids embedded in prose: identifier
// segments of letters and digits joined by dots, dashes, underscores, or
// colons (so both "routing" and "svc:auth" match), the same shape node
// YAML declares ref_id in (spec §3).
var refIDMentionRE = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9_.:-]{2,}\b`)

// DocLinkProposal is one suggested touches_entity edge `reindex --report`
// surfaces: docPath's chunk body mentions refID, but nothing in the graph
// already records that the doc's owning node touches it.
type DocLinkProposal struct {
	DocPath  string
	SrcRefID string
	RefID    string
}

// ProposeDocLinks implements spec §4's "Auto-link docs" supplemented
// feature (grounded on original_source/tests/test_auto_link_docs.py): for
// every doc chunk linked to a node, scan its body for mentions of another
// existing ref_id that node has no touches_entity edge to, and propose the
// link rather than creating it — reindex --report is read-only.
func ProposeDocLinks(ctx context.Context, st *store.Store) ([]DocLinkProposal, error) {
	q := st.Q()

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	refIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		refIDs = append(refIDs, n.RefID)
	}

	chunks, err := store.ChunksForRefIDs(ctx, q, refIDs)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}

	edges, err := store.ListEdges(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	touches := map[string]bool{}
	for _, e := range edges {
		if e.Kind == store.EdgeKindTouchesEntity {
			touches[e.SrcRefID+"\x00"+e.DstRefID] = true
		}
	}

	validRef := map[string]bool{}
	for _, rid := range refIDs {
		validRef[rid] = true
	}

	docPaths, err := chunkDocPaths(ctx, q, chunks)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []DocLinkProposal
	for _, c := range chunks {
		if c.NodeRefID == "" {
			continue
		}
		for _, mention := range refIDMentionRE.FindAllString(c.Body, -1) {
			if mention == c.NodeRefID || !validRef[mention] {
				continue
			}
			if touches[c.NodeRefID+"\x00"+mention] {
				continue
			}
			key := c.NodeRefID + "\x00" + mention
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, DocLinkProposal{
				DocPath:  docPaths[c.DocID],
				SrcRefID: c.NodeRefID,
				RefID:    mention,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SrcRefID != out[j].SrcRefID {
			return out[i].SrcRefID < out[j].SrcRefID
		}
		return out[i].RefID < out[j].RefID
	})
	return out, nil
}

func chunkDocPaths(ctx context.Context, q store.Queryer, chunks []store.Chunk) (map[int64]string, error) {
	ids := map[int64]bool{}
	for _, c := range chunks {
		ids[c.DocID] = true
	}
	out := map[int64]string{}
	for id := range ids {
		row := q.QueryRowContext(ctx, `SELECT path FROM docs WHERE id = ?`, id)
		var path string
		if err := row.Scan(&path); err != nil {
			return nil, fmt.Errorf("resolving doc path for doc %d: %w", id, err)
		}
		out[id] = path
	}
	return out, nil
}
