package store

import (
	"context"
	"fmt"
)

// EdgeKind is the fixed vocabulary for edges.kind (spec §3). Priority()
// implements the BFS traversal order spec §4.F specifies: "part_of <
// touches_entity < uses = implements < depends_on < touches_code".
type EdgeKind string

const (
	EdgeKindPartOf        EdgeKind = "part_of"
	EdgeKindDependsOn     EdgeKind = "depends_on"
	EdgeKindUses          EdgeKind = "uses"
	EdgeKindImplements    EdgeKind = "implements"
	EdgeKindTouchesEntity EdgeKind = "touches_entity"
	EdgeKindTouchesCode   EdgeKind = "touches_code"
)

var validEdgeKinds = map[EdgeKind]bool{
	EdgeKindPartOf: true, EdgeKindDependsOn: true, EdgeKindUses: true,
	EdgeKindImplements: true, EdgeKindTouchesEntity: true, EdgeKindTouchesCode: true,
}

var edgePriority = map[EdgeKind]int{
	EdgeKindPartOf:        0,
	EdgeKindTouchesEntity: 1,
	EdgeKindUses:          2,
	EdgeKindImplements:    2,
	EdgeKindDependsOn:     3,
	EdgeKindTouchesCode:   4,
}

// Priority returns the BFS traversal rank of k (lower sorts first).
// Unknown kinds sort last.
func (k EdgeKind) Priority() int {
	if p, ok := edgePriority[k]; ok {
		return p
	}
	return len(edgePriority)
}

// Edge is a row of the edges table.
type Edge struct {
	SrcRefID string
	DstRefID string
	Kind     EdgeKind
}

// UpsertEdge inserts the (src, dst, kind) triple if absent; it is a no-op
// if it already exists (edges carry no mutable fields beyond the key).
func UpsertEdge(ctx context.Context, q Queryer, e Edge) error {
	if !validEdgeKinds[e.Kind] {
		return fmt.Errorf("%w: edge kind %q", ErrInvalidKind, e.Kind)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO edges (src_ref_id, dst_ref_id, kind) VALUES (?, ?, ?)
		ON CONFLICT(src_ref_id, dst_ref_id, kind) DO NOTHING
	`, e.SrcRefID, e.DstRefID, string(e.Kind))
	if err != nil {
		return fmt.Errorf("upserting edge %s-%s-%s: %w", e.SrcRefID, e.Kind, e.DstRefID, err)
	}
	return nil
}

// DeleteEdge removes a single (src, dst, kind) triple.
func DeleteEdge(ctx context.Context, q Queryer, e Edge) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM edges WHERE src_ref_id = ? AND dst_ref_id = ? AND kind = ?
	`, e.SrcRefID, e.DstRefID, string(e.Kind))
	if err != nil {
		return fmt.Errorf("deleting edge %s-%s-%s: %w", e.SrcRefID, e.Kind, e.DstRefID, err)
	}
	return nil
}

// ListEdges returns every edge, ordered by (src, dst) for deterministic
// traversal order.
func ListEdges(ctx context.Context, q Queryer) ([]Edge, error) {
	rows, err := q.QueryContext(ctx, `SELECT src_ref_id, dst_ref_id, kind FROM edges ORDER BY src_ref_id, dst_ref_id`)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesTouching returns every edge where refID is either endpoint,
// (outgoing first, then incoming), sorted by kind priority then by
// neighbor ref_id for stable ordering, per spec §4.F's BFS contract.
func EdgesTouching(ctx context.Context, q Queryer, refID string) (outgoing, incoming []Edge, err error) {
	rows, err := q.QueryContext(ctx, `
		SELECT src_ref_id, dst_ref_id, kind FROM edges WHERE src_ref_id = ? ORDER BY dst_ref_id
	`, refID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing outgoing edges for %s: %w", refID, err)
	}
	outgoing, err = scanEdges(rows)
	if err != nil {
		return nil, nil, err
	}
	sortEdgesByPriority(outgoing)

	rows, err = q.QueryContext(ctx, `
		SELECT src_ref_id, dst_ref_id, kind FROM edges WHERE dst_ref_id = ? ORDER BY src_ref_id
	`, refID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing incoming edges for %s: %w", refID, err)
	}
	incoming, err = scanEdges(rows)
	if err != nil {
		return nil, nil, err
	}
	sortEdgesByPriority(incoming)

	return outgoing, incoming, nil
}

func scanEdges(rows interface {
	Next() bool
	Scan(...interface{}) error
	Close() error
	Err() error
}) ([]Edge, error) {
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		var kind string
		if err := rows.Scan(&e.SrcRefID, &e.DstRefID, &kind); err != nil {
			return nil, fmt.Errorf("scanning edge row: %w", err)
		}
		e.Kind = EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func sortEdgesByPriority(edges []Edge) {
	// Stable insertion sort: the edge list is small per node, and a stable
	// sort keeps the neighbor-ref_id order both EdgesTouching queries read
	// in, so edges of equal priority stay ordered by neighbor ref_id.
	for i := 1; i < len(edges); i++ {
		j := i
		for j > 0 && edges[j-1].Kind.Priority() > edges[j].Kind.Priority() {
			edges[j-1], edges[j] = edges[j], edges[j-1]
			j--
		}
	}
}
