// Package diffsnap implements beadloom's snapshot capture and graph diff
// (component J): immutable point-in-time captures of the node/edge set,
// and a classifier comparing any two such captures (snapshot-vs-snapshot,
// snapshot-vs-live, or YAML-vs-git-ref).
package diffsnap

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// nodeDoc and edgeDoc are the serialized shape stored in a snapshot's
// nodes_json/edges_json columns — deliberately small subset of store.Node/
// store.Edge used for diffing (kind, summary, source, tags).
type nodeDoc struct {
	RefID   string   `json:"ref_id"`
	Kind    string   `json:"kind"`
	Summary string   `json:"summary"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type edgeDoc struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Kind string `json:"kind"`
}

// graphDoc is a fully materialized graph state ready for diffing, used for
// both snapshot payloads and live store state.
type graphDoc struct {
	nodes        map[string]nodeDoc
	edges        map[edgeKey]bool
	symbolsCount int
}

type edgeKey struct {
	src, dst, kind string
}

// NodeChange is a single node delta.
type NodeChange struct {
	RefID      string `json:"ref_id"`
	Kind       string `json:"kind"`
	ChangeType string `json:"change_type"` // "added" | "removed" | "changed"
	OldSummary string `json:"old_summary,omitempty"`
	NewSummary string `json:"new_summary,omitempty"`
}

// EdgeChange is a single edge delta.
type EdgeChange struct {
	Src        string `json:"src"`
	Dst        string `json:"dst"`
	Kind       string `json:"kind"`
	ChangeType string `json:"change_type"` // "added" | "removed"
}

// Diff is the complete result of comparing two graph states.
type Diff struct {
	SinceLabel     string       `json:"since_label"`
	Nodes          []NodeChange `json:"nodes"`
	Edges          []EdgeChange `json:"edges"`
	SymbolsAdded   int          `json:"symbols_added"`
	SymbolsRemoved int          `json:"symbols_removed"`
}

// HasChanges reports whether the diff contains anything.
func (d *Diff) HasChanges() bool {
	return len(d.Nodes) > 0 || len(d.Edges) > 0 || d.SymbolsAdded > 0 || d.SymbolsRemoved > 0
}

// Capture builds an immutable graph_snapshots row from the current store
// state and persists it.
func Capture(ctx context.Context, st *store.Store, label string) (*store.GraphSnapshot, error) {
	log := logging.Get(logging.CategoryDiff)
	q := st.Q()

	doc, err := liveGraphDoc(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("capturing live graph state: %w", err)
	}

	nodesJSON, edgesJSON, err := encodeGraphDoc(doc)
	if err != nil {
		return nil, err
	}

	snap := store.GraphSnapshot{
		Label:        label,
		CreatedAt:    time.Now().UTC(),
		NodesJSON:    nodesJSON,
		EdgesJSON:    edgesJSON,
		SymbolsCount: doc.symbolsCount,
	}
	if err := store.InsertSnapshot(ctx, q, snap); err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}

	log.Info("captured snapshot %s: %d nodes, %d edges, %d symbols", snap.ID, len(doc.nodes), len(doc.edges), doc.symbolsCount)
	return &snap, nil
}

// DiffAgainstLive compares a previously captured snapshot against the
// current live store state.
func DiffAgainstLive(ctx context.Context, st *store.Store, snapshotID string) (*Diff, error) {
	q := st.Q()

	snap, err := store.GetSnapshot(ctx, q, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %s: %w", snapshotID, err)
	}
	prev, err := decodeGraphDoc(snap.NodesJSON, snap.EdgesJSON, snap.SymbolsCount)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", snapshotID, err)
	}

	current, err := liveGraphDoc(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("capturing live graph state: %w", err)
	}

	label := snap.Label
	if label == "" {
		label = snap.ID
	}
	return classify(label, prev, current), nil
}

// DiffSnapshots compares two previously captured snapshots, oldID then newID.
func DiffSnapshots(ctx context.Context, st *store.Store, oldID, newID string) (*Diff, error) {
	q := st.Q()

	oldSnap, err := store.GetSnapshot(ctx, q, oldID)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %s: %w", oldID, err)
	}
	newSnap, err := store.GetSnapshot(ctx, q, newID)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %s: %w", newID, err)
	}

	oldDoc, err := decodeGraphDoc(oldSnap.NodesJSON, oldSnap.EdgesJSON, oldSnap.SymbolsCount)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", oldID, err)
	}
	newDoc, err := decodeGraphDoc(newSnap.NodesJSON, newSnap.EdgesJSON, newSnap.SymbolsCount)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", newID, err)
	}

	label := oldSnap.Label
	if label == "" {
		label = oldSnap.ID
	}
	return classify(label, oldDoc, newDoc), nil
}

// classify implements the node/edge change classifier shared by every
// diff entry point (spec §4.J): a node is added/removed/changed (summary,
// kind, source, or tag-set difference), an edge is added/removed, and
// symbols_added/removed is the after-vs-before delta in total symbol count.
func classify(sinceLabel string, before, after *graphDoc) *Diff {
	diff := &Diff{SinceLabel: sinceLabel}

	allRefIDs := map[string]bool{}
	for refID := range before.nodes {
		allRefIDs[refID] = true
	}
	for refID := range after.nodes {
		allRefIDs[refID] = true
	}
	var sortedRefIDs []string
	for refID := range allRefIDs {
		sortedRefIDs = append(sortedRefIDs, refID)
	}
	sort.Strings(sortedRefIDs)

	for _, refID := range sortedRefIDs {
		beforeNode, inBefore := before.nodes[refID]
		afterNode, inAfter := after.nodes[refID]

		switch {
		case inAfter && !inBefore:
			diff.Nodes = append(diff.Nodes, NodeChange{RefID: refID, Kind: afterNode.Kind, ChangeType: "added"})
		case inBefore && !inAfter:
			diff.Nodes = append(diff.Nodes, NodeChange{RefID: refID, Kind: beforeNode.Kind, ChangeType: "removed"})
		case inBefore && inAfter:
			if nodeChanged(beforeNode, afterNode) {
				diff.Nodes = append(diff.Nodes, NodeChange{
					RefID: refID, Kind: afterNode.Kind, ChangeType: "changed",
					OldSummary: beforeNode.Summary, NewSummary: afterNode.Summary,
				})
			}
		}
	}

	var addedEdges, removedEdges []edgeKey
	for k := range after.edges {
		if !before.edges[k] {
			addedEdges = append(addedEdges, k)
		}
	}
	for k := range before.edges {
		if !after.edges[k] {
			removedEdges = append(removedEdges, k)
		}
	}
	sortEdgeKeys(addedEdges)
	sortEdgeKeys(removedEdges)

	for _, k := range addedEdges {
		diff.Edges = append(diff.Edges, EdgeChange{Src: k.src, Dst: k.dst, Kind: k.kind, ChangeType: "added"})
	}
	for _, k := range removedEdges {
		diff.Edges = append(diff.Edges, EdgeChange{Src: k.src, Dst: k.dst, Kind: k.kind, ChangeType: "removed"})
	}

	if after.symbolsCount > before.symbolsCount {
		diff.SymbolsAdded = after.symbolsCount - before.symbolsCount
	} else if before.symbolsCount > after.symbolsCount {
		diff.SymbolsRemoved = before.symbolsCount - after.symbolsCount
	}

	return diff
}

func nodeChanged(a, b nodeDoc) bool {
	if a.Kind != b.Kind || a.Summary != b.Summary || a.Source != b.Source {
		return true
	}
	return !sameTagSet(a.Tags, b.Tags)
}

func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortEdgeKeys(keys []edgeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].src != keys[j].src {
			return keys[i].src < keys[j].src
		}
		if keys[i].dst != keys[j].dst {
			return keys[i].dst < keys[j].dst
		}
		return keys[i].kind < keys[j].kind
	})
}

// liveGraphDoc materializes the current store state into a graphDoc.
func liveGraphDoc(ctx context.Context, q store.Queryer) (*graphDoc, error) {
	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	edges, err := store.ListEdges(ctx, q)
	if err != nil {
		return nil, err
	}
	symbolsCount, err := store.CountSymbols(ctx, q)
	if err != nil {
		return nil, err
	}

	doc := &graphDoc{nodes: map[string]nodeDoc{}, edges: map[edgeKey]bool{}, symbolsCount: symbolsCount}
	for _, n := range nodes {
		doc.nodes[n.RefID] = nodeDoc{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary, Source: n.Source, Tags: extractTags(n)}
	}
	for _, e := range edges {
		doc.edges[edgeKey{src: e.SrcRefID, dst: e.DstRefID, kind: string(e.Kind)}] = true
	}
	return doc, nil
}

func extractTags(n store.Node) []string {
	raw, ok := n.Extra["tags"]
	if !ok {
		return nil
	}
	switch tags := raw.(type) {
	case []string:
		return tags
	case []interface{}:
		var out []string
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func encodeGraphDoc(doc *graphDoc) (nodesJSON, edgesJSON string, err error) {
	var nodes []nodeDoc
	for _, n := range doc.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].RefID < nodes[j].RefID })

	var edges []edgeDoc
	for k := range doc.edges {
		edges = append(edges, edgeDoc{Src: k.src, Dst: k.dst, Kind: k.kind})
	}
	sortEdgeDocs(edges)

	nodesData, err := json.Marshal(nodes)
	if err != nil {
		return "", "", fmt.Errorf("encoding nodes: %w", err)
	}
	edgesData, err := json.Marshal(edges)
	if err != nil {
		return "", "", fmt.Errorf("encoding edges: %w", err)
	}
	return string(nodesData), string(edgesData), nil
}

func sortEdgeDocs(edges []edgeDoc) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Src != edges[j].Src {
			return edges[i].Src < edges[j].Src
		}
		if edges[i].Dst != edges[j].Dst {
			return edges[i].Dst < edges[j].Dst
		}
		return edges[i].Kind < edges[j].Kind
	})
}

func decodeGraphDoc(nodesJSON, edgesJSON string, symbolsCount int) (*graphDoc, error) {
	var nodes []nodeDoc
	if err := json.Unmarshal([]byte(nodesJSON), &nodes); err != nil {
		return nil, fmt.Errorf("decoding nodes_json: %w", err)
	}
	var edges []edgeDoc
	if err := json.Unmarshal([]byte(edgesJSON), &edges); err != nil {
		return nil, fmt.Errorf("decoding edges_json: %w", err)
	}

	doc := &graphDoc{nodes: map[string]nodeDoc{}, edges: map[edgeKey]bool{}, symbolsCount: symbolsCount}
	for _, n := range nodes {
		doc.nodes[n.RefID] = n
	}
	for _, e := range edges {
		doc.edges[edgeKey{src: e.Src, dst: e.Dst, kind: e.Kind}] = true
	}
	return doc, nil
}
