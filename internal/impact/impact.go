// Package impact implements beadloom's bidirectional impact analyzer
// (component I): an upstream/downstream BFS from a target node, plus
// aggregated dependent/coverage metrics.
package impact

import (
	"context"
	"fmt"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

const (
	DefaultDepth    = 3
	DefaultMaxNodes = 50
)

// NodeInfo is a minimal node projection.
type NodeInfo struct {
	RefID   string `json:"ref_id"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// TreeNode is one entry of an upstream/downstream tree: the edge that led
// to it and its own subtree.
type TreeNode struct {
	RefID    string     `json:"ref_id"`
	Kind     string     `json:"kind"`
	Summary  string     `json:"summary"`
	EdgeKind string     `json:"edge_kind"`
	Children []TreeNode `json:"children"`
}

// Summary is the aggregated impact metrics (spec §4.I).
type Summary struct {
	DownstreamDirect     int     `json:"downstream_direct"`
	DownstreamTransitive int     `json:"downstream_transitive"`
	DocCoverage          float64 `json:"doc_coverage"`
	StaleCount           int     `json:"stale_count"`
}

// Result is the complete output of an impact analysis.
type Result struct {
	Node       NodeInfo   `json:"node"`
	Upstream   []TreeNode `json:"upstream"`
	Downstream []TreeNode `json:"downstream"`
	Impact     Summary    `json:"impact"`
}

// Options bounds a BFS traversal.
type Options struct {
	Depth    int
	MaxNodes int
}

func (o Options) withDefaults() Options {
	if o.Depth <= 0 {
		o.Depth = DefaultDepth
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	return o
}

// NotFoundError is returned when refID does not exist, carrying a
// suggestion list (spec §4.F's suggest-on-miss algorithm, reused here).
type NotFoundError struct {
	RefID       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%q not found", e.RefID)
	}
	return fmt.Sprintf("%q not found (did you mean: %v?)", e.RefID, e.Suggestions)
}

const (
	directionUpstream   = "upstream"
	directionDownstream = "downstream"
)

// Analyze runs a full impact analysis on refID: upstream tree (outgoing
// edges), downstream tree (incoming edges), and the aggregated summary.
func Analyze(ctx context.Context, st *store.Store, refID string, opts Options) (*Result, error) {
	log := logging.Get(logging.CategoryImpact)
	opts = opts.withDefaults()
	q := st.Q()

	n, err := store.GetNode(ctx, q, refID)
	if err != nil {
		if err == store.ErrNotFound {
			suggestions, sErr := store.SuggestRefIDs(ctx, q, refID)
			if sErr != nil {
				return nil, sErr
			}
			return nil, &NotFoundError{RefID: refID, Suggestions: suggestions}
		}
		return nil, fmt.Errorf("fetching node %s: %w", refID, err)
	}

	upstream, err := buildTree(ctx, q, refID, directionUpstream, opts.Depth, opts.MaxNodes)
	if err != nil {
		return nil, fmt.Errorf("building upstream tree: %w", err)
	}
	downstream, err := buildTree(ctx, q, refID, directionDownstream, opts.Depth, opts.MaxNodes)
	if err != nil {
		return nil, fmt.Errorf("building downstream tree: %w", err)
	}

	direct, transitive := countTreeNodes(downstream, 0)
	downstreamRefs := collectRefs(downstream)

	coverage, err := docCoverage(ctx, q, downstreamRefs)
	if err != nil {
		return nil, fmt.Errorf("computing doc coverage: %w", err)
	}
	stale, err := staleCount(ctx, q, downstreamRefs)
	if err != nil {
		return nil, fmt.Errorf("counting stale docs: %w", err)
	}

	log.Debug("impact analysis for %s: %d upstream roots, %d downstream roots", refID, len(upstream), len(downstream))

	return &Result{
		Node:       NodeInfo{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary},
		Upstream:   upstream,
		Downstream: downstream,
		Impact: Summary{
			DownstreamDirect:     direct,
			DownstreamTransitive: transitive,
			DocCoverage:          coverage,
			StaleCount:           stale,
		},
	}, nil
}

type bfsQueueItem struct {
	refID  string
	depth  int
	parent string
	kind   string
}

// buildTree runs a plain (non-subgraph-priority) BFS in one direction,
// recording each edge's kind, and assembles the children-map into a
// recursive tree rooted at (but excluding) startRefID. Mirrors
// why.py's _build_tree/_get_neighbors/_build.
func buildTree(ctx context.Context, q store.Queryer, startRefID, direction string, depth, maxNodes int) ([]TreeNode, error) {
	if depth <= 0 {
		return nil, nil
	}

	visited := map[string]bool{startRefID: true}
	nodeCount := 0

	type childRef struct {
		refID string
		kind  string
	}
	children := map[string][]childRef{}
	cache := map[string]NodeInfo{}

	neighbors, err := neighborsOf(ctx, q, startRefID, direction)
	if err != nil {
		return nil, err
	}

	var queue []bfsQueueItem
	for _, nb := range neighbors {
		if visited[nb.refID] || nodeCount >= maxNodes {
			continue
		}
		visited[nb.refID] = true
		nodeCount++
		queue = append(queue, bfsQueueItem{refID: nb.refID, depth: 1, parent: startRefID, kind: nb.kind})
		children[startRefID] = append(children[startRefID], childRef{refID: nb.refID, kind: nb.kind})
		if err := cacheNode(ctx, q, nb.refID, cache); err != nil {
			return nil, err
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}
		if nodeCount >= maxNodes {
			break
		}

		next, err := neighborsOf(ctx, q, current.refID, direction)
		if err != nil {
			return nil, err
		}
		for _, nb := range next {
			if visited[nb.refID] {
				continue
			}
			if nodeCount >= maxNodes {
				break
			}
			visited[nb.refID] = true
			nodeCount++
			queue = append(queue, bfsQueueItem{refID: nb.refID, depth: current.depth + 1, parent: current.refID, kind: nb.kind})
			children[current.refID] = append(children[current.refID], childRef{refID: nb.refID, kind: nb.kind})
			if err := cacheNode(ctx, q, nb.refID, cache); err != nil {
				return nil, err
			}
		}
	}

	var build func(parentID string) []TreeNode
	build = func(parentID string) []TreeNode {
		var out []TreeNode
		for _, c := range children[parentID] {
			info := cache[c.refID]
			out = append(out, TreeNode{
				RefID: c.refID, Kind: info.Kind, Summary: info.Summary,
				EdgeKind: c.kind, Children: build(c.refID),
			})
		}
		return out
	}

	return build(startRefID), nil
}

type neighbor struct {
	refID string
	kind  string
}

func neighborsOf(ctx context.Context, q store.Queryer, refID, direction string) ([]neighbor, error) {
	outgoing, incoming, err := store.EdgesTouching(ctx, q, refID)
	if err != nil {
		return nil, err
	}
	var out []neighbor
	if direction == directionUpstream {
		for _, e := range outgoing {
			out = append(out, neighbor{refID: e.DstRefID, kind: string(e.Kind)})
		}
	} else {
		for _, e := range incoming {
			out = append(out, neighbor{refID: e.SrcRefID, kind: string(e.Kind)})
		}
	}
	return out, nil
}

func cacheNode(ctx context.Context, q store.Queryer, refID string, cache map[string]NodeInfo) error {
	if _, ok := cache[refID]; ok {
		return nil
	}
	n, err := store.GetNode(ctx, q, refID)
	if err != nil {
		if err == store.ErrNotFound {
			cache[refID] = NodeInfo{RefID: refID}
			return nil
		}
		return err
	}
	cache[refID] = NodeInfo{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary}
	return nil
}

// countTreeNodes returns (direct, transitive): direct is the count of
// depth-0 (immediate) entries, transitive is everything deeper.
func countTreeNodes(trees []TreeNode, depth int) (direct, transitive int) {
	for _, n := range trees {
		if depth == 0 {
			direct++
		} else {
			transitive++
		}
		childDirect, childTransitive := countTreeNodes(n.Children, depth+1)
		direct += childDirect
		transitive += childTransitive
	}
	return direct, transitive
}

func collectRefs(trees []TreeNode) []string {
	seen := map[string]bool{}
	var out []string
	var walk func([]TreeNode)
	walk = func(nodes []TreeNode) {
		for _, n := range nodes {
			if !seen[n.RefID] {
				seen[n.RefID] = true
				out = append(out, n.RefID)
			}
			walk(n.Children)
		}
	}
	walk(trees)
	return out
}

// docCoverage returns the percentage of downstreamRefs with at least one
// linked doc. An empty ref set has 100% coverage (nothing to miss).
func docCoverage(ctx context.Context, q store.Queryer, downstreamRefs []string) (float64, error) {
	if len(downstreamRefs) == 0 {
		return 100.0, nil
	}
	docs, err := store.ListDocsForRefIDs(ctx, q, downstreamRefs)
	if err != nil {
		return 0, err
	}
	covered := map[string]bool{}
	for _, d := range docs {
		covered[d.RefID] = true
	}
	return float64(len(covered)) / float64(len(downstreamRefs)) * 100, nil
}

// staleCount returns the number of stale sync_state rows across
// downstreamRefs.
func staleCount(ctx context.Context, q store.Queryer, downstreamRefs []string) (int, error) {
	count := 0
	for _, refID := range downstreamRefs {
		rows, err := store.ListSyncStateForRefID(ctx, q, refID)
		if err != nil {
			return 0, err
		}
		for _, r := range rows {
			if r.Status == store.SyncStale {
				count++
			}
		}
	}
	return count, nil
}
