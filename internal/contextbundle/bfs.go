package contextbundle

import (
	"context"
	"fmt"
	"sort"

	"beadloom/internal/store"
)

type queueItem struct {
	refID string
	depth int
}

type edgeKey struct {
	src, dst, kind string
}

// Subgraph exposes the BFS walk for callers that only need the graph
// projection (the MCP `get_graph` tool) without the rest of a context bundle.
func Subgraph(ctx context.Context, q store.Queryer, focusRefIDs []string, depth, maxNodes int) (Graph, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	nodes, edges, err := bfsSubgraph(ctx, q, focusRefIDs, depth, maxNodes)
	if err != nil {
		return Graph{}, err
	}
	return Graph{Nodes: nodes, Edges: edges}, nil
}

// bfsSubgraph implements spec §4.F's BFS subgraph traversal: the graph is
// walked as an undirected structure, edges are expanded in priority order
// (part_of < touches_entity < uses = implements < depends_on <
// touches_code, ties by insertion order), and the walk from any node stops
// once depth levels below the focus set have been reached or max_nodes
// nodes have been visited.
func bfsSubgraph(ctx context.Context, q store.Queryer, focusRefIDs []string, depth, maxNodes int) ([]GraphNode, []GraphEdge, error) {
	visited := map[string]bool{}
	var nodes []GraphNode
	var edges []GraphEdge
	seenEdges := map[edgeKey]bool{}

	var queue []queueItem
	for _, rid := range focusRefIDs {
		if visited[rid] || len(visited) >= maxNodes {
			continue
		}
		n, err := store.GetNode(ctx, q, rid)
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, nil, fmt.Errorf("fetching focus node %s: %w", rid, err)
		}
		visited[rid] = true
		nodes = append(nodes, GraphNode{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary})
		queue = append(queue, queueItem{refID: rid, depth: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}

		outgoing, incoming, err := store.EdgesTouching(ctx, q, current.refID)
		if err != nil {
			return nil, nil, fmt.Errorf("listing edges touching %s: %w", current.refID, err)
		}

		type neighbor struct {
			id       string
			src, dst string
			kind     store.EdgeKind
		}
		var neighbors []neighbor
		for _, e := range outgoing {
			neighbors = append(neighbors, neighbor{id: e.DstRefID, src: e.SrcRefID, dst: e.DstRefID, kind: e.Kind})
		}
		for _, e := range incoming {
			neighbors = append(neighbors, neighbor{id: e.SrcRefID, src: e.SrcRefID, dst: e.DstRefID, kind: e.Kind})
		}
		sort.SliceStable(neighbors, func(i, j int) bool {
			return neighbors[i].kind.Priority() < neighbors[j].kind.Priority()
		})

		for _, nb := range neighbors {
			key := edgeKey{src: nb.src, dst: nb.dst, kind: string(nb.kind)}
			if !seenEdges[key] {
				seenEdges[key] = true
				edges = append(edges, GraphEdge{Src: nb.src, Dst: nb.dst, Kind: string(nb.kind)})
			}

			if visited[nb.id] {
				continue
			}
			if len(visited) >= maxNodes {
				break
			}

			n, err := store.GetNode(ctx, q, nb.id)
			if err != nil {
				if err == store.ErrNotFound {
					continue
				}
				return nil, nil, fmt.Errorf("fetching neighbor node %s: %w", nb.id, err)
			}
			visited[nb.id] = true
			nodes = append(nodes, GraphNode{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary})
			queue = append(queue, queueItem{refID: nb.id, depth: current.depth + 1})
		}
	}

	return nodes, edges, nil
}
