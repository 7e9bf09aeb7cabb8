// Package graph loads beadloom's hand-authored architecture graph from
// YAML shards under .beadloom/_graph/ (component B).
package graph

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// NodeDoc is the on-disk shape of a node entry in a graph YAML shard.
type NodeDoc struct {
	RefID   string                 `yaml:"ref_id"`
	Kind    string                 `yaml:"kind"`
	Summary string                 `yaml:"summary"`
	Source  string                 `yaml:"source,omitempty"`
	Docs    []string               `yaml:"docs,omitempty"`
	Tags    []string               `yaml:"tags,omitempty"`
	Extra   map[string]interface{} `yaml:",inline"`
}

// EdgeDoc is the on-disk shape of an edge entry.
type EdgeDoc struct {
	Src  string `yaml:"src"`
	Dst  string `yaml:"dst"`
	Kind string `yaml:"kind"`
}

// shardFile is one *.yml file's top-level shape.
type shardFile struct {
	Nodes []NodeDoc `yaml:"nodes"`
	Edges []EdgeDoc `yaml:"edges"`
}

// LoadResult summarizes a graph load (spec §4.B: "counts ... and parallel
// lists of warnings and errors").
type LoadResult struct {
	NodesLoaded int
	EdgesLoaded int
	Warnings    []string
	Errors      []string
}

// GraphDir is the conventional location of graph shards under a project root.
func GraphDir(root string) string {
	return filepath.Join(root, ".beadloom", "_graph")
}

// Load reads every *.yml/*.yaml shard under dir in lexicographic filename
// order (spec §5 "Ordering"), validates the combined node/edge set, and
// upserts it into st inside a single transaction (spec §4.B: "either the
// full set ... is visible, or none").
func Load(ctx context.Context, st *store.Store, dir string) (*LoadResult, error) {
	log := logging.Get(logging.CategoryGraph)

	paths, err := shardPaths(dir)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{}
	var rawNodes []NodeDoc
	var rawEdges []EdgeDoc
	seenRefIDs := map[string]bool{}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		var sh shardFile
		if err := yaml.Unmarshal(data, &sh); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: parsing YAML: %v", path, err))
			continue
		}

		for _, n := range sh.Nodes {
			if n.RefID == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: node missing ref_id", path))
				continue
			}
			if n.Kind == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: node %s missing kind", path, n.RefID))
				continue
			}
			if seenRefIDs[n.RefID] {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: duplicate ref_id %q (ignored)", path, n.RefID))
				continue
			}
			seenRefIDs[n.RefID] = true
			rawNodes = append(rawNodes, n)
		}
		rawEdges = append(rawEdges, sh.Edges...)
	}

	validRefs := map[string]bool{}
	for _, n := range rawNodes {
		validRefs[n.RefID] = true
	}

	var validEdges []EdgeDoc
	for _, e := range rawEdges {
		if !validRefs[e.Src] || !validRefs[e.Dst] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("edge %s-%s-%s references missing node (skipped)", e.Src, e.Kind, e.Dst))
			continue
		}
		validEdges = append(validEdges, e)
	}

	if len(rawNodes) == 0 && len(validEdges) == 0 {
		log.Info("no nodes or edges to load from %s", dir)
		return result, nil
	}

	err = st.WithTx(ctx, func(tx *sql.Tx) error {
		for _, n := range rawNodes {
			node := store.Node{
				RefID:   n.RefID,
				Kind:    store.NodeKind(n.Kind),
				Summary: n.Summary,
				Source:  n.Source,
				Extra:   buildExtra(n),
			}
			if err := store.UpsertNode(ctx, tx, node); err != nil {
				return fmt.Errorf("upserting node %s: %w", n.RefID, err)
			}
		}
		for _, e := range validEdges {
			if err := store.UpsertEdge(ctx, tx, store.Edge{SrcRefID: e.Src, DstRefID: e.Dst, Kind: store.EdgeKind(e.Kind)}); err != nil {
				return fmt.Errorf("upserting edge %s-%s-%s: %w", e.Src, e.Kind, e.Dst, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	result.NodesLoaded = len(rawNodes)
	result.EdgesLoaded = len(validEdges)
	log.Info("loaded %d nodes, %d edges from %d shards", result.NodesLoaded, result.EdgesLoaded, len(paths))
	return result, nil
}

// buildExtra merges docs/tags and any unrecognized inline keys into the
// node's extra payload, per spec §4.B's "unknown top-level keys ...
// preserved into the node's extra payload".
func buildExtra(n NodeDoc) map[string]interface{} {
	extra := map[string]interface{}{}
	for k, v := range n.Extra {
		extra[k] = v
	}
	if len(n.Docs) > 0 {
		extra["docs"] = n.Docs
	}
	if len(n.Tags) > 0 {
		extra["tags"] = n.Tags
	}
	return extra
}

func shardPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading graph dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
