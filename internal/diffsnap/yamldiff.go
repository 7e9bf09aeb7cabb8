package diffsnap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"beadloom/internal/logging"
)

// yamlNodeDoc/yamlEdgeDoc mirror graph.NodeDoc/graph.EdgeDoc's on-disk
// shape. Re-declared locally (rather than imported) because the YAML
// diff, like the rest of this package's classifier, only needs the
// kind/summary/source/tags fields — the same independence diff.py keeps
// from its own loader.py.
type yamlNodeDoc struct {
	RefID   string   `yaml:"ref_id"`
	Kind    string   `yaml:"kind"`
	Summary string   `yaml:"summary"`
	Source  string   `yaml:"source,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
}

type yamlEdgeDoc struct {
	Src  string `yaml:"src"`
	Dst  string `yaml:"dst"`
	Kind string `yaml:"kind"`
}

type yamlShard struct {
	Nodes []yamlNodeDoc `yaml:"nodes"`
	Edges []yamlEdgeDoc `yaml:"edges"`
}

// DiffAgainstRef compares the current on-disk graph YAML shards under
// .beadloom/_graph/ against their state at a git ref (spec §4.J:
// "YAML-based diffing ... reuses the same classifier by parsing the
// stored YAML shards"). Returns an error if ref does not resolve to a
// valid commit in root's repository.
func DiffAgainstRef(ctx context.Context, root, ref string) (*Diff, error) {
	log := logging.Get(logging.CategoryDiff)

	if !validGitRef(ctx, root, ref) {
		return nil, fmt.Errorf("invalid git ref: %q", ref)
	}

	current, err := currentYAMLGraphDoc(root)
	if err != nil {
		return nil, fmt.Errorf("reading current graph YAML: %w", err)
	}

	prev, err := refYAMLGraphDoc(ctx, root, ref)
	if err != nil {
		return nil, fmt.Errorf("reading graph YAML at %s: %w", ref, err)
	}

	log.Debug("yaml diff since %s: %d current nodes, %d ref nodes", ref, len(current.nodes), len(prev.nodes))
	return classify(ref, prev, current), nil
}

func validGitRef(ctx context.Context, root, ref string) bool {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, "git", "rev-parse", "--verify", ref)
	cmd.Dir = root
	return cmd.Run() == nil
}

func graphDir(root string) string {
	return filepath.Join(root, ".beadloom", "_graph")
}

func currentYAMLGraphDoc(root string) (*graphDoc, error) {
	doc := &graphDoc{nodes: map[string]nodeDoc{}, edges: map[edgeKey]bool{}}

	dir := graphDir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yml" || ext == ".yaml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		mergeYAMLShard(doc, data)
	}
	return doc, nil
}

func refYAMLGraphDoc(ctx context.Context, root, ref string) (*graphDoc, error) {
	doc := &graphDoc{nodes: map[string]nodeDoc{}, edges: map[edgeKey]bool{}}

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, "git", "ls-tree", "-r", "--name-only", ref, ".beadloom/_graph/")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		// No graph directory existed at ref; treat as empty rather than an error.
		return doc, nil
	}

	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		path := strings.TrimSpace(line)
		if path == "" || (!strings.HasSuffix(path, ".yml") && !strings.HasSuffix(path, ".yaml")) {
			continue
		}
		content, err := readFileAtRef(ctx, root, ref, path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			mergeYAMLShard(doc, content)
		}
	}
	return doc, nil
}

func readFileAtRef(ctx context.Context, root, ref, relPath string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, "git", "show", fmt.Sprintf("%s:%s", ref, relPath))
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		// File did not exist at ref.
		return nil, nil
	}
	return out, nil
}

func mergeYAMLShard(doc *graphDoc, data []byte) {
	var sh yamlShard
	if err := yaml.Unmarshal(data, &sh); err != nil {
		return
	}
	for _, n := range sh.Nodes {
		if n.RefID == "" {
			continue
		}
		doc.nodes[n.RefID] = nodeDoc{RefID: n.RefID, Kind: n.Kind, Summary: n.Summary, Source: n.Source, Tags: n.Tags}
	}
	for _, e := range sh.Edges {
		if e.Src == "" || e.Dst == "" {
			continue
		}
		doc.edges[edgeKey{src: e.Src, dst: e.Dst, kind: e.Kind}] = true
	}
}
