package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"beadloom/internal/config"
	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// ExternalFacts carries fact values the cmd/beadloom layer can compute but
// internal/index cannot: cli_command_count needs the cobra command tree and
// mcp_tool_count needs internal/mcpserver, which itself imports
// internal/index, so neither can be computed down here without a cycle.
type ExternalFacts map[string]string

// CollectFacts ports the original indexer's FactRegistry.collect() into
// this store's schema: project version, node/edge/language/test/framework
// counts, the total rule count, any configured extra_facts, and whatever
// the caller supplies via external. Every value is upserted into
// fact_registry so docs audit's cross-check has something to compare
// against (spec §4's "Fact registry" supplemented feature).
func CollectFacts(ctx context.Context, st *store.Store, root string, cfg *config.Config, external ExternalFacts) error {
	log := logging.Get(logging.CategoryIndex)
	q := st.Q()

	facts := map[string]store.Fact{}

	if v, ok := detectVersion(root); ok {
		facts["version"] = store.Fact{Key: "version", Value: v, Source: "manifest"}
	}

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return fmt.Errorf("listing nodes for fact collection: %w", err)
	}
	facts["node_count"] = intFact("node_count", len(nodes))

	edges, err := store.ListEdges(ctx, q)
	if err != nil {
		return fmt.Errorf("listing edges for fact collection: %w", err)
	}
	facts["edge_count"] = intFact("edge_count", len(edges))

	paths, err := store.DistinctSymbolFilePaths(ctx, q)
	if err != nil {
		return fmt.Errorf("listing symbol file paths for fact collection: %w", err)
	}
	facts["language_count"] = intFact("language_count", distinctExtensions(paths))

	testCount, frameworkCount := 0, 0
	for _, n := range nodes {
		if n.Extra == nil {
			continue
		}
		testCount += len(asStringSlice(n.Extra["tests"]))
		if fw, ok := n.Extra["framework"].(string); ok && fw != "" {
			frameworkCount++
		}
	}
	facts["test_count"] = intFact("test_count", testCount)
	facts["framework_count"] = intFact("framework_count", frameworkCount)

	ruleCount, err := store.CountRules(ctx, q)
	if err != nil {
		return fmt.Errorf("counting rules for fact collection: %w", err)
	}
	facts["rule_type_count"] = intFact("rule_type_count", ruleCount)

	for k, v := range cfg.DocsAudit.ExtraFacts {
		facts[k] = store.Fact{Key: k, Value: v, Source: "config"}
	}

	for k, v := range external {
		facts[k] = store.Fact{Key: k, Value: v, Source: "cli"}
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := store.UpsertFact(ctx, q, facts[k]); err != nil {
			return fmt.Errorf("recording fact %s: %w", k, err)
		}
	}

	log.Debug("collected %d fact(s)", len(facts))
	return nil
}

func intFact(key string, n int) store.Fact {
	return store.Fact{Key: key, Value: fmt.Sprintf("%d", n), Source: "store"}
}

func distinctExtensions(paths []string) int {
	seen := map[string]bool{}
	for _, p := range paths {
		ext := filepath.Ext(p)
		if ext == "" {
			continue
		}
		seen[ext] = true
	}
	return len(seen)
}

// detectVersion follows the original registry's priority order:
// pyproject.toml (static [project] version, then Poetry's [tool.poetry]
// version) first, then package.json's "version", then Cargo.toml's
// [package] version. A manifest that is absent or fails to parse is
// skipped, same as DeepConfig's manifest readers.
func detectVersion(root string) (string, bool) {
	var pyproject struct {
		Project struct {
			Version string `toml:"version"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(filepath.Join(root, "pyproject.toml"), &pyproject); err == nil {
		if pyproject.Project.Version != "" {
			return pyproject.Project.Version, true
		}
		if pyproject.Tool.Poetry.Version != "" {
			return pyproject.Tool.Poetry.Version, true
		}
	}

	var pkg struct {
		Version string `json:"version"`
	}
	if readJSON(filepath.Join(root, "package.json"), &pkg) && pkg.Version != "" {
		return pkg.Version, true
	}

	var cargo struct {
		Package struct {
			Version string `toml:"version"`
		} `toml:"package"`
	}
	if _, err := toml.DecodeFile(filepath.Join(root, "Cargo.toml"), &cargo); err == nil && cargo.Package.Version != "" {
		return cargo.Package.Version, true
	}

	return "", false
}
