// Package initscaffold implements the scaffolding beadloom's `init` CLI
// verb drives: cold-start `.beadloom/` directory creation, project
// language detection, and the built-in directory-naming presets that seed
// a first-cut graph shard for a new project.
package initscaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"beadloom/internal/config"
	"beadloom/internal/graph"
	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// languageMarkers maps a root-level file to the language it implies,
// checked in order so the first match wins on ambiguous projects.
var languageMarkers = []struct {
	file     string
	language string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"setup.py", "python"},
	{"package.json", "javascript"},
	{"tsconfig.json", "typescript"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
}

// DetectLanguage inspects root for a conventional build-manifest file and
// returns the language it implies, or "" when none is found.
func DetectLanguage(root string) string {
	for _, m := range languageMarkers {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			return m.language
		}
	}
	return ""
}

// Preset names a built-in directory-naming convention: a set of top-level
// directory names and the node kind a bootstrap should classify them as.
type Preset struct {
	Name        string
	Description string
	DirKinds    map[string]store.NodeKind
}

// Presets is the built-in preset registry, keyed by name (the `--preset
// NAME` CLI flag).
var Presets = map[string]Preset{
	"monolith": {
		Name:        "monolith",
		Description: "single-repo service with conventional api/models/services subdirectories",
		DirKinds: map[string]store.NodeKind{
			"api":      store.KindFeature,
			"models":   store.KindFeature,
			"services": store.KindService,
			"domains":  store.KindDomain,
		},
	},
	"service": {
		Name:        "service",
		Description: "standalone service repo — no directories are classified; only the project root node is seeded",
		DirKinds:    map[string]store.NodeKind{},
	},
	"library": {
		Name:        "library",
		Description: "library repo — top-level packages become feature nodes",
		DirKinds: map[string]store.NodeKind{
			"pkg":      store.KindFeature,
			"internal": store.KindFeature,
		},
	},
}

// BootstrapResult summarizes what Bootstrap wrote.
type BootstrapResult struct {
	Root           string
	Language       string
	NodesSeeded    int
	ConfigWritten  bool
	GraphShardPath string
	RulesShardPath string
}

// Bootstrap creates the .beadloom/ directory layout under root: a default
// config.yml, an empty rules.yml, and a graph shard seeded from presetName
// (one node per top-level directory the preset recognizes, plus a root
// domain node named after the project directory). presetName may be empty,
// in which case only the root domain node is seeded.
func Bootstrap(root, presetName string, languages []string) (*BootstrapResult, error) {
	log := logging.Get(logging.CategoryIndex)

	dir := filepath.Join(root, ".beadloom")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	graphDir := graph.GraphDir(root)
	if err := os.MkdirAll(graphDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", graphDir, err)
	}

	cfg := config.DefaultConfig()
	cfg.Root = root
	if len(languages) > 0 {
		cfg.Languages = languages
	}
	if err := config.Save(root, cfg); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	projectName := filepath.Base(root)
	rootRefID := "domain:" + projectName

	nodes := []graph.NodeDoc{{
		RefID:   rootRefID,
		Kind:    string(store.KindDomain),
		Summary: fmt.Sprintf("%s project root", projectName),
	}}

	if presetName != "" {
		preset, ok := Presets[presetName]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", presetName)
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
		var dirNames []string
		for _, e := range entries {
			if e.IsDir() {
				dirNames = append(dirNames, e.Name())
			}
		}
		sort.Strings(dirNames)
		for _, name := range dirNames {
			kind, matched := preset.DirKinds[name]
			if !matched {
				continue
			}
			refID := fmt.Sprintf("%s:%s", kind, name)
			nodes = append(nodes, graph.NodeDoc{
				RefID:   refID,
				Kind:    string(kind),
				Summary: fmt.Sprintf("%s (seeded by preset %q)", name, presetName),
				Source:  name,
			})
		}
	}

	shard := struct {
		Nodes []graph.NodeDoc `yaml:"nodes"`
	}{Nodes: nodes}

	data, err := yaml.Marshal(shard)
	if err != nil {
		return nil, fmt.Errorf("encoding seed shard: %w", err)
	}
	shardPath := filepath.Join(graphDir, "services.yml")
	if err := os.WriteFile(shardPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", shardPath, err)
	}

	rulesPath := filepath.Join(graphDir, "rules.yml")
	if _, err := os.Stat(rulesPath); os.IsNotExist(err) {
		seed := "version: 1\nrules: []\n"
		if err := os.WriteFile(rulesPath, []byte(seed), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", rulesPath, err)
		}
	}

	language := DetectLanguage(root)
	log.Info("bootstrapped %s (preset=%q, language=%s, nodes=%d)", root, presetName, language, len(nodes))

	return &BootstrapResult{
		Root:           root,
		Language:       language,
		NodesSeeded:    len(nodes),
		ConfigWritten:  true,
		GraphShardPath: shardPath,
		RulesShardPath: rulesPath,
	}, nil
}

// ImportGraph copies every *.yml/*.yaml shard from importDir's own
// .beadloom/_graph/ directory (or, if that doesn't exist, importDir
// itself) into root's .beadloom/_graph/, skipping files that would
// overwrite an existing shard of the same name.
func ImportGraph(root, importDir string) (int, error) {
	src := filepath.Join(importDir, ".beadloom", "_graph")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		src = importDir
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", src, err)
	}

	dstDir := graph.GraphDir(root)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dstDir, err)
	}

	imported := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		dstPath := filepath.Join(dstDir, e.Name())
		if _, err := os.Stat(dstPath); err == nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			return imported, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		if err := os.WriteFile(dstPath, data, 0o644); err != nil {
			return imported, fmt.Errorf("writing %s: %w", dstPath, err)
		}
		imported++
	}
	return imported, nil
}
