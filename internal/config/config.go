// Package config loads beadloom's project-level configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DocsAuditConfig controls the docs-audit supplementary feature.
type DocsAuditConfig struct {
	ExcludePaths []string          `yaml:"exclude_paths,omitempty"`
	ExtraFacts   map[string]string `yaml:"extra_facts,omitempty"`
}

// Config is the shape of .beadloom/config.yml. Every section is optional;
// absence is equivalent to the zero value merged onto DefaultConfig.
type Config struct {
	Languages []string        `yaml:"languages,omitempty"`
	ScanPaths []string        `yaml:"scan_paths,omitempty"`
	DocsDir   string          `yaml:"docs_dir,omitempty"`
	DocsAudit DocsAuditConfig `yaml:"docs_audit,omitempty"`

	// Root is not part of the YAML file; it is set by Load to the project
	// root the config was resolved against.
	Root string `yaml:"-"`
}

// DefaultLanguages is the set of languages beadloom indexes when a project
// does not declare `languages:` explicitly.
var DefaultLanguages = []string{
	"go", "python", "javascript", "typescript", "rust",
	"java", "kotlin", "c", "cpp",
}

// DefaultScanPaths is used when a project does not declare `scan_paths:`.
var DefaultScanPaths = []string{"."}

// DefaultDocsDir is the docs root the indexing driver chunks Markdown from
// when a project does not declare `docs_dir:` and the CLI's `--docs-dir`
// flag is not given.
const DefaultDocsDir = "docs"

// DefaultConfig returns a Config with beadloom's built-in defaults. Callers
// overlay a loaded file on top of this, field by field.
func DefaultConfig() *Config {
	return &Config{
		Languages: append([]string(nil), DefaultLanguages...),
		ScanPaths: append([]string(nil), DefaultScanPaths...),
		DocsDir:   DefaultDocsDir,
		DocsAudit: DocsAuditConfig{
			ExtraFacts: map[string]string{},
		},
	}
}

// ConfigPath returns the expected location of the config file under a
// project root (root/.beadloom/config.yml).
func ConfigPath(root string) string {
	return filepath.Join(root, ".beadloom", "config.yml")
}

// Load reads .beadloom/config.yml under root, if present, and merges it onto
// DefaultConfig. A missing file is not an error: absence means defaults.
func Load(root string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Root = root

	path := ConfigPath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(file.Languages) > 0 {
		cfg.Languages = file.Languages
	}
	if len(file.ScanPaths) > 0 {
		cfg.ScanPaths = file.ScanPaths
	}
	if file.DocsDir != "" {
		cfg.DocsDir = file.DocsDir
	}
	if len(file.DocsAudit.ExcludePaths) > 0 {
		cfg.DocsAudit.ExcludePaths = file.DocsAudit.ExcludePaths
	}
	for k, v := range file.DocsAudit.ExtraFacts {
		cfg.DocsAudit.ExtraFacts[k] = v
	}

	return cfg, nil
}

// Save writes cfg to .beadloom/config.yml under root, creating the
// .beadloom directory if needed. Used by `beadloom init`.
func Save(root string, cfg *Config) error {
	dir := filepath.Join(root, ".beadloom")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := ConfigPath(root)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
