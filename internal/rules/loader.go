package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// MatcherDoc is the on-disk shape of a matcher block.
type MatcherDoc struct {
	RefID string `yaml:"ref_id,omitempty"`
	Kind  string `yaml:"kind,omitempty"`
	Tag   string `yaml:"tag,omitempty"`
}

func (m MatcherDoc) toMatcher() Matcher {
	return Matcher{RefID: m.RefID, Kind: m.Kind, Tag: m.Tag}
}

// DenyDoc is the on-disk shape of a deny rule's body.
type DenyDoc struct {
	From MatcherDoc `yaml:"from"`
	To   MatcherDoc `yaml:"to"`
}

// RequireDoc is the on-disk shape of a require rule's body.
type RequireDoc struct {
	For       MatcherDoc `yaml:"for"`
	HasEdgeTo MatcherDoc `yaml:"has_edge_to"`
	EdgeKind  string     `yaml:"edge_kind,omitempty"`
}

// RuleDoc is one entry of a rules.yml's top-level rules: list. Exactly one
// of Deny/Require must be set (spec §4.H: "Two kinds").
type RuleDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Severity    string      `yaml:"severity,omitempty"`
	Deny        *DenyDoc    `yaml:"deny,omitempty"`
	Require     *RequireDoc `yaml:"require,omitempty"`
}

// RulesFile is the top-level shape of .beadloom/_graph/rules.yml (spec §6:
// "top-level version: 1 (or 2 with severities) and a rules: list").
type RulesFile struct {
	Version int       `yaml:"version"`
	Rules   []RuleDoc `yaml:"rules"`
}

// ConfigError is returned when a rules file is present but malformed —
// distinct from a lint finding a violation (spec §4.H: "Invalid rule
// configuration is a hard error distinct from violations").
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid rules configuration in %s: %s", e.Path, e.Reason)
}

// Load reads path, validates every entry, and returns the decoded rules in
// file order. A missing file is not an error — it yields an empty, nil-err
// result, matching a project that has not yet adopted any rules.
func Load(path string) ([]store.Rule, error) {
	log := logging.Get(logging.CategoryRules)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("parsing YAML: %v", err)}
	}

	seen := map[string]bool{}
	var out []store.Rule
	for i, rd := range file.Rules {
		if rd.Name == "" {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("rule at index %d missing name", i)}
		}
		if seen[rd.Name] {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("duplicate rule name %q", rd.Name)}
		}
		seen[rd.Name] = true

		if rd.Deny == nil && rd.Require == nil {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("rule %q has neither deny nor require block", rd.Name)}
		}
		if rd.Deny != nil && rd.Require != nil {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("rule %q has both deny and require blocks", rd.Name)}
		}

		severity := store.Severity(rd.Severity)
		if severity == "" {
			severity = store.SeverityError
		}
		if severity != store.SeverityError && severity != store.SeverityWarning && severity != store.SeverityInfo {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("rule %q has unknown severity %q", rd.Name, rd.Severity)}
		}

		r := store.Rule{
			Name:        rd.Name,
			Description: rd.Description,
			Severity:    severity,
			Enabled:     true,
		}

		switch {
		case rd.Deny != nil:
			if rd.Deny.From.toMatcher().Empty() || rd.Deny.To.toMatcher().Empty() {
				return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("rule %q: deny.from and deny.to must each set ref_id, kind, or tag", rd.Name)}
			}
			payload, err := json.Marshal(DenyRule{From: rd.Deny.From.toMatcher(), To: rd.Deny.To.toMatcher()})
			if err != nil {
				return nil, fmt.Errorf("encoding rule %s: %w", rd.Name, err)
			}
			r.RuleType = store.RuleTypeDeny
			r.RuleJSON = string(payload)

		case rd.Require != nil:
			if rd.Require.For.toMatcher().Empty() || rd.Require.HasEdgeTo.toMatcher().Empty() {
				return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("rule %q: require.for and require.has_edge_to must each set ref_id, kind, or tag", rd.Name)}
			}
			edgeKind := store.EdgeKind(rd.Require.EdgeKind)
			payload, err := json.Marshal(RequireRule{For: rd.Require.For.toMatcher(), HasEdgeTo: rd.Require.HasEdgeTo.toMatcher(), EdgeKind: edgeKind})
			if err != nil {
				return nil, fmt.Errorf("encoding rule %s: %w", rd.Name, err)
			}
			r.RuleType = store.RuleTypeRequire
			r.RuleJSON = string(payload)
		}

		out = append(out, r)
	}

	log.Info("loaded %d rules from %s", len(out), path)
	return out, nil
}

// Reload replaces the store's rule set with whatever path currently
// contains, inside the caller's ambient transaction semantics (a whole-file
// replace, matching spec §4.H's "loaded from a versioned YAML file").
func Reload(ctx context.Context, q store.Queryer, path string) ([]store.Rule, error) {
	rs, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := store.ReplaceRules(ctx, q, rs); err != nil {
		return nil, fmt.Errorf("persisting rules: %w", err)
	}
	return rs, nil
}

// RulesPath is the conventional location of the rules file under a project root.
func RulesPath(root string) string {
	return filepath.Join(root, ".beadloom", "_graph", "rules.yml")
}
