// Package rules evaluates beadloom's architecture rules (component H) —
// deny/require matchers over the current graph state.
package rules

import (
	"encoding/json"
	"fmt"

	"beadloom/internal/store"
)

// Matcher selects nodes by ref_id equality, kind equality, or presence of
// a tag in the node's extra["tags"] list (spec §4.H: "a matcher selecting
// nodes by ref_id, kind, or a tag"). Only the fields that are set are
// considered; a matcher matches a node if any set field matches.
type Matcher struct {
	RefID string `json:"ref_id,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Matches reports whether m selects n.
func (m Matcher) Matches(n store.Node) bool {
	if m.RefID != "" && m.RefID == n.RefID {
		return true
	}
	if m.Kind != "" && m.Kind == string(n.Kind) {
		return true
	}
	if m.Tag != "" && nodeHasTag(n, m.Tag) {
		return true
	}
	return false
}

// Empty reports whether m has no selection criteria set.
func (m Matcher) Empty() bool {
	return m.RefID == "" && m.Kind == "" && m.Tag == ""
}

func nodeHasTag(n store.Node, tag string) bool {
	raw, ok := n.Extra["tags"]
	if !ok {
		return false
	}
	switch tags := raw.(type) {
	case []string:
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok && s == tag {
				return true
			}
		}
	}
	return false
}

// DenyRule is the rule_json payload for a store.RuleTypeDeny rule: a
// violation is any resolved cross-module import whose source file
// belongs to a node matching From and whose resolved target matches To.
type DenyRule struct {
	From Matcher `json:"from"`
	To   Matcher `json:"to"`
}

// RequireRule is the rule_json payload for a store.RuleTypeRequire rule:
// a violation is any node matching For with no outgoing edge of EdgeKind
// to a node matching HasEdgeTo. EdgeKind is optional; an empty value
// matches an edge of any kind.
type RequireRule struct {
	For       Matcher        `json:"for"`
	HasEdgeTo Matcher        `json:"has_edge_to"`
	EdgeKind  store.EdgeKind `json:"edge_kind,omitempty"`
}

// DecodeDeny unmarshals r's rule_json as a DenyRule.
func DecodeDeny(r store.Rule) (DenyRule, error) {
	var d DenyRule
	if err := json.Unmarshal([]byte(r.RuleJSON), &d); err != nil {
		return DenyRule{}, fmt.Errorf("decoding deny rule %s: %w", r.Name, err)
	}
	return d, nil
}

// DecodeRequire unmarshals r's rule_json as a RequireRule.
func DecodeRequire(r store.Rule) (RequireRule, error) {
	var req RequireRule
	if err := json.Unmarshal([]byte(r.RuleJSON), &req); err != nil {
		return RequireRule{}, fmt.Errorf("decoding require rule %s: %w", r.Name, err)
	}
	return req, nil
}

// MatchesAnyNode reports whether m selects at least one node among nodes.
func MatchesAnyNode(m Matcher, nodes []store.Node) bool {
	if m.Empty() {
		return false
	}
	for _, n := range nodes {
		if m.Matches(n) {
			return true
		}
	}
	return false
}
