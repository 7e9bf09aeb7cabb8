package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/store"
)

func writeRulesFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	rs, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestLoadDenyRule(t *testing.T) {
	path := writeRulesFile(t, `
version: 2
rules:
  - name: billing-no-auth
    description: Billing must not import auth directly
    severity: error
    deny:
      from: {tag: billing}
      to: {tag: auth}
`)
	rs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "billing-no-auth", rs[0].Name)
	assert.Equal(t, store.RuleTypeDeny, rs[0].RuleType)
	assert.Equal(t, store.SeverityError, rs[0].Severity)

	d, err := DecodeDeny(rs[0])
	require.NoError(t, err)
	assert.Equal(t, "billing", d.From.Tag)
	assert.Equal(t, "auth", d.To.Tag)
}

func TestLoadRequireRule(t *testing.T) {
	path := writeRulesFile(t, `
version: 2
rules:
  - name: service-has-adr
    description: Every service needs a decision record
    severity: warning
    require:
      for: {kind: service}
      has_edge_to: {kind: adr}
      edge_kind: part_of
`)
	rs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, store.RuleTypeRequire, rs[0].RuleType)
	assert.Equal(t, store.SeverityWarning, rs[0].Severity)

	req, err := DecodeRequire(rs[0])
	require.NoError(t, err)
	assert.Equal(t, "service", req.For.Kind)
	assert.Equal(t, "adr", req.HasEdgeTo.Kind)
	assert.Equal(t, store.EdgeKindPartOf, req.EdgeKind)
}

func TestLoadDefaultsSeverityToErrorWhenOmitted(t *testing.T) {
	path := writeRulesFile(t, `
version: 1
rules:
  - name: no-severity
    description: legacy v1 rule
    deny:
      from: {kind: service}
      to: {kind: entity}
`)
	rs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, store.SeverityError, rs[0].Severity)
}

func TestLoadRejectsRuleWithBothBlocks(t *testing.T) {
	path := writeRulesFile(t, `
version: 2
rules:
  - name: bad-rule
    description: has both
    deny:
      from: {kind: service}
      to: {kind: entity}
    require:
      for: {kind: service}
      has_edge_to: {kind: entity}
`)
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsRuleWithNeitherBlock(t *testing.T) {
	path := writeRulesFile(t, `
version: 2
rules:
  - name: empty-rule
    description: has neither
`)
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeRulesFile(t, `
version: 2
rules:
  - name: dup
    description: first
    deny:
      from: {kind: service}
      to: {kind: entity}
  - name: dup
    description: second
    deny:
      from: {kind: service}
      to: {kind: entity}
`)
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsUnparseableYAML(t *testing.T) {
	path := writeRulesFile(t, "not: valid: yaml: at: all: [")
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRulesPathJoinsConventionalLocation(t *testing.T) {
	assert.Equal(t, filepath.Join("proj", ".beadloom", "_graph", "rules.yml"), RulesPath("proj"))
}
