package rules

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	require.NoError(t, logging.Initialize(t.TempDir(), logging.LevelError, false))
	s, err := store.Open(filepath.Join(t.TempDir(), "beadloom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLintDenyRuleFlagsResolvedCrossModuleImport(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:billing", Kind: store.KindService, Summary: "Billing", Source: "src/billing",
		Extra: map[string]interface{}{"tags": []string{"billing"}},
	}))
	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:auth", Kind: store.KindService, Summary: "Auth", Source: "src/auth",
		Extra: map[string]interface{}{"tags": []string{"auth"}},
	}))
	require.NoError(t, store.ReplaceImportsForFile(ctx, q, "src/billing/invoice.go", []store.CodeImport{
		{FilePath: "src/billing/invoice.go", LineNumber: 12, ImportPath: "beadloom/auth", ResolvedRefID: "svc:auth"},
	}))
	require.NoError(t, store.ReplaceRules(ctx, q, []store.Rule{
		{
			Name: "billing-no-auth", RuleType: store.RuleTypeDeny, Severity: store.SeverityError, Enabled: true,
			RuleJSON: `{"from":{"tag":"billing"},"to":{"tag":"auth"}}`,
		},
	}))

	result, err := Lint(ctx, s)
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	v := result.Violations[0]
	assert.Equal(t, "billing-no-auth", v.RuleName)
	assert.Equal(t, "src/billing/invoice.go", v.FilePath)
	assert.Equal(t, 12, v.LineNumber)
	assert.Equal(t, "svc:billing", v.FromRefID)
	assert.Equal(t, "svc:auth", v.ToRefID)
}

func TestLintDenyRuleIgnoresNonMatchingImport(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:billing", Kind: store.KindService, Summary: "Billing", Source: "src/billing",
		Extra: map[string]interface{}{"tags": []string{"billing"}},
	}))
	require.NoError(t, store.UpsertNode(ctx, q, store.Node{
		RefID: "svc:reporting", Kind: store.KindService, Summary: "Reporting", Source: "src/reporting",
	}))
	require.NoError(t, store.ReplaceImportsForFile(ctx, q, "src/billing/invoice.go", []store.CodeImport{
		{FilePath: "src/billing/invoice.go", LineNumber: 3, ImportPath: "beadloom/reporting", ResolvedRefID: "svc:reporting"},
	}))
	require.NoError(t, store.ReplaceRules(ctx, q, []store.Rule{
		{
			Name: "billing-no-auth", RuleType: store.RuleTypeDeny, Severity: store.SeverityError, Enabled: true,
			RuleJSON: `{"from":{"tag":"billing"},"to":{"tag":"auth"}}`,
		},
	}))

	result, err := Lint(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestLintRequireRuleFlagsMissingEdge(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "adr:001", Kind: store.KindADR, Summary: "Auth decision"}))
	require.NoError(t, store.ReplaceRules(ctx, q, []store.Rule{
		{
			Name: "service-has-adr", RuleType: store.RuleTypeRequire, Severity: store.SeverityWarning, Enabled: true,
			RuleJSON: `{"for":{"kind":"service"},"has_edge_to":{"kind":"adr"},"edge_kind":"part_of"}`,
		},
	}))

	result, err := Lint(ctx, s)
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "svc:auth", result.Violations[0].FromRefID)
	assert.Equal(t, store.SeverityWarning, result.Violations[0].Severity)
}

func TestLintRequireRuleSatisfiedWhenEdgeExists(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "adr:001", Kind: store.KindADR, Summary: "Auth decision"}))
	require.NoError(t, store.UpsertEdge(ctx, q, store.Edge{SrcRefID: "svc:auth", DstRefID: "adr:001", Kind: store.EdgeKindPartOf}))
	require.NoError(t, store.ReplaceRules(ctx, q, []store.Rule{
		{
			Name: "service-has-adr", RuleType: store.RuleTypeRequire, Severity: store.SeverityWarning, Enabled: true,
			RuleJSON: `{"for":{"kind":"service"},"has_edge_to":{"kind":"adr"},"edge_kind":"part_of"}`,
		},
	}))

	result, err := Lint(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestLintDisabledRuleIsNotEvaluated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.UpsertNode(ctx, q, store.Node{RefID: "svc:auth", Kind: store.KindService, Summary: "Auth"}))
	require.NoError(t, store.ReplaceRules(ctx, q, []store.Rule{
		{
			Name: "disabled-rule", RuleType: store.RuleTypeRequire, Severity: store.SeverityError, Enabled: false,
			RuleJSON: `{"for":{"kind":"service"},"has_edge_to":{"kind":"adr"}}`,
		},
	}))

	result, err := Lint(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
	assert.Equal(t, 0, result.RulesEvaluated)
}

func TestLintInvalidRuleJSONIsConfigError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	q := s.Q()

	require.NoError(t, store.ReplaceRules(ctx, q, []store.Rule{
		{Name: "broken", RuleType: store.RuleTypeDeny, Severity: store.SeverityError, Enabled: true, RuleJSON: `not json`},
	}))

	_, err := Lint(ctx, s)
	require.Error(t, err)
}
