package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/store"
)

func sampleResult() *Result {
	return &Result{
		RulesEvaluated:  2,
		FilesScanned:    10,
		ImportsResolved: 25,
		Violations: []Violation{
			{
				RuleName: "billing-no-auth", RuleType: store.RuleTypeDeny, Severity: store.SeverityError,
				FilePath: "src/billing/invoice.go", LineNumber: 12,
				FromRefID: "svc:billing", ToRefID: "svc:auth", Message: "svc:billing imports svc:auth (beadloom/auth)",
			},
		},
	}
}

func TestFormatRichNoViolations(t *testing.T) {
	out := FormatRich(&Result{RulesEvaluated: 3})
	assert.Contains(t, out, "No violations found")
	assert.Contains(t, out, "Rules: 3 loaded")
}

func TestFormatRichWithViolations(t *testing.T) {
	out := FormatRich(sampleResult())
	assert.Contains(t, out, "billing-no-auth")
	assert.Contains(t, out, "src/billing/invoice.go:12")
	assert.Contains(t, out, "1 violations found")
}

func TestFormatJSONRoundTrips(t *testing.T) {
	out, err := FormatJSON(sampleResult())
	require.NoError(t, err)
	assert.Contains(t, out, `"rule_name": "billing-no-auth"`)
	assert.Contains(t, out, `"violations_count": 1`)
}

func TestFormatJSONEmptyViolations(t *testing.T) {
	out, err := FormatJSON(&Result{RulesEvaluated: 1})
	require.NoError(t, err)
	assert.Contains(t, out, `"violations": null`)
}

func TestFormatPorcelainLineShape(t *testing.T) {
	out := FormatPorcelain(sampleResult())
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "billing-no-auth:deny:src/billing/invoice.go:12:svc:billing:svc:auth", lines[0])
}

func TestFormatPorcelainEmptyWhenNoViolations(t *testing.T) {
	out := FormatPorcelain(&Result{RulesEvaluated: 1})
	assert.Equal(t, "", out)
}
