package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"beadloom/internal/store"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func severityMark(s store.Severity) string {
	switch s {
	case store.SeverityWarning:
		return warningStyle.Render("!")
	case store.SeverityInfo:
		return dimStyle.Render("i")
	default:
		return errorStyle.Render("✗")
	}
}

// FormatRich renders a human-readable report, one block per violation,
// with a summary line (spec §4.H's "rich" format).
func FormatRich(result *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rules: %d loaded\n", result.RulesEvaluated)
	fmt.Fprintf(&b, "Files: %d scanned, %d imports resolved\n\n", result.FilesScanned, result.ImportsResolved)

	if len(result.Violations) == 0 {
		fmt.Fprintf(&b, "%s No violations found (%d rules evaluated)\n", okStyle.Render("✓"), result.RulesEvaluated)
		return b.String()
	}

	for _, v := range result.Violations {
		fmt.Fprintf(&b, "%s %s\n", severityMark(v.Severity), v.RuleName)
		if v.FilePath != "" {
			loc := v.FilePath
			if v.LineNumber > 0 {
				loc = fmt.Sprintf("%s:%d", loc, v.LineNumber)
			}
			fmt.Fprintf(&b, "  %s → %s\n", loc, v.Message)
		} else {
			fmt.Fprintf(&b, "  %s\n", v.Message)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d violations found (%d rules evaluated)\n", len(result.Violations), result.RulesEvaluated)
	return b.String()
}

type jsonViolation struct {
	RuleName   string `json:"rule_name"`
	RuleType   string `json:"rule_type"`
	Severity   string `json:"severity"`
	FilePath   string `json:"file_path,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
	FromRefID  string `json:"from_ref_id,omitempty"`
	ToRefID    string `json:"to_ref_id,omitempty"`
	Message    string `json:"message"`
}

type jsonResult struct {
	Violations []jsonViolation `json:"violations"`
	Summary    struct {
		RulesEvaluated  int `json:"rules_evaluated"`
		ViolationsCount int `json:"violations_count"`
		FilesScanned    int `json:"files_scanned"`
		ImportsResolved int `json:"imports_resolved"`
	} `json:"summary"`
}

// FormatJSON renders result as a machine-readable JSON envelope.
func FormatJSON(result *Result) (string, error) {
	var out jsonResult
	for _, v := range result.Violations {
		out.Violations = append(out.Violations, jsonViolation{
			RuleName: v.RuleName, RuleType: string(v.RuleType), Severity: string(v.Severity),
			FilePath: v.FilePath, LineNumber: v.LineNumber,
			FromRefID: v.FromRefID, ToRefID: v.ToRefID, Message: v.Message,
		})
	}
	out.Summary.RulesEvaluated = result.RulesEvaluated
	out.Summary.ViolationsCount = len(result.Violations)
	out.Summary.FilesScanned = result.FilesScanned
	out.Summary.ImportsResolved = result.ImportsResolved

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding lint result: %w", err)
	}
	return string(data), nil
}

// FormatPorcelain renders one line per violation:
// rule_name:rule_type:file_path:line:from_ref:to_ref. Empty when there are
// no violations.
func FormatPorcelain(result *Result) string {
	if len(result.Violations) == 0 {
		return ""
	}
	lines := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		line := ""
		if v.LineNumber > 0 {
			line = fmt.Sprintf("%d", v.LineNumber)
		}
		lines = append(lines, fmt.Sprintf("%s:%s:%s:%s:%s:%s",
			v.RuleName, v.RuleType, v.FilePath, line, v.FromRefID, v.ToRefID))
	}
	return strings.Join(lines, "\n")
}
