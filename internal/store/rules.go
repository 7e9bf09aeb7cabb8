package store

import (
	"context"
	"fmt"
)

// RuleType is the fixed vocabulary for rules.rule_type (spec §3/§4.H).
type RuleType string

const (
	RuleTypeDeny    RuleType = "deny"
	RuleTypeRequire RuleType = "require"
)

// Severity is the fixed vocabulary for rules.severity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule is a row of the rules table. RuleJSON carries the matcher payload
// (deny: from/to; require: for/has_edge_to/edge_kind) opaquely — the
// rules package owns its shape and (de)serializes it.
type Rule struct {
	Name        string
	RuleType    RuleType
	Description string
	Severity    Severity
	RuleJSON    string
	Enabled     bool
}

// ReplaceRules deletes every existing rule and inserts the given set,
// inside the caller's transaction. The rules file is reloaded in full on
// every `lint`/`reindex` invocation (spec §4.H: loaded from a versioned
// YAML file), so a wholesale replace matches the file's authority.
func ReplaceRules(ctx context.Context, q Queryer, rules []Rule) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clearing rules: %w", err)
	}
	for _, r := range rules {
		enabled := 0
		if r.Enabled {
			enabled = 1
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO rules (name, rule_type, description, severity, rule_json, enabled)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.Name, string(r.RuleType), r.Description, string(r.Severity), r.RuleJSON, enabled)
		if err != nil {
			return fmt.Errorf("inserting rule %s: %w", r.Name, err)
		}
	}
	return nil
}

// ListEnabledRules returns every rule with enabled=1, ordered by name.
func ListEnabledRules(ctx context.Context, q Queryer) ([]Rule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, rule_type, description, severity, rule_json, enabled
		FROM rules WHERE enabled = 1 ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing enabled rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var (
			r        Rule
			ruleType string
			severity string
			enabled  int
		)
		if err := rows.Scan(&r.Name, &ruleType, &r.Description, &severity, &r.RuleJSON, &enabled); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		r.RuleType = RuleType(ruleType)
		r.Severity = Severity(severity)
		r.Enabled = enabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRules returns the total number of rows in the rules table,
// regardless of enabled state — the fact registry's rule_type_count
// records this raw count, not a distinct-type tally.
func CountRules(ctx context.Context, q Queryer) (int, error) {
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rules: %w", err)
	}
	return n, nil
}
