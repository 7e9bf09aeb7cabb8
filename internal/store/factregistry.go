package store

import (
	"context"
	"fmt"
	"time"
)

// Fact is a row of the fact_registry table: one numeric-or-string fact
// (version string, node/edge count, threshold constant) with the
// component that produced it, so both `docs audit` and `doctor` read the
// same source of truth (SPEC_FULL.md §4 "Fact registry").
type Fact struct {
	Key       string
	Value     string
	Source    string
	UpdatedAt time.Time
}

// UpsertFact records or updates a fact.
func UpsertFact(ctx context.Context, q Queryer, f Fact) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO fact_registry (fact_key, fact_value, source, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fact_key) DO UPDATE SET
			fact_value = excluded.fact_value,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, f.Key, f.Value, f.Source, f.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting fact %s: %w", f.Key, err)
	}
	return nil
}

// ListFacts returns every registered fact, ordered by key.
func ListFacts(ctx context.Context, q Queryer) ([]Fact, error) {
	rows, err := q.QueryContext(ctx, `SELECT fact_key, fact_value, source, updated_at FROM fact_registry ORDER BY fact_key`)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var (
			f         Fact
			updatedAt string
		)
		if err := rows.Scan(&f.Key, &f.Value, &f.Source, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning fact row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			f.UpdatedAt = t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
