package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SectionKind is the fixed vocabulary for chunks.section (spec §3/§4.C).
type SectionKind string

const (
	SectionSpec        SectionKind = "spec"
	SectionInvariants  SectionKind = "invariants"
	SectionAPI         SectionKind = "api"
	SectionTests       SectionKind = "tests"
	SectionConstraints SectionKind = "constraints"
	SectionOther       SectionKind = "other"
)

// sectionPriority implements spec §4.F's chunk ordering:
// "spec → invariants → constraints → api → tests → other".
var sectionPriority = map[SectionKind]int{
	SectionSpec:        0,
	SectionInvariants:  1,
	SectionConstraints: 2,
	SectionAPI:         3,
	SectionTests:       4,
	SectionOther:       5,
}

// Priority returns s's rank in the chunk-selection ordering.
func (s SectionKind) Priority() int {
	if p, ok := sectionPriority[s]; ok {
		return p
	}
	return len(sectionPriority)
}

// Chunk is a row of the chunks table.
type Chunk struct {
	ID         int64
	DocID      int64
	ChunkIndex int
	Heading    string
	Section    SectionKind
	Body       string
	NodeRefID  string // empty means NULL
}

// ReplaceChunksForDoc deletes every existing chunk for docID and inserts
// the given set, inside the caller's transaction. Chunks are fully
// rewritten on any reindex pass that touches their owning doc (spec §3
// Lifecycles).
func ReplaceChunksForDoc(ctx context.Context, q Queryer, docID int64, chunks []Chunk) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("clearing chunks for doc %d: %w", docID, err)
	}
	for _, c := range chunks {
		var nodeRef sql.NullString
		if c.NodeRefID != "" {
			nodeRef = sql.NullString{String: c.NodeRefID, Valid: true}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO chunks (doc_id, chunk_index, heading, section, body, node_ref_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, docID, c.ChunkIndex, c.Heading, string(c.Section), c.Body, nodeRef)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of doc %d: %w", c.ChunkIndex, docID, err)
		}
	}
	return nil
}

// ChunksForRefIDs returns every chunk belonging to a doc linked to one of
// refIDs, ordered by section priority then chunk_index (spec §4.F).
func ChunksForRefIDs(ctx context.Context, q Queryer, refIDs []string) ([]Chunk, error) {
	if len(refIDs) == 0 {
		return nil, nil
	}
	query, args := inClause(`
		SELECT c.id, c.doc_id, c.chunk_index, c.heading, c.section, c.body, c.node_ref_id
		FROM chunks c
		JOIN docs d ON d.id = c.doc_id
		WHERE d.ref_id IN (`, refIDs, `)`)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for ref ids: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			c       Chunk
			section string
			nodeRef sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.Heading, &section, &c.Body, &nodeRef); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		c.Section = SectionKind(section)
		if nodeRef.Valid {
			c.NodeRefID = nodeRef.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortChunksBySectionThenIndex(out)
	return out, nil
}

func sortChunksBySectionThenIndex(chunks []Chunk) {
	for i := 1; i < len(chunks); i++ {
		j := i
		for j > 0 && less(chunks[j], chunks[j-1]) {
			chunks[j-1], chunks[j] = chunks[j], chunks[j-1]
			j--
		}
	}
}

func less(a, b Chunk) bool {
	if a.Section.Priority() != b.Section.Priority() {
		return a.Section.Priority() < b.Section.Priority()
	}
	return a.ChunkIndex < b.ChunkIndex
}

// TruncateChunks removes every chunk row. Used by full reindex.
func TruncateChunks(ctx context.Context, q Queryer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("truncating chunks: %w", err)
	}
	return nil
}
