package docs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beadloom/internal/store"
)

func TestChunkIntroSectionHasEmptyHeading(t *testing.T) {
	chunks := Chunk("intro text\n\n## First\nbody\n")
	require.Len(t, chunks, 2)
	assert.Equal(t, "", chunks[0].Heading)
	assert.Equal(t, "First", chunks[1].Heading)
}

func TestChunkSplitsOnH2(t *testing.T) {
	content := "## One\nbody one\n## Two\nbody two\n"
	chunks := Chunk(content)
	require.Len(t, chunks, 2)
	assert.Equal(t, "One", chunks[0].Heading)
	assert.Contains(t, chunks[0].Body, "body one")
	assert.Equal(t, "Two", chunks[1].Heading)
	assert.Contains(t, chunks[1].Body, "body two")
}

func TestChunkH3NeverSplits(t *testing.T) {
	content := "## Section\nintro\n### Sub\nmore text\n### Sub2\neven more\n"
	chunks := Chunk(content)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Body, "### Sub")
	assert.Contains(t, chunks[0].Body, "### Sub2")
}

func TestChunkFenceAwareHeadingInsideFenceDoesNotSplit(t *testing.T) {
	content := "## Real Heading\n```\n## not a heading\ncode here\n```\nafter fence\n"
	chunks := Chunk(content)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Real Heading", chunks[0].Heading)
	assert.Contains(t, chunks[0].Body, "## not a heading")
	assert.Contains(t, chunks[0].Body, "after fence")
}

func TestChunkClassifiesSectionsByHeading(t *testing.T) {
	cases := []struct {
		heading string
		want    store.SectionKind
	}{
		{"Business Rules", store.SectionSpec},
		{"Specification", store.SectionSpec},
		{"Requirements", store.SectionSpec},
		{"Invariants", store.SectionInvariants},
		{"Constraints", store.SectionInvariants},
		{"Rate Limits", store.SectionConstraints},
		{"REST API", store.SectionAPI},
		{"Routes", store.SectionAPI},
		{"Tests", store.SectionTests},
		{"Overview", store.SectionOther},
	}
	for _, c := range cases {
		content := "## " + c.heading + "\nbody\n"
		chunks := Chunk(content)
		require.Len(t, chunks, 1, c.heading)
		assert.Equal(t, c.want, chunks[0].Section, c.heading)
	}
}

func TestChunkSplitsOversizedSectionAtParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("word ", 100) // well under 2000 chars alone
	content := "## Big\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para + "\n"

	chunks := Chunk(content)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Body), maxChunkChars)
	}

	var rebuilt []string
	for _, c := range chunks {
		rebuilt = append(rebuilt, c.Body)
	}
	assert.Equal(t, strings.Count(strings.Join(rebuilt, "\n\n"), "word"), strings.Count(content, "word"))
}

func TestChunkIndexesAreSequentialFromZero(t *testing.T) {
	content := "## One\nbody\n## Two\nbody\n## Three\nbody\n"
	chunks := Chunk(content)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}
