// Package docs implements beadloom's Markdown doc chunker (component C):
// splitting a file into ordered, classified chunks linked to graph nodes.
package docs

import (
	"strings"

	"beadloom/internal/store"
)

// maxChunkChars is the cap spec §4.C places on a single chunk's body.
const maxChunkChars = 2000

// Chunk is an in-memory chunk, ready to be persisted via
// store.ReplaceChunksForDoc.
type Chunk struct {
	ChunkIndex int
	Heading    string
	Section    store.SectionKind
	Body       string
}

// classificationTable is the fixed, case-insensitive substring match spec
// §4.C.4 specifies. Order matters only in that each entry is checked in
// turn; the first substring match wins.
var classificationTable = []struct {
	substrings []string
	section    store.SectionKind
}{
	{[]string{"business rules", "specification", "requirements"}, store.SectionSpec},
	{[]string{"invariants", "constraints"}, store.SectionInvariants},
	{[]string{"limits"}, store.SectionConstraints},
	{[]string{"api", "rest", "route"}, store.SectionAPI},
	{[]string{"test"}, store.SectionTests},
}

// classifySection implements spec §4.C.4's heading classification table.
func classifySection(heading string) store.SectionKind {
	lower := strings.ToLower(heading)
	for _, entry := range classificationTable {
		for _, sub := range entry.substrings {
			if strings.Contains(lower, sub) {
				return entry.section
			}
		}
	}
	return store.SectionOther
}

// rawSection is a heading (possibly empty, for the intro) plus its body
// text, before the 2000-char split pass.
type rawSection struct {
	heading string
	body    string
}

// Chunk splits markdown content into the ordered chunk sequence spec
// §4.C describes. It never lexes fenced code blocks for heading markers:
// a "##" line inside a ``` fence is not treated as a section boundary.
func Chunk(content string) []Chunk {
	sections := splitOnH2(content)

	var out []Chunk
	index := 0
	for _, sec := range sections {
		section := classifySection(sec.heading)
		for _, piece := range splitOversized(sec.body) {
			out = append(out, Chunk{
				ChunkIndex: index,
				Heading:    sec.heading,
				Section:    section,
				Body:       piece,
			})
			index++
		}
	}
	return out
}

// splitOnH2 splits content on lines that open a level-2 heading ("## ...").
// Content before the first such heading becomes the intro section with an
// empty heading. Level-3 ("###") headings never split.
func splitOnH2(content string) []rawSection {
	lines := strings.Split(content, "\n")

	var sections []rawSection
	var current *rawSection
	var body []string
	inFence := false

	flush := func() {
		if current != nil {
			current.body = strings.Join(body, "\n")
			sections = append(sections, *current)
		}
		body = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			body = append(body, line)
			continue
		}
		if !inFence && isH2(line) {
			flush()
			heading := strings.TrimSpace(strings.TrimPrefix(trimmed, "##"))
			current = &rawSection{heading: heading}
			continue
		}
		if current == nil {
			current = &rawSection{heading: ""}
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// isH2 reports whether line opens a level-2 heading: "## " but not "### ".
func isH2(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "## ") && trimmed != "##" {
		return false
	}
	return !strings.HasPrefix(trimmed, "###")
}

// splitOversized splits body at paragraph boundaries (double newlines),
// packing consecutive paragraphs into pieces of at most maxChunkChars, per
// spec §4.C.2. A section already within the limit is returned unsplit; a
// single paragraph longer than maxChunkChars is kept whole as one piece.
func splitOversized(body string) []string {
	if len(body) <= maxChunkChars {
		return []string{body}
	}

	paragraphs := strings.Split(body, "\n\n")
	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		candidateLen := current.Len()
		if candidateLen > 0 {
			candidateLen += len("\n\n")
		}
		candidateLen += len(p)

		if candidateLen > maxChunkChars && current.Len() > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	if len(pieces) == 0 {
		return []string{body}
	}
	return pieces
}
