package code

import (
	"regexp"
	"strings"
)

// annotationPattern matches beadloom:<key>=<value>[ <key>=<value>...]
// comment markers (spec §6's markdown/code annotation dialect). Values
// stop at whitespace, so a marker line may carry several key=value pairs.
var annotationPattern = regexp.MustCompile(`beadloom:(\S+)`)
var pairPattern = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_-]*)=(.+)$`)

// parseAnnotationComment scans a comment's text for a beadloom: marker and
// returns the key/value pairs it declares. ok is false when no marker is
// present.
func parseAnnotationComment(text string) (map[string]string, bool) {
	idx := strings.Index(text, "beadloom:")
	if idx == -1 {
		return nil, false
	}

	rest := text[idx:]
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, false
	}

	out := map[string]string{}
	first := strings.TrimPrefix(fields[0], "beadloom:")
	if m := pairPattern.FindStringSubmatch(first); m != nil {
		out[m[1]] = m[2]
	}
	for _, f := range fields[1:] {
		if m := pairPattern.FindStringSubmatch(f); m != nil {
			out[m[1]] = m[2]
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// commentMarkerRE strips the leading comment syntax common across this
// package's supported languages (//, #, block-comment delimiters, and a
// leading "*" inside a block comment) so a doc comment's prose survives
// without per-language marker tables.
var commentMarkerRE = regexp.MustCompile(`^\s*(//|#|/\*+|\*+/|\*)\s?`)

// stripCommentMarkers removes comment-syntax noise from a raw comment
// node's text, line by line, for use as plain summary prose.
func stripCommentMarkers(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = commentMarkerRE.ReplaceAllString(l, "")
		l = strings.TrimSuffix(strings.TrimSpace(l), "*/")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, " ")
}

// mergeAnnotations layers b over a, returning a new map. Used to combine a
// symbol's own pending annotation with the file-level (module) annotation
// it falls back to when no symbol-level marker was seen.
func mergeAnnotations(a, b map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
