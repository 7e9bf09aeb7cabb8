// Package docsaudit implements beadloom's docs-audit supplementary
// feature: scanning markdown documentation for numeric claims ("9
// languages", "13 MCP tools") and flagging ones that disagree with the
// registered fact values the indexing driver and doctor maintain.
package docsaudit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"beadloom/internal/config"
	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// Mention is one numeric or version claim found in a markdown file.
type Mention struct {
	FactName string
	Value    string
	FilePath string
	Line     int
	Context  string
}

// Mismatch is a Mention whose value disagrees with the registered fact.
type Mismatch struct {
	Mention
	RegisteredValue string
}

// Report is the full result of an audit run.
type Report struct {
	FilesScanned int
	Mentions     []Mention
	Mismatches   []Mismatch
}

// factKeywords maps a registered fact key to the words a mention of it is
// expected to appear near. Single-word keywords match by prefix ("language"
// matches "languages"); multi-word keywords must appear as a consecutive
// run, also by prefix.
var factKeywords = map[string][]string{
	"language_count":    {"language", "lang", "programming language"},
	"mcp_tool_count":    {"mcp", "tool", "server tool"},
	"cli_command_count": {"command", "cli", "subcommand"},
	"rule_type_count":   {"rule type", "rule kind", "rule"},
	"node_count":        {"node", "module", "domain", "component"},
	"edge_count":        {"edge", "dependency", "connection"},
	"test_count":        {"test", "spec", "assertion"},
	"framework_count":   {"framework", "supported framework"},
}

const proximityWindow = 5

var (
	versionRE      = regexp.MustCompile(`\bv?\d+\.\d+\.\d+\b`)
	numberRE       = regexp.MustCompile(`\b\d+\b`)
	wordOrNumberRE = regexp.MustCompile(`[a-zA-Z]+|\d+`)
	boldItalicRE   = regexp.MustCompile(`\*{1,3}|_{1,3}`)

	dateISORE        = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	dateMonthRE      = regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{4}\b`)
	issueHashRE      = regexp.MustCompile(`#\d+`)
	issuePrefixRE    = regexp.MustCompile(`[A-Z]+-\d+`)
	hexColorRE       = regexp.MustCompile(`#[0-9a-fA-F]{3,8}\b`)
	hexLiteralRE     = regexp.MustCompile(`0x[0-9a-fA-F]+\b`)
	versionPinRE     = regexp.MustCompile(`(?:>=|<=|~=|!=|==|\^|[<>])\s*\d+(?:\.\d+)*`)
	versionPinTailRE = regexp.MustCompile(`(?:>=|<=|~=|!=|==|\^|[<>])\s*$`)
	lineRefColonRE   = regexp.MustCompile(`:\d+\b`)
	lineRefWordRE    = regexp.MustCompile(`(?i)\bline\s+\d+\b`)
	lineRefLRE       = regexp.MustCompile(`\bL\d+\b`)
	yearStandaloneRE = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// maskFalsePositives blanks out substrings that would otherwise read as
// numeric claims but aren't: dates, issue IDs, hex literals, version
// pins, line references, and standalone years. Blanking (not deleting)
// preserves column offsets for the regexes applied afterward.
func maskFalsePositives(line string) string {
	blank := func(re *regexp.Regexp, s string) string {
		return re.ReplaceAllStringFunc(s, func(m string) string { return strings.Repeat(" ", len(m)) })
	}
	result := line
	result = blank(dateISORE, result)
	result = blank(dateMonthRE, result)
	result = blank(issueHashRE, result)
	result = blank(issuePrefixRE, result)
	result = blank(hexColorRE, result)
	result = blank(hexLiteralRE, result)
	result = blank(versionPinRE, result)
	result = blank(lineRefColonRE, result)
	result = blank(lineRefWordRE, result)
	result = blank(lineRefLRE, result)
	result = blank(yearStandaloneRE, result)
	return result
}

// ScanFile extracts every version and proximity-matched numeric mention
// from a single markdown file, skipping fenced code blocks.
func ScanFile(path string) ([]Mention, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var mentions []Mention
	inFence := false
	for i, line := range strings.Split(content, "\n") {
		lineNum := i + 1
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		mentions = append(mentions, extractVersions(line, path, lineNum)...)
		mentions = append(mentions, extractNumberMentions(line, path, lineNum)...)
	}
	return mentions, nil
}

func extractVersions(line, path string, lineNum int) []Mention {
	cleaned := maskFalsePositives(line)
	var out []Mention
	for _, loc := range versionRE.FindAllStringIndex(cleaned, -1) {
		prefix := strings.TrimRight(cleaned[:loc[0]], " \t")
		if versionPinTailRE.MatchString(prefix) {
			continue
		}
		out = append(out, Mention{
			FactName: "version",
			Value:    cleaned[loc[0]:loc[1]],
			FilePath: path,
			Line:     lineNum,
			Context:  strings.TrimSpace(line),
		})
	}
	return out
}

func extractNumberMentions(line, path string, lineNum int) []Mention {
	cleaned := maskFalsePositives(line)
	textForWords := boldItalicRE.ReplaceAllString(cleaned, "")

	hasVersion := versionRE.MatchString(cleaned)
	versionSpans := versionRE.FindAllStringIndex(textForWords, -1)

	wordPositions := wordOrNumberRE.FindAllStringIndex(textForWords, -1)

	var out []Mention
	for _, loc := range numberRE.FindAllStringIndex(textForWords, -1) {
		numberStr := textForWords[loc[0]:loc[1]]
		numberVal, err := strconv.Atoi(numberStr)
		if err != nil || numberVal <= 1 {
			continue
		}

		if hasVersion {
			inVersion := false
			for _, v := range versionSpans {
				if v[0] <= loc[0] && loc[0] < v[1] {
					inVersion = true
					break
				}
			}
			if inVersion {
				continue
			}
		}

		numIdx := -1
		for i, wp := range wordPositions {
			if wp[0] == loc[0] && textForWords[wp[0]:wp[1]] == numberStr {
				numIdx = i
				break
			}
		}
		if numIdx == -1 {
			continue
		}

		windowStart := numIdx - proximityWindow
		if windowStart < 0 {
			windowStart = 0
		}
		windowEnd := numIdx + proximityWindow + 1
		if windowEnd > len(wordPositions) {
			windowEnd = len(wordPositions)
		}

		var windowTokens []string
		for _, wp := range wordPositions[windowStart:windowEnd] {
			tok := textForWords[wp[0]:wp[1]]
			if len(tok) > 0 && isAlpha(tok[0]) {
				windowTokens = append(windowTokens, strings.ToLower(tok))
			}
		}

		factName := matchFact(numberVal, windowTokens)
		if factName == "" {
			continue
		}
		out = append(out, Mention{
			FactName: factName,
			Value:    numberStr,
			FilePath: path,
			Line:     lineNum,
			Context:  strings.TrimSpace(line),
		})
	}
	return out
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// matchFact returns the first fact key whose keywords appear in window,
// skipping small numbers for *_count facts (too many false positives from
// examples in docs).
func matchFact(numberVal int, window []string) string {
	keys := make([]string, 0, len(factKeywords))
	for k := range factKeywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, factName := range keys {
		if numberVal < 10 && strings.HasSuffix(factName, "_count") {
			continue
		}
		for _, kw := range factKeywords[factName] {
			if keywordInWindow(strings.Fields(strings.ToLower(kw)), window) {
				return factName
			}
		}
	}
	return ""
}

func keywordInWindow(kwWords, window []string) bool {
	if len(kwWords) == 1 {
		kw := kwWords[0]
		for _, w := range window {
			if w == kw || strings.HasPrefix(w, kw) {
				return true
			}
		}
		return false
	}
	for i := 0; i+len(kwWords) <= len(window); i++ {
		match := true
		for j, kw := range kwWords {
			w := window[i+j]
			if w != kw && !strings.HasPrefix(w, kw) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

var excludeDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, ".venv": true, "venv": true,
}

var defaultGlobs = []string{"*.md", "docs/**/*.md", ".beadloom/*.md"}

// ResolvePaths walks root for markdown files matching the default scan
// locations, applying the project's docs_audit.exclude_paths patterns
// (matched against the path relative to root) plus CHANGELOG.md and the
// conventional non-doc directories this package always skips.
func ResolvePaths(root string, excludeGlobs []string) ([]string, error) {
	var result []string
	seen := map[string]bool{}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if excludeDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		if info.Name() == "CHANGELOG.md" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if !matchesAnyGlob(rel, defaultGlobs) {
			return nil
		}
		for _, pattern := range excludeGlobs {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return nil
			}
		}
		if !seen[rel] {
			seen[rel] = true
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(result)
	return result, nil
}

// matchesAnyGlob checks rel against a small fixed set of patterns that may
// contain a "**" doublestar segment — filepath.Match doesn't support
// doublestar, so a literal "dir/**/*.md" pattern is handled by matching
// "dir/" as a path prefix and "*.md" against the trailing segment.
func matchesAnyGlob(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(pattern, "**") {
			parts := strings.SplitN(pattern, "/**/", 2)
			if len(parts) == 2 && strings.HasPrefix(rel, parts[0]+"/") {
				if ok, _ := filepath.Match(parts[1], filepath.Base(rel)); ok {
					return true
				}
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if !strings.Contains(pattern, "/") && !strings.Contains(rel, "/") {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return true
			}
		}
	}
	return false
}

// Audit scans root's documentation for fact mentions and flags any whose
// value disagrees with the corresponding registered fact in the store. A
// malformed or absent config never blocks an audit: Load returns the
// defaults for an absent file, and Audit falls back to DefaultConfig when
// Load fails.
func Audit(ctx context.Context, st *store.Store, root string) (*Report, error) {
	log := logging.Get(logging.CategoryDocs)

	facts, err := store.ListFacts(ctx, st.Q())
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	registered := map[string]string{}
	for _, f := range facts {
		registered[f.Key] = f.Value
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	paths, err := ResolvePaths(root, cfg.DocsAudit.ExcludePaths)
	if err != nil {
		return nil, err
	}

	report := &Report{FilesScanned: len(paths)}
	for _, p := range paths {
		mentions, err := ScanFile(p)
		if err != nil {
			log.Warn("skipping %s: %v", p, err)
			continue
		}
		report.Mentions = append(report.Mentions, mentions...)
	}

	for _, m := range report.Mentions {
		want, ok := registered[m.FactName]
		if !ok || want == m.Value {
			continue
		}
		report.Mismatches = append(report.Mismatches, Mismatch{Mention: m, RegisteredValue: want})
	}

	log.Info("audited %d file(s): %d mention(s), %d mismatch(es)", report.FilesScanned, len(report.Mentions), len(report.Mismatches))
	return report, nil
}
