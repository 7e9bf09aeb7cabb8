// Package vcs analyzes a project's git history to derive per-node commit
// activity (component E's auxiliary "activity" field), grounded on the
// original implementation's single `git log` invocation plus in-memory
// commit-to-node mapping rather than per-directory subprocess calls.
package vcs

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"beadloom/internal/logging"
)

// ActivityLevel is the fixed hot/warm/cold/dormant vocabulary spec §4.E
// classifies commit activity into.
type ActivityLevel string

const (
	ActivityHot     ActivityLevel = "hot"
	ActivityWarm    ActivityLevel = "warm"
	ActivityCold    ActivityLevel = "cold"
	ActivityDormant ActivityLevel = "dormant"
)

// Activity is the git activity summary for a single graph node.
type Activity struct {
	Commits30d      int
	Commits90d      int
	LastCommitDate  string // YYYY-MM-DD, empty if never touched
	TopContributors []string
	ActivityLevel   ActivityLevel
}

// classify implements spec §4.E's fixed thresholds: >20/30d hot, 5-20/30d
// warm, 1-4/30d cold, 0/90d dormant, else cold.
func classify(commits30d, commits90d int) ActivityLevel {
	switch {
	case commits30d > 20:
		return ActivityHot
	case commits30d >= 5:
		return ActivityWarm
	case commits30d >= 1:
		return ActivityCold
	case commits90d == 0:
		return ActivityDormant
	default:
		return ActivityCold
	}
}

// commitInfo is one parsed `git log --name-only` entry.
type commitInfo struct {
	hash   string
	date   time.Time
	author string
	files  []string
}

// Analyze runs a single 90-day `git log` over projectRoot and buckets
// commits into each node's source directory, returning an Activity per
// ref_id present in sourceDirs (ref_id -> source path, relative to
// projectRoot). Returns an empty map, not an error, when the directory is
// not a git repository or git is unavailable/times out — spec §4.E:
// "absence of version control is a no-op".
func Analyze(ctx context.Context, projectRoot string, sourceDirs map[string]string) map[string]Activity {
	log := logging.Get(logging.CategoryGit)
	if len(sourceDirs) == 0 {
		return map[string]Activity{}
	}

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", "log", "--format=%H %aI %aN", "--name-only", "--since=90 days ago")
	cmd.Dir = projectRoot
	out, err := cmd.Output()
	if err != nil {
		log.Warn("git log unavailable in %s: %v", projectRoot, err)
		return map[string]Activity{}
	}

	commits := parseGitLog(string(out))

	type bucket struct {
		commits30d   map[string]bool
		commits90d   map[string]bool
		contributors map[string]int
		lastDate     time.Time
	}
	buckets := map[string]*bucket{}
	for refID := range sourceDirs {
		buckets[refID] = &bucket{
			commits30d:   map[string]bool{},
			commits90d:   map[string]bool{},
			contributors: map[string]int{},
		}
	}

	now := time.Now()
	for _, c := range commits {
		touched := map[string]bool{}
		for _, f := range c.files {
			if refID := mapFileToNode(f, sourceDirs); refID != "" {
				touched[refID] = true
			}
		}
		for refID := range touched {
			b := buckets[refID]
			b.commits90d[c.hash] = true
			if now.Sub(c.date) <= 30*24*time.Hour {
				b.commits30d[c.hash] = true
			}
			b.contributors[c.author]++
			if c.date.After(b.lastDate) {
				b.lastDate = c.date
			}
		}
	}

	results := map[string]Activity{}
	for refID, b := range buckets {
		c30, c90 := len(b.commits30d), len(b.commits90d)
		last := ""
		if !b.lastDate.IsZero() {
			last = b.lastDate.Format("2006-01-02")
		}
		results[refID] = Activity{
			Commits30d:      c30,
			Commits90d:      c90,
			LastCommitDate:  last,
			TopContributors: topContributors(b.contributors, 3),
			ActivityLevel:   classify(c30, c90),
		}
	}
	return results
}

// mapFileToNode returns the ref_id whose source directory is the longest
// prefix match of filePath (at a path-boundary), or "" if none match.
func mapFileToNode(filePath string, sourceDirs map[string]string) string {
	filePath = strings.TrimPrefix(filePath, "./")
	best := ""
	bestLen := 0
	for refID, src := range sourceDirs {
		src = strings.TrimSuffix(strings.TrimPrefix(src, "./"), "/")
		if src == "" {
			continue
		}
		match := filePath == src || strings.HasPrefix(filePath, src+"/")
		if match && len(src) > bestLen {
			best = refID
			bestLen = len(src)
		}
	}
	return best
}

// topContributors returns the n authors with the highest commit counts,
// ties broken by name for determinism.
func topContributors(counts map[string]int, n int) []string {
	type pair struct {
		name  string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for name, count := range counts {
		pairs = append(pairs, pair{name, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].name < pairs[j].name
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.name
	}
	return out
}

// parseGitLog parses `git log --format="%H %aI %aN" --name-only` output:
// a header line "<hash> <date> <author>", an optional blank line, then
// file paths until the next blank line or header.
func parseGitLog(output string) []commitInfo {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil
	}

	lines := strings.Split(output, "\n")
	var commits []commitInfo
	i := 0
	for i < len(lines) {
		header := strings.TrimSpace(lines[i])
		if header == "" {
			i++
			continue
		}
		parts := strings.SplitN(header, " ", 3)
		if len(parts) < 3 {
			i++
			continue
		}
		hash, dateStr, author := parts[0], parts[1], parts[2]
		i++
		if i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}

		var files []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			line := strings.TrimSpace(lines[i])
			if looksLikeHeader(line) {
				break
			}
			files = append(files, line)
			i++
		}

		date, err := time.Parse(time.RFC3339, dateStr)
		if err != nil {
			continue
		}
		commits = append(commits, commitInfo{hash: hash, date: date, author: author, files: files})
	}
	return commits
}

// looksLikeHeader guards against a file path being mistaken for the next
// commit's header when name-only output runs together without a blank
// separator in edge cases.
func looksLikeHeader(line string) bool {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return false
	}
	datePart := parts[1]
	if !strings.Contains(datePart, "T") {
		return false
	}
	return strings.Contains(datePart, "+") || strings.Contains(datePart, "Z")
}
